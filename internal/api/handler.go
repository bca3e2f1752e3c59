package api

import (
	"strconv"

	"github.com/fathima-sithara/support-service/internal/apperr"
	"github.com/fathima-sithara/support-service/internal/domain"
	"github.com/fathima-sithara/support-service/internal/service"
	"github.com/fathima-sithara/support-service/internal/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
)

type Handlers struct {
	svc      *service.ThreadService
	validate *validator.Validate
}

func NewHandlers(svc *service.ThreadService) *Handlers {
	return &Handlers{svc: svc, validate: validator.New()}
}

type createThreadRequest struct {
	Subject     string              `json:"subject" validate:"required"`
	Content     string              `json:"content" validate:"required"`
	Attachments []domain.Attachment `json:"attachments" validate:"omitempty,dive"`
}

type replyRequest struct {
	Content     string              `json:"content"`
	Attachments []domain.Attachment `json:"attachments" validate:"omitempty,dive"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending accepted resolved closed"`
}

type editRequest struct {
	Content string  `json:"content" validate:"required"`
	Subject *string `json:"subject"`
	ReplyID string  `json:"reply_id"`
}

// bind parses the body into dst and runs struct validation.
func (h *Handlers) bind(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return apperr.Validation("invalid request body", nil)
	}
	if err := h.validate.Struct(dst); err != nil {
		return apperr.Validation("validation failed", utils.FormatValidationErrors(err))
	}
	return nil
}

func (h *Handlers) createThread(c *fiber.Ctx) error {
	var req createThreadRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	t, err := h.svc.Create(c.UserContext(), actorFrom(c), service.CreateInput{
		Subject:     req.Subject,
		Content:     req.Content,
		Attachments: req.Attachments,
	})
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusCreated, t)
}

func (h *Handlers) listThreads(c *fiber.Ctx) error {
	q := service.ListQuery{
		Status:       c.Query("status"),
		AssignedToMe: c.Query("assigned") == "me",
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			return apperr.Validation("invalid limit", map[string]string{"limit": raw})
		}
		q.Limit = n
	}
	threads, err := h.svc.List(c.UserContext(), actorFrom(c), q)
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, threads)
}

func (h *Handlers) unreadCount(c *fiber.Ctx) error {
	n, err := h.svc.UnreadCount(c.UserContext(), actorFrom(c))
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"count": n})
}

func (h *Handlers) getThread(c *fiber.Ctx) error {
	t, err := h.svc.Get(c.UserContext(), actorFrom(c), threadID(c))
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, t)
}

func (h *Handlers) addReply(c *fiber.Ctx) error {
	var req replyRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	r, _, err := h.svc.Reply(c.UserContext(), actorFrom(c), threadID(c), service.ReplyInput{
		Content:     req.Content,
		Attachments: req.Attachments,
	})
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusCreated, r)
}

func (h *Handlers) changeStatus(c *fiber.Ctx) error {
	var req statusRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	t, err := h.svc.ChangeStatus(c.UserContext(), actorFrom(c), threadID(c), domain.Status(req.Status))
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, t)
}

func (h *Handlers) acceptThread(c *fiber.Ctx) error {
	t, err := h.svc.Accept(c.UserContext(), actorFrom(c), threadID(c))
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, t)
}

func (h *Handlers) markRead(c *fiber.Ctx) error {
	t, err := h.svc.MarkRead(c.UserContext(), actorFrom(c), threadID(c))
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, t)
}

func (h *Handlers) markDelivered(c *fiber.Ctx) error {
	t, err := h.svc.MarkDelivered(c.UserContext(), actorFrom(c), threadID(c))
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, t)
}

func (h *Handlers) editThread(c *fiber.Ctx) error {
	var req editRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	t, r, err := h.svc.Edit(c.UserContext(), actorFrom(c), threadID(c), service.EditInput{
		ReplyID: req.ReplyID,
		Subject: req.Subject,
		Content: req.Content,
	})
	if err != nil {
		return err
	}
	if r != nil {
		return utils.JSONSuccess(c, fiber.StatusOK, r)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, t)
}

func (h *Handlers) deleteThread(c *fiber.Ctx) error {
	id := threadID(c)
	replyID := fiberutils.CopyString(c.Query("replyId"))
	if err := h.svc.Delete(c.UserContext(), actorFrom(c), id, replyID); err != nil {
		return err
	}
	data := fiber.Map{"thread_id": id}
	if replyID != "" {
		data["reply_id"] = replyID
	}
	return utils.JSONSuccess(c, fiber.StatusOK, data)
}

// threadID copies the route param out of fasthttp's request buffer, which is
// reused once the handler returns.
func threadID(c *fiber.Ctx) string {
	return fiberutils.CopyString(c.Params("id"))
}
