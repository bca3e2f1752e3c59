package api

import (
	"errors"

	"github.com/fathima-sithara/support-service/internal/apperr"
	"github.com/fathima-sithara/support-service/internal/utils"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// errorHandler renders every failure as {"error": ..., "details": ...}.
func errorHandler(log *zap.SugaredLogger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return utils.JSONError(c, fe.Code, fe.Message, nil)
		}

		var ae *apperr.Error
		if errors.As(err, &ae) {
			status := apperr.HTTPStatus(ae.Code)
			if status >= fiber.StatusInternalServerError {
				log.Errorw("request failed", "path", c.Path(), "code", ae.Code, "error", err)
			}
			return utils.JSONError(c, status, ae.Message, ae.Details)
		}

		log.Errorw("unhandled error", "path", c.Path(), "error", err)
		return utils.JSONError(c, fiber.StatusInternalServerError, "internal error", nil)
	}
}
