package service

import (
	"strings"
	"unicode/utf8"

	"github.com/fathima-sithara/support-service/internal/apperr"
	"github.com/fathima-sithara/support-service/internal/domain"
)

const (
	MaxSubjectLen  = 200
	MaxContentLen  = 5000
	MaxAttachments = 10
)

type CreateInput struct {
	Subject     string
	Content     string
	Attachments []domain.Attachment
}

type ReplyInput struct {
	Content     string
	Attachments []domain.Attachment
}

// EditInput targets the root message, or the reply named by ReplyID.
type EditInput struct {
	ReplyID string
	Subject *string
	Content string
}

type ListQuery struct {
	Status       string
	AssignedToMe bool
	Limit        int64
}

type fieldErrors map[string]string

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return apperr.Validation("validation failed", map[string]string(f))
}

func checkText(f fieldErrors, field, v string, limit int, required bool) {
	n := utf8.RuneCountInString(v)
	switch {
	case required && strings.TrimSpace(v) == "":
		f[field] = field + " is required"
	case n > limit:
		f[field] = field + " is too long"
	}
}

func checkAttachments(f fieldErrors, atts []domain.Attachment) {
	if len(atts) > MaxAttachments {
		f["attachments"] = "too many attachments"
		return
	}
	for _, a := range atts {
		if strings.TrimSpace(a.URL) == "" {
			f["attachments"] = "attachment url is required"
			return
		}
	}
}

func (in CreateInput) validate() error {
	f := fieldErrors{}
	checkText(f, "subject", in.Subject, MaxSubjectLen, true)
	checkText(f, "content", in.Content, MaxContentLen, true)
	checkAttachments(f, in.Attachments)
	return f.err()
}

// A reply needs text unless it carries attachments.
func (in ReplyInput) validate() error {
	f := fieldErrors{}
	checkText(f, "content", in.Content, MaxContentLen, len(in.Attachments) == 0)
	checkAttachments(f, in.Attachments)
	return f.err()
}

func (in EditInput) validate() error {
	f := fieldErrors{}
	checkText(f, "content", in.Content, MaxContentLen, true)
	if in.Subject != nil {
		if in.ReplyID != "" {
			f["subject"] = "replies have no subject"
		} else {
			checkText(f, "subject", *in.Subject, MaxSubjectLen, true)
		}
	}
	return f.err()
}

func attachmentsOrEmpty(a []domain.Attachment) []domain.Attachment {
	if a == nil {
		return []domain.Attachment{}
	}
	return a
}
