package service

import (
	"context"
	"errors"
	"time"

	"github.com/fathima-sithara/support-service/internal/apperr"
	"github.com/fathima-sithara/support-service/internal/domain"
	"github.com/fathima-sithara/support-service/internal/metrics"
	"github.com/fathima-sithara/support-service/internal/repository"
)

// writeResult is the outcome of one optimistic write attempt.
type writeResult int

const (
	writeOK writeResult = iota
	writeConflict
	writeFailed
)

func classify(err error) writeResult {
	switch {
	case err == nil:
		return writeOK
	case errors.Is(err, repository.ErrVersionConflict):
		return writeConflict
	default:
		return writeFailed
	}
}

// retry runs attempt until it stops hitting version conflicts, sleeping a
// little longer after each conflict. attempt must reload state itself.
func (s *ThreadService) retry(ctx context.Context, op, threadID string, attempt func() error) error {
	for n := 1; ; n++ {
		err := attempt()
		switch classify(err) {
		case writeOK:
			return nil
		case writeFailed:
			return err
		}

		metrics.MutationConflicts.Inc()
		if n >= s.opts.MaxAttempts {
			metrics.RetriesExhausted.Inc()
			s.log.Warnw("mutation retries exhausted", "op", op, "thread_id", threadID, "attempts", n)
			return apperr.Transient("thread was modified concurrently, retry the request", err)
		}
		s.log.Debugw("version conflict, retrying", "op", op, "thread_id", threadID, "attempt", n)
		if err := sleepCtx(ctx, time.Duration(n)*s.opts.BaseBackoff); err != nil {
			return apperr.Transient("request cancelled while retrying", err)
		}
	}
}

// mutate loads the thread, applies fn and saves the result under optimistic
// concurrency. fn reports whether it changed anything; unchanged threads are
// not written.
func (s *ThreadService) mutate(ctx context.Context, op, id string, fn func(t *domain.Thread) (bool, error)) (*domain.Thread, bool, error) {
	var (
		out     *domain.Thread
		changed bool
	)
	err := s.retry(ctx, op, id, func() error {
		t, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		ch, err := fn(t)
		if err != nil {
			return err
		}
		out, changed = t, ch
		if !ch {
			return nil
		}
		return s.save(ctx, t)
	})
	if err != nil {
		return nil, false, err
	}
	return out, changed, nil
}

func (s *ThreadService) load(ctx context.Context, id string) (*domain.Thread, error) {
	t, err := s.repo.FindByID(ctx, id)
	switch {
	case err == nil:
		return t, nil
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperr.NotFound("thread not found")
	default:
		return nil, apperr.Internal(err)
	}
}

func (s *ThreadService) save(ctx context.Context, t *domain.Thread) error {
	err := s.repo.Save(ctx, t)
	switch {
	case err == nil, errors.Is(err, repository.ErrVersionConflict):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("thread not found")
	default:
		return apperr.Internal(err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
