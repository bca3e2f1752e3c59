package service

import (
	"context"
	"testing"

	"github.com/fathima-sithara/support-service/internal/apperr"
	"github.com/fathima-sithara/support-service/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Two viewers mark the same thread at once. The first write loses the race
// and must reload, keeping the other viewer's receipt.
func TestConcurrentMarksBothSurvive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	th := f.create(t, alice)
	r := f.reply(t, bob, th.ID, "hi")

	f.repo.mu.Lock()
	f.repo.conflicts = 1
	f.repo.beforeConflict = func() {
		_, err := f.svc.MarkRead(ctx, carol, th.ID)
		require.NoError(t, err)
	}
	f.repo.mu.Unlock()

	_, err := f.svc.MarkRead(ctx, alice, th.ID)
	require.NoError(t, err)

	stored := f.load(t, th.ID)
	reply, ok := stored.FindReply(r.ID)
	require.True(t, ok)
	_, byAlice := reply.ReadBy.Get(alice.ID)
	_, byCarol := reply.ReadBy.Get(carol.ID)
	assert.True(t, byAlice)
	assert.True(t, byCarol)
	_, rootByCarol := stored.ReadBy.Get(carol.ID)
	assert.True(t, rootByCarol)
	assert.Len(t, reply.ReadBy, 2)
}

func TestRetriesExhaustedIsTransient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	th := f.create(t, alice)
	before := f.repo.saveCount()

	f.repo.mu.Lock()
	f.repo.conflicts = 10
	f.repo.mu.Unlock()

	_, _, err := f.svc.Reply(ctx, alice, th.ID, ReplyInput{Content: "hello?"})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeTransient, apperr.CodeOf(err))
	assert.ErrorIs(t, err, repository.ErrVersionConflict)
	assert.Equal(t, 3, f.repo.saveCount()-before)
	assert.Empty(t, f.load(t, th.ID).Replies, "nothing is half-applied")
}

func TestRetryRecoversWithinBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	th := f.create(t, alice)

	f.repo.mu.Lock()
	f.repo.conflicts = 2
	f.repo.mu.Unlock()

	_, _, err := f.svc.Reply(ctx, alice, th.ID, ReplyInput{Content: "third time lucky"})
	require.NoError(t, err)
	assert.Len(t, f.load(t, th.ID).Replies, 1)
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	f := newFixture(t)
	th := f.create(t, alice)

	f.repo.mu.Lock()
	f.repo.conflicts = 10
	f.repo.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.svc.MarkDelivered(ctx, bob, th.ID)
	assert.Equal(t, apperr.CodeTransient, apperr.CodeOf(err))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, writeOK, classify(nil))
	assert.Equal(t, writeConflict, classify(repository.ErrVersionConflict))
	assert.Equal(t, writeFailed, classify(apperr.NotFound("x")))
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, 3, o.MaxAttempts)
	assert.Equal(t, int64(5000), o.ReceiptDedupeWindow.Milliseconds())

	o = Options{ReceiptDedupeWindow: -1}.withDefaults()
	assert.Zero(t, o.ReceiptDedupeWindow)
}
