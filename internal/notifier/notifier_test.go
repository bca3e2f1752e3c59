package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fathima-sithara/support-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sample(kind Kind) Notification {
	return Notification{
		Kind:           kind,
		RecipientID:    "alice",
		RecipientEmail: "alice@example.com",
		RecipientName:  "Alice",
		RecipientRole:  domain.RoleClient,
		SenderName:     "Bob",
		Subject:        "Login broken",
		Body:           "Try clearing <script>cookies</script>",
		ThreadID:       "t1",
		Status:         "resolved",
	}
}

type flakyEmailer struct {
	mu       sync.Mutex
	failures int
	calls    int
	err      error
}

func (e *flakyEmailer) Send(context.Context, Notification) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.failures != 0 {
		if e.failures > 0 {
			e.failures--
		}
		if e.err != nil {
			return e.err
		}
		return errors.New("smtp unavailable")
	}
	return nil
}

func (e *flakyEmailer) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type fakePresence map[string]bool

func (p fakePresence) IsOnline(_ context.Context, id string) (bool, error) { return p[id], nil }

func newTestDispatcher(e Emailer, p Presence, opts Options) *Dispatcher {
	if opts.InitialBackoff == 0 {
		opts.InitialBackoff = time.Millisecond
	}
	return NewDispatcher(e, p, opts, zap.NewNop().Sugar())
}

func TestCatalogRender(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)

	subject, body, err := c.Render(sample(KindReply))
	require.NoError(t, err)
	assert.Equal(t, "New reply on: Login broken", subject)
	assert.Contains(t, body, "Hi Alice")
	assert.Contains(t, body, "&lt;script&gt;", "bodies are HTML-escaped")
	assert.NotContains(t, body, "<script>")

	subject, _, err = c.Render(sample(KindStatusChanged))
	require.NoError(t, err)
	assert.Equal(t, "Your support request is now resolved", subject)

	subject, _, err = c.Render(sample(KindThreadCreated))
	require.NoError(t, err)
	assert.Equal(t, "New support request: Login broken", subject)

	_, _, err = c.Render(Notification{Kind: "unknown"})
	assert.Error(t, err)
}

func TestParseCatalogRejectsBrokenTemplate(t *testing.T) {
	_, err := ParseCatalog([]byte("reply:\n  subject: \"{{.Subject\"\n  body: ok\n"))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte("- not a map"))
	assert.Error(t, err)
}

func TestDeliverRetriesUntilSuccess(t *testing.T) {
	e := &flakyEmailer{failures: 2}
	d := newTestDispatcher(e, nil, Options{MaxRetries: 3})

	require.NoError(t, d.Deliver(context.Background(), sample(KindReply)))
	assert.Equal(t, 3, e.callCount())
}

func TestDeliverGivesUp(t *testing.T) {
	e := &flakyEmailer{failures: -1}
	d := newTestDispatcher(e, nil, Options{MaxRetries: 2})

	assert.Error(t, d.Deliver(context.Background(), sample(KindReply)))
	assert.Equal(t, 3, e.callCount(), "one try plus two retries")
}

func TestDeliverSkips(t *testing.T) {
	e := &flakyEmailer{}
	d := newTestDispatcher(e, fakePresence{"alice": true}, Options{SkipOnline: true})

	n := sample(KindReply)
	require.NoError(t, d.Deliver(context.Background(), n))
	assert.Zero(t, e.callCount(), "recipient is online")

	n.RecipientEmail = ""
	n.RecipientID = "bob"
	require.NoError(t, d.Deliver(context.Background(), n))
	assert.Zero(t, e.callCount(), "no address")

	n.RecipientEmail = "bob@example.com"
	require.NoError(t, d.Deliver(context.Background(), n))
	assert.Equal(t, 1, e.callCount())
}

func TestDispatchIsDetached(t *testing.T) {
	e := &flakyEmailer{failures: -1}
	d := newTestDispatcher(e, nil, Options{MaxRetries: 1})

	d.Dispatch(context.Background(), sample(KindThreadCreated))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
	assert.Equal(t, 2, e.callCount())
}

func TestBrevoEmailer(t *testing.T) {
	var (
		mu     sync.Mutex
		got    map[string]any
		apiKey string
		status = http.StatusCreated
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		apiKey = r.Header.Get("api-key")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(status)
	}))
	defer srv.Close()

	c, err := DefaultCatalog()
	require.NoError(t, err)
	e := NewBrevoEmailer("secret", "support@example.com", "Support", c, zap.NewNop().Sugar())
	e.Endpoint = srv.URL

	require.NoError(t, e.Send(context.Background(), sample(KindReply)))
	mu.Lock()
	assert.Equal(t, "secret", apiKey)
	assert.Equal(t, "New reply on: Login broken", got["subject"])
	to, ok := got["to"].([]any)
	require.True(t, ok)
	require.Len(t, to, 1)
	assert.Equal(t, "alice@example.com", to[0].(map[string]any)["email"])
	status = http.StatusBadRequest
	mu.Unlock()

	assert.Error(t, e.Send(context.Background(), sample(KindReply)))
}

func TestWorkerHandleSurvivesFailures(t *testing.T) {
	e := &flakyEmailer{failures: -1}
	w := NewWorker(nil, newTestDispatcher(e, nil, Options{MaxRetries: 0}), nil, zap.NewNop().Sugar())

	raw, err := json.Marshal(sample(KindReply))
	require.NoError(t, err)
	assert.NotPanics(t, func() { w.Handle(context.Background(), "t1", raw) })
	assert.Equal(t, 1, e.callCount())

	assert.NotPanics(t, func() { w.Handle(context.Background(), "t1", []byte("{")) })
	assert.Equal(t, 1, e.callCount())
}

func TestStaticDirectory(t *testing.T) {
	admins := []domain.Actor{{ID: "carol", Role: domain.RoleAdmin}}
	got, err := NewStaticDirectory(admins).Admins(context.Background())
	require.NoError(t, err)
	assert.Equal(t, admins, got)
}
