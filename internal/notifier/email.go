package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const brevoEndpoint = "https://api.brevo.com/v3/smtp/email"

// BrevoEmailer sends transactional emails via Brevo (Sendinblue) HTTP API v3.
type BrevoEmailer struct {
	APIKey      string
	SenderEmail string
	SenderName  string
	Endpoint    string
	client      *http.Client
	cb          *gobreaker.CircuitBreaker
	catalog     *Catalog
	logger      *zap.SugaredLogger
}

func NewBrevoEmailer(apiKey, senderEmail, senderName string, catalog *Catalog, logger *zap.SugaredLogger) *BrevoEmailer {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "brevo",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Infow("circuit breaker state", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return &BrevoEmailer{
		APIKey:      apiKey,
		SenderEmail: senderEmail,
		SenderName:  senderName,
		Endpoint:    brevoEndpoint,
		client:      &http.Client{Timeout: 10 * time.Second},
		cb:          cb,
		catalog:     catalog,
		logger:      logger,
	}
}

func (e *BrevoEmailer) Send(ctx context.Context, n Notification) error {
	subject, html, err := e.catalog.Render(n)
	if err != nil {
		return err
	}
	payload := map[string]any{
		"sender":      map[string]string{"name": e.SenderName, "email": e.SenderEmail},
		"to":          []map[string]string{{"email": n.RecipientEmail, "name": n.RecipientName}},
		"subject":     subject,
		"htmlContent": html,
	}
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(payload); err != nil {
		return err
	}

	_, err = e.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.Endpoint, bytes.NewReader(body.Bytes()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("api-key", e.APIKey)

		resp, err := e.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return nil, fmt.Errorf("brevo: status %d: %s", resp.StatusCode, string(b))
		}
		return nil, nil
	})
	return err
}

// LogEmailer writes rendered emails to the log instead of sending them.
type LogEmailer struct {
	catalog *Catalog
	logger  *zap.SugaredLogger
}

func NewLogEmailer(catalog *Catalog, logger *zap.SugaredLogger) *LogEmailer {
	return &LogEmailer{catalog: catalog, logger: logger}
}

func (e *LogEmailer) Send(_ context.Context, n Notification) error {
	subject, _, err := e.catalog.Render(n)
	if err != nil {
		return err
	}
	e.logger.Infow("email", "to", n.RecipientEmail, "subject", subject, "thread_id", n.ThreadID, "kind", n.Kind)
	return nil
}
