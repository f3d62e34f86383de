package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/quizlabhq/quizlab-backend/pkg/config"
	"github.com/quizlabhq/quizlab-backend/pkg/logger"
)

// Sender is the outbound email surface. Delivery itself belongs to the
// hosted mail provider; this package only issues the API call.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Client talks to the hosted mail API over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	from       string
	logg       *logger.Logger
}

// NewClient builds a mail client. Without an API key the client is disabled:
// sends become logged no-ops, which keeps local development working.
func NewClient(cfg config.MailerConfig, logg *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.APIBaseURL, "/"),
		apiKey:     cfg.APIKey,
		from:       cfg.DefaultFrom,
		logg:       logg,
	}
}

type sendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             emailAddress      `json:"from"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
}

type personalization struct {
	To []emailAddress `json:"to"`
}

type emailAddress struct {
	Email string `json:"email"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Send issues a single transactional email.
func (c *Client) Send(ctx context.Context, to, subject, htmlBody string) error {
	if c == nil {
		return fmt.Errorf("mail client not initialized")
	}
	if c.apiKey == "" {
		if c.logg != nil {
			c.logg.Warn(c.logg.WithField(ctx, "to", to), "mailer.disabled_skipping_send")
		}
		return nil
	}

	payload, err := json.Marshal(sendRequest{
		Personalizations: []personalization{{To: []emailAddress{{Email: to}}}},
		From:             emailAddress{Email: c.from},
		Subject:          subject,
		Content:          []content{{Type: "text/html", Value: htmlBody}},
	})
	if err != nil {
		return fmt.Errorf("encoding mail request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v3/mail/send", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building mail request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("mail api returned status %d", resp.StatusCode)
	}
	return nil
}
