// Package mail sends transactional email through the EmailJS REST API.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"mujthriftz/internal/app/policies"
)

var ErrUnknownTemplate = errors.New("mail: unknown template")

const defaultEndpoint = "https://api.emailjs.com/api/v1.0/email/send"

// EmailJS maps logical template names to EmailJS template ids.
type EmailJS struct {
	HTTPClient *http.Client
	Endpoint   string
	ServiceID  string
	PublicKey  string
	PrivateKey string
	Templates  map[string]string
	// DefaultTo receives mails whose params carry no to_email, such as contact forms.
	DefaultTo string
}

type sendRequest struct {
	ServiceID   string            `json:"service_id"`
	TemplateID  string            `json:"template_id"`
	UserID      string            `json:"user_id"`
	AccessToken string            `json:"accessToken,omitempty"`
	Params      map[string]string `json:"template_params"`
}

func (c *EmailJS) Send(ctx context.Context, template string, params map[string]string) error {
	templateID := c.Templates[template]
	if templateID == "" {
		return fmt.Errorf("%w: %s", ErrUnknownTemplate, template)
	}
	merged := make(map[string]string, len(params)+1)
	for k, v := range params {
		merged[k] = v
	}
	if merged["to_email"] == "" && c.DefaultTo != "" {
		merged["to_email"] = c.DefaultTo
	}
	body, err := json.Marshal(sendRequest{
		ServiceID:   c.ServiceID,
		TemplateID:  templateID,
		UserID:      c.PublicKey,
		AccessToken: c.PrivateKey,
		Params:      merged,
	})
	if err != nil {
		return err
	}
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client().Do(req)
	if err != nil {
		return fmt.Errorf("mail: send %s: %w", template, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mail: send %s: status %d: %s", template, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *EmailJS) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// LogNotifier only logs. It is wired when EmailJS is not configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Send(ctx context.Context, template string, params map[string]string) error {
	if n.Logger != nil {
		n.Logger.InfoContext(ctx, "mail suppressed", "template", template, "to", params["to_email"])
	}
	return nil
}

var (
	_ policies.Notifier = (*EmailJS)(nil)
	_ policies.Notifier = LogNotifier{}
)
