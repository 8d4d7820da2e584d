package support

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"mujthriftz/internal/app/commands"
	"mujthriftz/internal/app/policies"
	domainuser "mujthriftz/internal/domain/user"
)

const (
	submitContactKey = "support.contact.submit"
	fileReportKey    = "support.reports.file"

	TemplateContact = "contact"
	TemplateReport  = "report"

	maxMessageLength = 2000
)

var (
	ErrNameRequired    = errors.New("support: name is required")
	ErrMessageRequired = errors.New("support: message is required")
	ErrMessageTooLong  = errors.New("support: message too long")
	ErrReasonRequired  = errors.New("support: reason is required")
	ErrTargetRequired  = errors.New("support: reported item is required")
	ErrMailUnavailable = errors.New("support: mail delivery unavailable")
)

// Accepted is returned once a mail is queued; delivery happens later.
type Accepted struct {
	Template string `json:"template"`
	Status   string `json:"status"`
}

type SubmitContactCommand struct {
	Name    string
	Email   string
	Subject string
	Message string
}

func (c SubmitContactCommand) Key() string { return submitContactKey }

func (c SubmitContactCommand) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrNameRequired
	}
	if _, err := domainuser.NormalizeEmail(c.Email); err != nil {
		return err
	}
	return validateMessage(c.Message)
}

type FileReportCommand struct {
	ReporterID string
	TargetType string
	TargetID   string
	Reason     string
	Details    string
}

func (c FileReportCommand) Key() string     { return fileReportKey }
func (c FileReportCommand) ActorID() string { return c.ReporterID }

func (c FileReportCommand) Validate() error {
	if strings.TrimSpace(c.TargetID) == "" {
		return ErrTargetRequired
	}
	if strings.TrimSpace(c.Reason) == "" {
		return ErrReasonRequired
	}
	if utf8.RuneCountInString(c.Details) > maxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// MailHandler hands validated forms to the notifier. The notifier is expected to queue.
type MailHandler struct {
	Notifier policies.Notifier
	Logger   *slog.Logger
}

func (h *MailHandler) HandleContact(ctx context.Context, cmd SubmitContactCommand) (Accepted, error) {
	email, _ := domainuser.NormalizeEmail(cmd.Email)
	return h.send(ctx, TemplateContact, map[string]string{
		"from_name":  strings.TrimSpace(cmd.Name),
		"from_email": email,
		"subject":    strings.TrimSpace(cmd.Subject),
		"message":    strings.TrimSpace(cmd.Message),
	})
}

func (h *MailHandler) HandleReport(ctx context.Context, cmd FileReportCommand) (Accepted, error) {
	return h.send(ctx, TemplateReport, map[string]string{
		"reporter_id": cmd.ReporterID,
		"target_type": strings.TrimSpace(cmd.TargetType),
		"target_id":   strings.TrimSpace(cmd.TargetID),
		"reason":      strings.TrimSpace(cmd.Reason),
		"details":     strings.TrimSpace(cmd.Details),
	})
}

func (h *MailHandler) send(ctx context.Context, template string, params map[string]string) (Accepted, error) {
	if h.Notifier == nil {
		return Accepted{}, ErrMailUnavailable
	}
	if err := h.Notifier.Send(ctx, template, params); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("mail enqueue failed", "template", template, "error", err)
		}
		return Accepted{}, err
	}
	return Accepted{Template: template, Status: "queued"}, nil
}

func validateMessage(message string) error {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return ErrMessageRequired
	}
	if utf8.RuneCountInString(trimmed) > maxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// ContactHandler and ReportHandler expose MailHandler on the command bus.
func ContactHandler(h *MailHandler) commands.Handler[SubmitContactCommand, Accepted] {
	return commands.HandlerFunc[SubmitContactCommand, Accepted](h.HandleContact)
}

func ReportHandler(h *MailHandler) commands.Handler[FileReportCommand, Accepted] {
	return commands.HandlerFunc[FileReportCommand, Accepted](h.HandleReport)
}
