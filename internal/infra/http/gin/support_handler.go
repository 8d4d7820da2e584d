package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"mujthriftz/internal/app/commands"
	supportapp "mujthriftz/internal/app/handlers/support"
)

type SupportHandler struct {
	Commands commands.Bus
	Logger   *slog.Logger
}

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

type reportRequest struct {
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
	Reason     string `json:"reason"`
	Details    string `json:"details"`
}

// Contact is public; anonymous visitors use the contact form too.
func (h SupportHandler) Contact(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	cmd := supportapp.SubmitContactCommand{Name: req.Name, Email: req.Email, Subject: req.Subject, Message: req.Message}
	accepted, err := commands.Dispatch[supportapp.SubmitContactCommand, supportapp.Accepted](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "contact")
		return
	}
	c.JSON(http.StatusAccepted, accepted)
}

func (h SupportHandler) Report(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	cmd := supportapp.FileReportCommand{
		ReporterID: principal.ID,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		Reason:     req.Reason,
		Details:    req.Details,
	}
	accepted, err := commands.Dispatch[supportapp.FileReportCommand, supportapp.Accepted](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "report", "target_id", req.TargetID, "user_id", principal.ID)
		return
	}
	c.JSON(http.StatusAccepted, accepted)
}

var _ SupportHTTP = (*SupportHandler)(nil)
