package ginserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	catalogapp "mujthriftz/internal/app/handlers/catalog"
	chatapp "mujthriftz/internal/app/handlers/chat"
	supportapp "mujthriftz/internal/app/handlers/support"
	"mujthriftz/internal/app/middleware"
	authsvc "mujthriftz/internal/app/services/auth"
	domaincatalog "mujthriftz/internal/domain/catalog"
	domainchat "mujthriftz/internal/domain/chat"
	domainprofile "mujthriftz/internal/domain/profile"
	domainuser "mujthriftz/internal/domain/user"
	domainwishlist "mujthriftz/internal/domain/wishlist"
	"mujthriftz/internal/infra/mail"
)

type errorMapping struct {
	status  int
	targets []error
	// message replaces err.Error() in the response when set.
	message string
}

var errorMappings = []errorMapping{
	{status: http.StatusUnauthorized, targets: []error{middleware.ErrUnauthenticated, authsvc.ErrInvalidCredentials}},
	{status: http.StatusForbidden, targets: []error{domainchat.ErrNotParticipant, domaincatalog.ErrNotOwner, chatapp.ErrSelfOnly}},
	{status: http.StatusNotFound, targets: []error{
		domainchat.ErrConversationNotFound,
		domainchat.ErrMessageNotFound,
		domaincatalog.ErrDocumentNotFound,
		domaincatalog.ErrAssetNotFound,
		domainprofile.ErrNotFound,
		domainuser.ErrNotFound,
	}, message: "not found"},
	{status: http.StatusConflict, targets: []error{domaincatalog.ErrSlugTaken, domainuser.ErrEmailAlreadyUsed}},
	{status: http.StatusRequestEntityTooLarge, targets: []error{catalogapp.ErrAssetTooLarge}},
	{status: http.StatusUnsupportedMediaType, targets: []error{catalogapp.ErrUnsupportedAsset}},
	{status: http.StatusServiceUnavailable, targets: []error{
		catalogapp.ErrStorageUnavailable,
		supportapp.ErrMailUnavailable,
		mail.ErrQueueFull,
		mail.ErrClosed,
	}},
	{status: http.StatusBadRequest, targets: []error{
		middleware.ErrValidation,
		authsvc.ErrPasswordTooShort,
		authsvc.ErrPasswordTooLong,
		domainuser.ErrEmailRequired,
		domainuser.ErrEmailInvalid,
		domainuser.ErrNameRequired,
		domainchat.ErrParticipantsRequired,
		domainchat.ErrItemRequired,
		domainchat.ErrTextRequired,
		domainchat.ErrTextTooLong,
		domaincatalog.ErrUnknownKind,
		domaincatalog.ErrTitleRequired,
		domaincatalog.ErrPriceNegative,
		domaincatalog.ErrTooManyImages,
		domaincatalog.ErrInvalidCondition,
		domainprofile.ErrNameRequired,
		domainprofile.ErrNameTooLong,
		domainprofile.ErrBioTooLong,
		domainprofile.ErrInvalidYear,
		domainprofile.ErrInvalidPhone,
		domainwishlist.ErrScopeRequired,
		domainwishlist.ErrItemRequired,
	}},
}

// statusFor maps a handler error to its HTTP status and public message.
// Unknown errors become 500 with a generic message.
func statusFor(err error) (int, string) {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, "upstream timeout"
	}
	for _, m := range errorMappings {
		for _, target := range m.targets {
			if errors.Is(err, target) {
				if m.message != "" {
					return m.status, m.message
				}
				return m.status, err.Error()
			}
		}
	}
	return http.StatusInternalServerError, "internal error"
}

func respondError(c *gin.Context, logger *slog.Logger, err error, op string, kv ...any) {
	status, message := statusFor(err)
	if logger != nil {
		attrs := append([]any{"op", op, "status", status, "error", err}, kv...)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", attrs...)
		} else {
			logger.Debug("request rejected", attrs...)
		}
	}
	c.JSON(status, gin.H{"error": message})
}
