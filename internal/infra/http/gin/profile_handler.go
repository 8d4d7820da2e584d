package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"mujthriftz/internal/app/commands"
	"mujthriftz/internal/app/dto"
	profilesapp "mujthriftz/internal/app/handlers/profiles"
	"mujthriftz/internal/app/queries"
	domainprofile "mujthriftz/internal/domain/profile"
)

type ProfileHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type profileRequest struct {
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url"`
	Phone       string `json:"phone"`
	Hostel      string `json:"hostel"`
	Year        int    `json:"year"`
	Bio         string `json:"bio"`
}

// PublicUser is open to any signed-in user; chat headers and the inbox call it per peer.
func (h ProfileHandler) PublicUser(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}
	query := profilesapp.PublicUserQuery{UserID: c.Param("id")}
	user, err := queries.Ask[profilesapp.PublicUserQuery, dto.PublicUser](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err, "public user", "user_id", query.UserID)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h ProfileHandler) Mine(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	profile, err := queries.Ask[profilesapp.MyProfileQuery, dto.Profile](c.Request.Context(), h.Queries, profilesapp.MyProfileQuery{UserID: principal.ID})
	if err != nil {
		respondError(c, h.Logger, err, "my profile", "user_id", principal.ID)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h ProfileHandler) Update(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	cmd := profilesapp.UpdateProfileCommand{
		UserID: principal.ID,
		Fields: domainprofile.Fields{
			DisplayName: req.DisplayName,
			PhotoURL:    req.PhotoURL,
			Phone:       req.Phone,
			Hostel:      req.Hostel,
			Year:        req.Year,
			Bio:         req.Bio,
		},
	}
	profile, err := commands.Dispatch[profilesapp.UpdateProfileCommand, dto.Profile](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "update profile", "user_id", principal.ID)
		return
	}
	c.JSON(http.StatusOK, profile)
}

var _ ProfileHTTP = (*ProfileHandler)(nil)
