package profiles

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"mujthriftz/internal/app/commands"
	"mujthriftz/internal/app/dto"
	"mujthriftz/internal/app/queries"
	domainprofile "mujthriftz/internal/domain/profile"
	domainuser "mujthriftz/internal/domain/user"
)

const (
	updateProfileKey = "profiles.update"
	publicUserKey    = "profiles.public"
	myProfileKey     = "profiles.mine"
)

type UpdateProfileCommand struct {
	UserID string
	Fields domainprofile.Fields
}

func (c UpdateProfileCommand) Key() string     { return updateProfileKey }
func (c UpdateProfileCommand) ActorID() string { return c.UserID }

// UpdateProfileHandler writes the userProfile document and mirrors name and photo onto the identity record.
type UpdateProfileHandler struct {
	Profiles domainprofile.Repository
	Users    domainuser.Repository
	Logger   *slog.Logger
	Now      func() time.Time
}

func (h *UpdateProfileHandler) Handle(ctx context.Context, cmd UpdateProfileCommand) (dto.Profile, error) {
	now := time.Now()
	if h.Now != nil {
		now = h.Now()
	}
	user, err := h.Users.ByID(ctx, domainuser.ID(cmd.UserID))
	if err != nil {
		return dto.Profile{}, err
	}
	p, err := h.Profiles.ByUserID(ctx, cmd.UserID)
	switch {
	case errors.Is(err, domainprofile.ErrNotFound):
		p, err = domainprofile.New(cmd.UserID, cmd.Fields.DisplayName, user.Email, now)
		if err != nil {
			return dto.Profile{}, err
		}
	case err != nil:
		return dto.Profile{}, err
	}
	if err := p.Apply(cmd.Fields, now); err != nil {
		return dto.Profile{}, err
	}
	if err := h.Profiles.Save(ctx, p); err != nil {
		return dto.Profile{}, err
	}
	if user.DisplayName != p.DisplayName || user.PhotoURL != p.PhotoURL {
		if err := user.UpdateIdentity(p.DisplayName, p.PhotoURL, now); err != nil {
			return dto.Profile{}, err
		}
		if err := h.Users.Save(ctx, user); err != nil {
			return dto.Profile{}, err
		}
	}
	if h.Logger != nil {
		h.Logger.Info("profile updated", "user_id", cmd.UserID)
	}
	return dto.MapProfile(p), nil
}

type PublicUserQuery struct {
	UserID string
}

func (q PublicUserQuery) Key() string { return publicUserKey }

// PublicUserHandler serves chat header and inbox enrichment lookups.
type PublicUserHandler struct {
	Profiles domainprofile.Repository
	Users    domainuser.Repository
}

func (h *PublicUserHandler) Handle(ctx context.Context, q PublicUserQuery) (dto.PublicUser, error) {
	id := strings.TrimSpace(q.UserID)
	if id == "" {
		return dto.PublicUser{}, domainuser.ErrNotFound
	}
	p, err := h.Profiles.ByUserID(ctx, id)
	if err == nil {
		return dto.MapPublicUser(p), nil
	}
	if !errors.Is(err, domainprofile.ErrNotFound) {
		return dto.PublicUser{}, err
	}
	user, err := h.Users.ByID(ctx, domainuser.ID(id))
	if err != nil {
		return dto.PublicUser{}, err
	}
	return dto.PublicUser{ID: string(user.ID), DisplayName: user.DisplayName, PhotoURL: user.PhotoURL}, nil
}

type MyProfileQuery struct {
	UserID string
}

func (q MyProfileQuery) Key() string { return myProfileKey }

type MyProfileHandler struct {
	Profiles domainprofile.Repository
}

func (h *MyProfileHandler) Handle(ctx context.Context, q MyProfileQuery) (dto.Profile, error) {
	p, err := h.Profiles.ByUserID(ctx, q.UserID)
	if err != nil {
		return dto.Profile{}, err
	}
	return dto.MapProfile(p), nil
}

var (
	_ commands.Handler[UpdateProfileCommand, dto.Profile] = (*UpdateProfileHandler)(nil)
	_ queries.Handler[PublicUserQuery, dto.PublicUser]    = (*PublicUserHandler)(nil)
	_ queries.Handler[MyProfileQuery, dto.Profile]        = (*MyProfileHandler)(nil)
)
