package dto

import (
	"time"

	domainprofile "mujthriftz/internal/domain/profile"
	domainuser "mujthriftz/internal/domain/user"
)

// UserProfile is the authenticated principal as returned by auth endpoints.
type UserProfile struct {
	ID          string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	PhotoURL    string    `json:"photoURL,omitempty"`
	Roles       []string  `json:"roles"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type AuthResponse struct {
	User  UserProfile `json:"user"`
	Token string      `json:"token"`
}

// PublicUser is what other users see: no email, no phone.
type PublicUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL,omitempty"`
	Hostel      string `json:"hostel,omitempty"`
	Year        int    `json:"year,omitempty"`
	Bio         string `json:"bio,omitempty"`
}

// Profile is the owner's full userProfile document.
type Profile struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email,omitempty"`
	PhotoURL    string    `json:"photo_url,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Hostel      string    `json:"hostel,omitempty"`
	Year        int       `json:"year,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func MapUserProfile(user *domainuser.User) UserProfile {
	if user == nil {
		return UserProfile{}
	}
	roles := make([]string, 0, len(user.Roles))
	for _, role := range user.Roles {
		roles = append(roles, string(role))
	}
	return UserProfile{
		ID:          string(user.ID),
		Email:       user.Email,
		DisplayName: user.DisplayName,
		PhotoURL:    user.PhotoURL,
		Roles:       roles,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

func NewAuthResponse(user *domainuser.User, token string) AuthResponse {
	return AuthResponse{User: MapUserProfile(user), Token: token}
}

func MapPublicUser(p *domainprofile.Profile) PublicUser {
	if p == nil {
		return PublicUser{}
	}
	pub := p.Public()
	return PublicUser{
		ID:          pub.UserID,
		DisplayName: pub.DisplayName,
		PhotoURL:    pub.PhotoURL,
		Hostel:      pub.Hostel,
		Year:        pub.Year,
		Bio:         pub.Bio,
	}
}

func MapProfile(p *domainprofile.Profile) Profile {
	if p == nil {
		return Profile{}
	}
	return Profile{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		Email:       p.Email,
		PhotoURL:    p.PhotoURL,
		Phone:       p.Phone,
		Hostel:      p.Hostel,
		Year:        p.Year,
		Bio:         p.Bio,
		UpdatedAt:   p.UpdatedAt,
	}
}
