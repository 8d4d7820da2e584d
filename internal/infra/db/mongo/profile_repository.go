package mongo

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainprofile "mujthriftz/internal/domain/profile"
)

type ProfileRepository struct {
	col *mongo.Collection
}

func NewProfileRepository(db *mongo.Database) *ProfileRepository {
	return &ProfileRepository{col: db.Collection("user_profiles")}
}

func (r *ProfileRepository) ByUserID(ctx context.Context, userID string) (*domainprofile.Profile, error) {
	var doc profileDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainprofile.ErrNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *ProfileRepository) Save(ctx context.Context, p *domainprofile.Profile) error {
	if p == nil || strings.TrimSpace(p.UserID) == "" {
		return domainprofile.ErrUserIDRequired
	}
	doc := newProfileDocument(p)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.UserID}, doc, options.Replace().SetUpsert(true))
	return err
}

type profileDocument struct {
	UserID      string `bson:"_id"`
	DisplayName string `bson:"display_name"`
	Email       string `bson:"email,omitempty"`
	PhotoURL    string `bson:"photo_url,omitempty"`
	Phone       string `bson:"phone,omitempty"`
	Hostel      string `bson:"hostel,omitempty"`
	Year        int    `bson:"year,omitempty"`
	Bio         string `bson:"bio,omitempty"`
	CreatedAt   int64  `bson:"created_at"`
	UpdatedAt   int64  `bson:"updated_at"`
}

func newProfileDocument(p *domainprofile.Profile) profileDocument {
	return profileDocument{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		Email:       p.Email,
		PhotoURL:    p.PhotoURL,
		Phone:       p.Phone,
		Hostel:      p.Hostel,
		Year:        p.Year,
		Bio:         p.Bio,
		CreatedAt:   millis(p.CreatedAt),
		UpdatedAt:   millis(p.UpdatedAt),
	}
}

func (d profileDocument) toDomain() *domainprofile.Profile {
	return &domainprofile.Profile{
		UserID:      d.UserID,
		DisplayName: d.DisplayName,
		Email:       d.Email,
		PhotoURL:    d.PhotoURL,
		Phone:       d.Phone,
		Hostel:      d.Hostel,
		Year:        d.Year,
		Bio:         d.Bio,
		CreatedAt:   fromMillis(d.CreatedAt),
		UpdatedAt:   fromMillis(d.UpdatedAt),
	}
}

var _ domainprofile.Repository = (*ProfileRepository)(nil)
