package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"mujthriftz/internal/domain/shared/events"
)

var (
	ErrDocumentNotFound = errors.New("catalog: document not found")
	ErrUnknownKind      = errors.New("catalog: unknown document type")
	ErrTitleRequired    = errors.New("catalog: title is required")
	ErrOwnerRequired    = errors.New("catalog: owner is required")
	ErrPriceNegative    = errors.New("catalog: price must be non-negative")
	ErrSlugTaken        = errors.New("catalog: slug already taken")
	ErrNotOwner         = errors.New("catalog: document belongs to another user")
	ErrTooManyImages    = errors.New("catalog: too many images")
	ErrAssetNotFound    = errors.New("catalog: asset not found")
	ErrInvalidCondition = errors.New("catalog: invalid condition")
)

// MaxImages bounds the number of asset references per document.
const MaxImages = 8

// Kind is the `_type` discriminator of a content document.
type Kind string

const (
	KindListing  Kind = "productListing"
	KindRequest  Kind = "requestProduct"
	KindRoommate Kind = "roommateFinder"
)

// Kinds lists every browsable document type.
var Kinds = []Kind{KindListing, KindRequest, KindRoommate}

// ParseKind accepts both the `_type` names and the short path aliases.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "productlisting", "listing", "listings", "products":
		return KindListing, nil
	case "requestproduct", "request", "requests":
		return KindRequest, nil
	case "roommatefinder", "roommate", "roommates":
		return KindRoommate, nil
	default:
		return "", ErrUnknownKind
	}
}

type Condition string

const (
	ConditionNew     Condition = "new"
	ConditionLikeNew Condition = "like-new"
	ConditionGood    Condition = "good"
	ConditionFair    Condition = "fair"
)

func parseCondition(raw string) (Condition, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch Condition(value) {
	case "":
		return "", nil
	case ConditionNew, ConditionLikeNew, ConditionGood, ConditionFair:
		return Condition(value), nil
	default:
		return "", ErrInvalidCondition
	}
}

type DocumentID string

type OwnerID string

// Image references an uploaded asset.
type Image struct {
	AssetID string
	URL     string
}

// Document is one listing, request or roommate post. Fields that do not apply to a kind stay empty.
type Document struct {
	ID          DocumentID
	Kind        Kind
	Owner       OwnerID
	Title       string
	Slug        string
	Description string
	Tags        []string
	Category    string
	Condition   Condition
	Price       int64
	Negotiable  bool
	Location    string
	Gender      string
	RoomType    string
	Urgency     string
	Images      []Image
	// Active is the soft-delete flag (isAvailable for listings, isActive otherwise).
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
	events.EventRecorder
}

// Asset is a stored binary referenced by documents.
type Asset struct {
	ID          string
	Owner       OwnerID
	URL         string
	ContentType string
	Size        int64
	CreatedAt   time.Time
}

// Repository is the content store system of record.
type Repository interface {
	ByID(ctx context.Context, id DocumentID) (*Document, error)
	BySlug(ctx context.Context, kind Kind, slug string) (*Document, error)
	// Create must fail with ErrSlugTaken when (kind, slug) already exists.
	Create(ctx context.Context, doc *Document) error
	Save(ctx context.Context, doc *Document) error
	Delete(ctx context.Context, id DocumentID) error
	ListActive(ctx context.Context, kind Kind) ([]*Document, error)
	ListByOwner(ctx context.Context, owner OwnerID) ([]*Document, error)

	SaveAsset(ctx context.Context, asset Asset) error
	AssetByID(ctx context.Context, id string) (Asset, error)
}

type Attributes struct {
	Title       string
	Description string
	Tags        []string
	Category    string
	Condition   string
	Price       int64
	Negotiable  bool
	Location    string
	Gender      string
	RoomType    string
	Urgency     string
	Images      []Image
}

type CreateParams struct {
	ID    DocumentID
	Kind  Kind
	Owner OwnerID
	Slug  string
	Attributes
	Now time.Time
}

func NewDocument(params CreateParams) (*Document, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, errors.New("catalog: id is required")
	}
	if _, err := ParseKind(string(params.Kind)); err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(params.Owner)) == "" {
		return nil, ErrOwnerRequired
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	doc := &Document{
		ID:        params.ID,
		Kind:      params.Kind,
		Owner:     params.Owner,
		Slug:      params.Slug,
		Active:    true,
		CreatedAt: now.UTC(),
	}
	if err := doc.apply(params.Attributes, now); err != nil {
		return nil, err
	}
	doc.Record(DocumentCreatedEvent{DocumentID: doc.ID, Kind: doc.Kind, Owner: doc.Owner, At: doc.CreatedAt})
	return doc, nil
}

// Update replaces mutable attributes. The slug stays stable once assigned.
func (d *Document) Update(attrs Attributes, now time.Time) error {
	if err := d.apply(attrs, now); err != nil {
		return err
	}
	d.Record(DocumentUpdatedEvent{DocumentID: d.ID, Kind: d.Kind, At: d.UpdatedAt})
	return nil
}

// Deactivate is the soft delete. Deactivating twice is a no-op.
func (d *Document) Deactivate(now time.Time) {
	if !d.Active {
		return
	}
	d.Active = false
	d.UpdatedAt = now.UTC()
	d.Record(DocumentDeactivatedEvent{DocumentID: d.ID, Kind: d.Kind, At: d.UpdatedAt})
}

func (d *Document) Reactivate(now time.Time) {
	if d.Active {
		return
	}
	d.Active = true
	d.UpdatedAt = now.UTC()
	d.Record(DocumentUpdatedEvent{DocumentID: d.ID, Kind: d.Kind, At: d.UpdatedAt})
}

func (d *Document) OwnedBy(owner OwnerID) bool {
	return d.Owner == owner
}

func (d *Document) apply(attrs Attributes, now time.Time) error {
	title := strings.TrimSpace(attrs.Title)
	if title == "" {
		return ErrTitleRequired
	}
	if attrs.Price < 0 {
		return ErrPriceNegative
	}
	if len(attrs.Images) > MaxImages {
		return ErrTooManyImages
	}
	condition, err := parseCondition(attrs.Condition)
	if err != nil {
		return err
	}
	if now.IsZero() {
		now = time.Now()
	}
	d.Title = title
	d.Description = strings.TrimSpace(attrs.Description)
	d.Tags = normalizeTokens(attrs.Tags)
	d.Category = strings.ToLower(strings.TrimSpace(attrs.Category))
	d.Condition = condition
	d.Price = attrs.Price
	d.Negotiable = attrs.Negotiable
	d.Location = strings.TrimSpace(attrs.Location)
	d.Gender = strings.ToLower(strings.TrimSpace(attrs.Gender))
	d.RoomType = strings.ToLower(strings.TrimSpace(attrs.RoomType))
	d.Urgency = strings.ToLower(strings.TrimSpace(attrs.Urgency))
	d.Images = append([]Image(nil), attrs.Images...)
	d.UpdatedAt = now.UTC()
	return nil
}

// Clone copies the document without its pending events.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.Tags = append([]string(nil), d.Tags...)
	out.Images = append([]Image(nil), d.Images...)
	out.EventRecorder = events.EventRecorder{}
	return &out
}

func normalizeTokens(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	out := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(strings.ToLower(token))
		if token == "" {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
