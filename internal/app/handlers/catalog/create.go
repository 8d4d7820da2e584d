package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"mujthriftz/internal/app/commands"
	"mujthriftz/internal/app/dto"
	"mujthriftz/internal/app/outbox"
	domaincatalog "mujthriftz/internal/domain/catalog"
)

const (
	createDocumentKey = "catalog.documents.create"

	maxSlugAttempts = 20
)

// Payload carries the editable fields of a listing, request or roommate post.
// Images reference assets uploaded beforehand by id.
type Payload struct {
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
	AssetIDs    []string
}

type CreateDocumentCommand struct {
	OwnerID string
	Kind    string
	Payload Payload
}

func (c CreateDocumentCommand) Key() string     { return createDocumentKey }
func (c CreateDocumentCommand) ActorID() string { return c.OwnerID }

func (c CreateDocumentCommand) Validate() error {
	if _, err := domaincatalog.ParseKind(c.Kind); err != nil {
		return err
	}
	if strings.TrimSpace(c.Payload.Title) == "" {
		return domaincatalog.ErrTitleRequired
	}
	if c.Payload.Price < 0 {
		return domaincatalog.ErrPriceNegative
	}
	return nil
}

type CreateDocumentHandler struct {
	Repo   domaincatalog.Repository
	Outbox outbox.Outbox
	Logger *slog.Logger
	Now    func() time.Time
}

// Handle creates the document under the first free slug derived from its title.
// Uniqueness is decided by the store on write, so two identical titles submitted
// concurrently end up as "title" and "title-2".
func (h *CreateDocumentHandler) Handle(ctx context.Context, cmd CreateDocumentCommand) (dto.Document, error) {
	kind, err := domaincatalog.ParseKind(cmd.Kind)
	if err != nil {
		return dto.Document{}, err
	}
	owner := domaincatalog.OwnerID(strings.TrimSpace(cmd.OwnerID))
	images, err := resolveImages(ctx, h.Repo, owner, cmd.Payload.AssetIDs)
	if err != nil {
		return dto.Document{}, err
	}
	doc, err := domaincatalog.NewDocument(domaincatalog.CreateParams{
		ID:         domaincatalog.DocumentID(uuid.NewString()),
		Kind:       kind,
		Owner:      owner,
		Attributes: cmd.Payload.attributes(images),
		Now:        nowFrom(h.Now),
	})
	if err != nil {
		return dto.Document{}, err
	}

	base := domaincatalog.Slugify(doc.Title)
	for attempt := 0; ; attempt++ {
		switch {
		case attempt < maxSlugAttempts:
			doc.Slug = domaincatalog.SlugCandidate(base, attempt)
		case attempt == maxSlugAttempts:
			doc.Slug = base + "-" + strings.Split(string(doc.ID), "-")[0]
		default:
			return dto.Document{}, fmt.Errorf("catalog: no free slug for %q: %w", base, domaincatalog.ErrSlugTaken)
		}
		err = h.Repo.Create(ctx, doc)
		if err == nil {
			break
		}
		if !errors.Is(err, domaincatalog.ErrSlugTaken) {
			return dto.Document{}, err
		}
	}

	if err := outbox.RecordDomainEvents(ctx, h.Outbox, outbox.EncoderFor(ctx), doc.PullEvents()); err != nil {
		return dto.Document{}, err
	}
	if h.Logger != nil {
		h.Logger.Info("catalog document created", "document_id", doc.ID, "type", doc.Kind, "slug", doc.Slug, "owner_id", doc.Owner)
	}
	return dto.MapDocument(doc), nil
}

func (p Payload) attributes(images []domaincatalog.Image) domaincatalog.Attributes {
	return domaincatalog.Attributes{
		Title:       p.Title,
		Description: p.Description,
		Tags:        append([]string(nil), p.Tags...),
		Category:    p.Category,
		Condition:   p.Condition,
		Price:       p.Price,
		Negotiable:  p.Negotiable,
		Location:    p.Location,
		Gender:      p.Gender,
		RoomType:    p.RoomType,
		Urgency:     p.Urgency,
		Images:      images,
	}
}

// resolveImages turns asset ids into image refs. Assets must belong to owner.
func resolveImages(ctx context.Context, repo domaincatalog.Repository, owner domaincatalog.OwnerID, ids []string) ([]domaincatalog.Image, error) {
	if len(ids) > domaincatalog.MaxImages {
		return nil, domaincatalog.ErrTooManyImages
	}
	images := make([]domaincatalog.Image, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		asset, err := repo.AssetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if asset.Owner != owner {
			return nil, domaincatalog.ErrAssetNotFound
		}
		images = append(images, domaincatalog.Image{AssetID: asset.ID, URL: asset.URL})
	}
	return images, nil
}

func nowFrom(fn func() time.Time) time.Time {
	if fn != nil {
		return fn()
	}
	return time.Now()
}

var _ commands.Handler[CreateDocumentCommand, dto.Document] = (*CreateDocumentHandler)(nil)
