package catalog

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"mujthriftz/internal/app/commands"
	"mujthriftz/internal/app/dto"
	"mujthriftz/internal/app/outbox"
	domaincatalog "mujthriftz/internal/domain/catalog"
)

const (
	updateDocumentKey = "catalog.documents.update"
	deleteDocumentKey = "catalog.documents.delete"
)

// Patch lists optional changes. Nil fields keep their stored value.
type Patch struct {
	Title       *string
	Description *string
	Tags        *[]string
	Category    *string
	Condition   *string
	Price       *int64
	Negotiable  *bool
	Location    *string
	Gender      *string
	RoomType    *string
	Urgency     *string
	AssetIDs    *[]string
	Active      *bool
}

type UpdateDocumentCommand struct {
	OwnerID    string
	Kind       string
	DocumentID string
	Patch      Patch
}

func (c UpdateDocumentCommand) Key() string     { return updateDocumentKey }
func (c UpdateDocumentCommand) ActorID() string { return c.OwnerID }

type UpdateDocumentHandler struct {
	Repo   domaincatalog.Repository
	Outbox outbox.Outbox
	Logger *slog.Logger
	Now    func() time.Time
}

func (h *UpdateDocumentHandler) Handle(ctx context.Context, cmd UpdateDocumentCommand) (dto.Document, error) {
	doc, err := loadOwned(ctx, h.Repo, cmd.Kind, cmd.DocumentID, cmd.OwnerID)
	if err != nil {
		return dto.Document{}, err
	}
	now := nowFrom(h.Now)
	attrs := currentAttributes(doc)
	p := cmd.Patch
	setString(&attrs.Title, p.Title)
	setString(&attrs.Description, p.Description)
	setString(&attrs.Category, p.Category)
	setString(&attrs.Condition, p.Condition)
	setString(&attrs.Location, p.Location)
	setString(&attrs.Gender, p.Gender)
	setString(&attrs.RoomType, p.RoomType)
	setString(&attrs.Urgency, p.Urgency)
	if p.Tags != nil {
		attrs.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.Price != nil {
		attrs.Price = *p.Price
	}
	if p.Negotiable != nil {
		attrs.Negotiable = *p.Negotiable
	}
	if p.AssetIDs != nil {
		images, err := resolveImages(ctx, h.Repo, doc.Owner, *p.AssetIDs)
		if err != nil {
			return dto.Document{}, err
		}
		attrs.Images = images
	}
	if err := doc.Update(attrs, now); err != nil {
		return dto.Document{}, err
	}
	if p.Active != nil {
		if *p.Active {
			doc.Reactivate(now)
		} else {
			doc.Deactivate(now)
		}
	}
	if err := h.Repo.Save(ctx, doc); err != nil {
		return dto.Document{}, err
	}
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, outbox.EncoderFor(ctx), doc.PullEvents()); err != nil {
		return dto.Document{}, err
	}
	return dto.MapDocument(doc), nil
}

type DeleteDocumentCommand struct {
	OwnerID    string
	Kind       string
	DocumentID string
	Hard       bool
}

func (c DeleteDocumentCommand) Key() string     { return deleteDocumentKey }
func (c DeleteDocumentCommand) ActorID() string { return c.OwnerID }

// DeleteDocumentHandler flips the active flag by default and removes the document only when Hard is set.
type DeleteDocumentHandler struct {
	Repo   domaincatalog.Repository
	Outbox outbox.Outbox
	Logger *slog.Logger
	Now    func() time.Time
}

func (h *DeleteDocumentHandler) Handle(ctx context.Context, cmd DeleteDocumentCommand) (dto.Document, error) {
	doc, err := loadOwned(ctx, h.Repo, cmd.Kind, cmd.DocumentID, cmd.OwnerID)
	if err != nil {
		return dto.Document{}, err
	}
	now := nowFrom(h.Now)
	if cmd.Hard {
		if err := h.Repo.Delete(ctx, doc.ID); err != nil {
			return dto.Document{}, err
		}
		doc.Record(domaincatalog.DocumentDeletedEvent{DocumentID: doc.ID, Kind: doc.Kind, At: now.UTC()})
	} else {
		doc.Deactivate(now)
		if err := h.Repo.Save(ctx, doc); err != nil {
			return dto.Document{}, err
		}
	}
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, outbox.EncoderFor(ctx), doc.PullEvents()); err != nil {
		return dto.Document{}, err
	}
	if h.Logger != nil {
		h.Logger.Info("catalog document removed", "document_id", doc.ID, "hard", cmd.Hard)
	}
	return dto.MapDocument(doc), nil
}

func loadOwned(ctx context.Context, repo domaincatalog.Repository, rawKind, id, owner string) (*domaincatalog.Document, error) {
	kind, err := domaincatalog.ParseKind(rawKind)
	if err != nil {
		return nil, err
	}
	doc, err := repo.ByID(ctx, domaincatalog.DocumentID(strings.TrimSpace(id)))
	if err != nil {
		return nil, err
	}
	if doc.Kind != kind {
		return nil, domaincatalog.ErrDocumentNotFound
	}
	if !doc.OwnedBy(domaincatalog.OwnerID(owner)) {
		return nil, domaincatalog.ErrNotOwner
	}
	return doc, nil
}

func currentAttributes(doc *domaincatalog.Document) domaincatalog.Attributes {
	return domaincatalog.Attributes{
		Title:       doc.Title,
		Description: doc.Description,
		Tags:        append([]string(nil), doc.Tags...),
		Category:    doc.Category,
		Condition:   string(doc.Condition),
		Price:       doc.Price,
		Negotiable:  doc.Negotiable,
		Location:    doc.Location,
		Gender:      doc.Gender,
		RoomType:    doc.RoomType,
		Urgency:     doc.Urgency,
		Images:      append([]domaincatalog.Image(nil), doc.Images...),
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

var (
	_ commands.Handler[UpdateDocumentCommand, dto.Document] = (*UpdateDocumentHandler)(nil)
	_ commands.Handler[DeleteDocumentCommand, dto.Document] = (*DeleteDocumentHandler)(nil)
)
