package catalog

import (
	"context"
	"sort"
	"strings"

	"mujthriftz/internal/app/dto"
	"mujthriftz/internal/app/queries"
	domaincatalog "mujthriftz/internal/domain/catalog"
)

const (
	browseCatalogKey = "catalog.browse"
	documentBySlug   = "catalog.documents.by_slug"
	listMineKey      = "catalog.documents.mine"
)

// BrowseCatalogQuery fetches the full active set of one type and narrows it in process.
type BrowseCatalogQuery struct {
	Kind   string
	Filter domaincatalog.FilterState
}

func (q BrowseCatalogQuery) Key() string { return browseCatalogKey }

type BrowseCatalogHandler struct {
	Repo domaincatalog.Repository
}

func (h *BrowseCatalogHandler) Handle(ctx context.Context, q BrowseCatalogQuery) (dto.DocumentList, error) {
	kind, err := domaincatalog.ParseKind(q.Kind)
	if err != nil {
		return dto.DocumentList{}, err
	}
	items, err := h.Repo.ListActive(ctx, kind)
	if err != nil {
		return dto.DocumentList{}, err
	}
	return dto.MapDocuments(domaincatalog.Apply(items, q.Filter)), nil
}

type GetDocumentQuery struct {
	Kind        string
	Slug        string
	RequesterID string
}

func (q GetDocumentQuery) Key() string { return documentBySlug }

// GetDocumentHandler hides deactivated documents from everyone but their owner.
type GetDocumentHandler struct {
	Repo domaincatalog.Repository
}

func (h *GetDocumentHandler) Handle(ctx context.Context, q GetDocumentQuery) (dto.Document, error) {
	kind, err := domaincatalog.ParseKind(q.Kind)
	if err != nil {
		return dto.Document{}, err
	}
	slug := strings.TrimSpace(q.Slug)
	if slug == "" {
		return dto.Document{}, domaincatalog.ErrDocumentNotFound
	}
	doc, err := h.Repo.BySlug(ctx, kind, slug)
	if err != nil {
		return dto.Document{}, err
	}
	if !doc.Active && !doc.OwnedBy(domaincatalog.OwnerID(q.RequesterID)) {
		return dto.Document{}, domaincatalog.ErrDocumentNotFound
	}
	return dto.MapDocument(doc), nil
}

type ListMineQuery struct {
	OwnerID string
}

func (q ListMineQuery) Key() string { return listMineKey }

type ListMineHandler struct {
	Repo domaincatalog.Repository
}

func (h *ListMineHandler) Handle(ctx context.Context, q ListMineQuery) (dto.DocumentList, error) {
	owner := strings.TrimSpace(q.OwnerID)
	if owner == "" {
		return dto.DocumentList{}, domaincatalog.ErrOwnerRequired
	}
	items, err := h.Repo.ListByOwner(ctx, domaincatalog.OwnerID(owner))
	if err != nil {
		return dto.DocumentList{}, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return dto.MapDocuments(items), nil
}

var (
	_ queries.Handler[BrowseCatalogQuery, dto.DocumentList] = (*BrowseCatalogHandler)(nil)
	_ queries.Handler[GetDocumentQuery, dto.Document]       = (*GetDocumentHandler)(nil)
	_ queries.Handler[ListMineQuery, dto.DocumentList]      = (*ListMineHandler)(nil)
)
