package memory

import (
	"context"
	"sort"
	"sync"

	domaincatalog "mujthriftz/internal/domain/catalog"
)

type slugKey struct {
	kind domaincatalog.Kind
	slug string
}

// CatalogRepository is the in-process content store. Slugs are unique per kind.
type CatalogRepository struct {
	mu     sync.RWMutex
	docs   map[domaincatalog.DocumentID]*domaincatalog.Document
	slugs  map[slugKey]domaincatalog.DocumentID
	assets map[string]domaincatalog.Asset
}

func NewCatalogRepository() *CatalogRepository {
	return &CatalogRepository{
		docs:   make(map[domaincatalog.DocumentID]*domaincatalog.Document),
		slugs:  make(map[slugKey]domaincatalog.DocumentID),
		assets: make(map[string]domaincatalog.Asset),
	}
}

func (r *CatalogRepository) ByID(_ context.Context, id domaincatalog.DocumentID) (*domaincatalog.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, domaincatalog.ErrDocumentNotFound
	}
	return doc.Clone(), nil
}

func (r *CatalogRepository) BySlug(_ context.Context, kind domaincatalog.Kind, slug string) (*domaincatalog.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.slugs[slugKey{kind, slug}]
	if !ok {
		return nil, domaincatalog.ErrDocumentNotFound
	}
	return r.docs[id].Clone(), nil
}

func (r *CatalogRepository) Create(_ context.Context, doc *domaincatalog.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := slugKey{doc.Kind, doc.Slug}
	if _, taken := r.slugs[key]; taken {
		return domaincatalog.ErrSlugTaken
	}
	r.slugs[key] = doc.ID
	r.docs[doc.ID] = doc.Clone()
	return nil
}

func (r *CatalogRepository) Save(_ context.Context, doc *domaincatalog.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.docs[doc.ID]
	if !ok {
		return domaincatalog.ErrDocumentNotFound
	}
	key := slugKey{doc.Kind, doc.Slug}
	if owner, taken := r.slugs[key]; taken && owner != doc.ID {
		return domaincatalog.ErrSlugTaken
	}
	delete(r.slugs, slugKey{prev.Kind, prev.Slug})
	r.slugs[key] = doc.ID
	r.docs[doc.ID] = doc.Clone()
	return nil
}

func (r *CatalogRepository) Delete(_ context.Context, id domaincatalog.DocumentID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return domaincatalog.ErrDocumentNotFound
	}
	delete(r.slugs, slugKey{doc.Kind, doc.Slug})
	delete(r.docs, id)
	return nil
}

func (r *CatalogRepository) ListActive(_ context.Context, kind domaincatalog.Kind) ([]*domaincatalog.Document, error) {
	return r.list(func(d *domaincatalog.Document) bool { return d.Kind == kind && d.Active }), nil
}

func (r *CatalogRepository) ListByOwner(_ context.Context, owner domaincatalog.OwnerID) ([]*domaincatalog.Document, error) {
	return r.list(func(d *domaincatalog.Document) bool { return d.Owner == owner }), nil
}

func (r *CatalogRepository) list(keep func(*domaincatalog.Document) bool) []*domaincatalog.Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domaincatalog.Document
	for _, doc := range r.docs {
		if keep(doc) {
			out = append(out, doc.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *CatalogRepository) SaveAsset(_ context.Context, asset domaincatalog.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets[asset.ID] = asset
	return nil
}

func (r *CatalogRepository) AssetByID(_ context.Context, id string) (domaincatalog.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	asset, ok := r.assets[id]
	if !ok {
		return domaincatalog.Asset{}, domaincatalog.ErrAssetNotFound
	}
	return asset, nil
}

var _ domaincatalog.Repository = (*CatalogRepository)(nil)
