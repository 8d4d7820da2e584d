package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domaincatalog "mujthriftz/internal/domain/catalog"
)

// CatalogRepository stores listings, requests and roommate posts in one collection
// keyed by id, with (kind, slug) enforced unique by index.
type CatalogRepository struct {
	docs   *mongo.Collection
	assets *mongo.Collection
}

func NewCatalogRepository(ctx context.Context, db *mongo.Database) (*CatalogRepository, error) {
	docs := db.Collection("catalog_documents")
	_, err := docs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "active", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "owner", Value: 1}}},
	})
	if err != nil {
		return nil, err
	}
	return &CatalogRepository{docs: docs, assets: db.Collection("catalog_assets")}, nil
}

func (r *CatalogRepository) ByID(ctx context.Context, id domaincatalog.DocumentID) (*domaincatalog.Document, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *CatalogRepository) BySlug(ctx context.Context, kind domaincatalog.Kind, slug string) (*domaincatalog.Document, error) {
	return r.findOne(ctx, bson.M{"kind": string(kind), "slug": slug})
}

func (r *CatalogRepository) findOne(ctx context.Context, filter bson.M) (*domaincatalog.Document, error) {
	var doc catalogDocument
	if err := r.docs.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domaincatalog.ErrDocumentNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *CatalogRepository) Create(ctx context.Context, d *domaincatalog.Document) error {
	if _, err := r.docs.InsertOne(ctx, newCatalogDocument(d)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domaincatalog.ErrSlugTaken
		}
		return err
	}
	return nil
}

func (r *CatalogRepository) Save(ctx context.Context, d *domaincatalog.Document) error {
	res, err := r.docs.ReplaceOne(ctx, bson.M{"_id": string(d.ID)}, newCatalogDocument(d))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domaincatalog.ErrSlugTaken
		}
		return err
	}
	if res.MatchedCount == 0 {
		return domaincatalog.ErrDocumentNotFound
	}
	return nil
}

func (r *CatalogRepository) Delete(ctx context.Context, id domaincatalog.DocumentID) error {
	res, err := r.docs.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domaincatalog.ErrDocumentNotFound
	}
	return nil
}

func (r *CatalogRepository) ListActive(ctx context.Context, kind domaincatalog.Kind) ([]*domaincatalog.Document, error) {
	return r.find(ctx, bson.M{"kind": string(kind), "active": true})
}

func (r *CatalogRepository) ListByOwner(ctx context.Context, owner domaincatalog.OwnerID) ([]*domaincatalog.Document, error) {
	return r.find(ctx, bson.M{"owner": string(owner)})
}

func (r *CatalogRepository) find(ctx context.Context, filter bson.M) ([]*domaincatalog.Document, error) {
	cur, err := r.docs.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := make([]*domaincatalog.Document, 0)
	for cur.Next(ctx) {
		var doc catalogDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toDomain())
	}
	return out, cur.Err()
}

func (r *CatalogRepository) SaveAsset(ctx context.Context, asset domaincatalog.Asset) error {
	doc := assetDocument{
		ID:          asset.ID,
		Owner:       string(asset.Owner),
		URL:         asset.URL,
		ContentType: asset.ContentType,
		Size:        asset.Size,
		CreatedAt:   millis(asset.CreatedAt),
	}
	_, err := r.assets.ReplaceOne(ctx, bson.M{"_id": asset.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (r *CatalogRepository) AssetByID(ctx context.Context, id string) (domaincatalog.Asset, error) {
	var doc assetDocument
	if err := r.assets.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domaincatalog.Asset{}, domaincatalog.ErrAssetNotFound
		}
		return domaincatalog.Asset{}, err
	}
	return domaincatalog.Asset{
		ID:          doc.ID,
		Owner:       domaincatalog.OwnerID(doc.Owner),
		URL:         doc.URL,
		ContentType: doc.ContentType,
		Size:        doc.Size,
		CreatedAt:   fromMillis(doc.CreatedAt),
	}, nil
}

type imageDocument struct {
	AssetID string `bson:"asset_id"`
	URL     string `bson:"url"`
}

type catalogDocument struct {
	ID          string          `bson:"_id"`
	Kind        string          `bson:"kind"`
	Owner       string          `bson:"owner"`
	Title       string          `bson:"title"`
	Slug        string          `bson:"slug"`
	Description string          `bson:"description,omitempty"`
	Tags        []string        `bson:"tags,omitempty"`
	Category    string          `bson:"category,omitempty"`
	Condition   string          `bson:"condition,omitempty"`
	Price       int64           `bson:"price"`
	Negotiable  bool            `bson:"negotiable"`
	Location    string          `bson:"location,omitempty"`
	Gender      string          `bson:"gender,omitempty"`
	RoomType    string          `bson:"room_type,omitempty"`
	Urgency     string          `bson:"urgency,omitempty"`
	Images      []imageDocument `bson:"images,omitempty"`
	Active      bool            `bson:"active"`
	CreatedAt   int64           `bson:"created_at"`
	UpdatedAt   int64           `bson:"updated_at"`
}

func newCatalogDocument(d *domaincatalog.Document) catalogDocument {
	images := make([]imageDocument, 0, len(d.Images))
	for _, img := range d.Images {
		images = append(images, imageDocument{AssetID: img.AssetID, URL: img.URL})
	}
	return catalogDocument{
		ID:          string(d.ID),
		Kind:        string(d.Kind),
		Owner:       string(d.Owner),
		Title:       d.Title,
		Slug:        d.Slug,
		Description: d.Description,
		Tags:        append([]string(nil), d.Tags...),
		Category:    d.Category,
		Condition:   string(d.Condition),
		Price:       d.Price,
		Negotiable:  d.Negotiable,
		Location:    d.Location,
		Gender:      d.Gender,
		RoomType:    d.RoomType,
		Urgency:     d.Urgency,
		Images:      images,
		Active:      d.Active,
		CreatedAt:   millis(d.CreatedAt),
		UpdatedAt:   millis(d.UpdatedAt),
	}
}

func (d catalogDocument) toDomain() *domaincatalog.Document {
	images := make([]domaincatalog.Image, 0, len(d.Images))
	for _, img := range d.Images {
		images = append(images, domaincatalog.Image{AssetID: img.AssetID, URL: img.URL})
	}
	return &domaincatalog.Document{
		ID:          domaincatalog.DocumentID(d.ID),
		Kind:        domaincatalog.Kind(d.Kind),
		Owner:       domaincatalog.OwnerID(d.Owner),
		Title:       d.Title,
		Slug:        d.Slug,
		Description: d.Description,
		Tags:        d.Tags,
		Category:    d.Category,
		Condition:   domaincatalog.Condition(d.Condition),
		Price:       d.Price,
		Negotiable:  d.Negotiable,
		Location:    d.Location,
		Gender:      d.Gender,
		RoomType:    d.RoomType,
		Urgency:     d.Urgency,
		Images:      images,
		Active:      d.Active,
		CreatedAt:   fromMillis(d.CreatedAt),
		UpdatedAt:   fromMillis(d.UpdatedAt),
	}
}

type assetDocument struct {
	ID          string `bson:"_id"`
	Owner       string `bson:"owner"`
	URL         string `bson:"url"`
	ContentType string `bson:"content_type"`
	Size        int64  `bson:"size"`
	CreatedAt   int64  `bson:"created_at"`
}

var _ domaincatalog.Repository = (*CatalogRepository)(nil)
