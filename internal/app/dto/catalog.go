package dto

import (
	"time"

	domaincatalog "mujthriftz/internal/domain/catalog"
)

type Image struct {
	AssetID string `json:"asset_id"`
	URL     string `json:"url"`
}

type Document struct {
	ID          string    `json:"id"`
	Type        string    `json:"_type"`
	Owner       string    `json:"owner_id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Category    string    `json:"category,omitempty"`
	Condition   string    `json:"condition,omitempty"`
	Price       int64     `json:"price"`
	Negotiable  bool      `json:"negotiable,omitempty"`
	Location    string    `json:"location,omitempty"`
	Gender      string    `json:"gender,omitempty"`
	RoomType    string    `json:"room_type,omitempty"`
	Urgency     string    `json:"urgency,omitempty"`
	Images      []Image   `json:"images"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type DocumentList struct {
	Items []Document `json:"items"`
	Total int        `json:"total"`
}

type Asset struct {
	AssetID     string `json:"asset_id"`
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size"`
}

// Wishlist is a scope's saved documents after stale ids were dropped.
type Wishlist struct {
	IDs   []string   `json:"ids"`
	Items []Document `json:"items"`
}

type WishlistToggle struct {
	ID     string `json:"id"`
	Saved  bool   `json:"saved"`
	Length int    `json:"length"`
}

func MapDocument(doc *domaincatalog.Document) Document {
	if doc == nil {
		return Document{}
	}
	images := make([]Image, 0, len(doc.Images))
	for _, img := range doc.Images {
		images = append(images, Image{AssetID: img.AssetID, URL: img.URL})
	}
	return Document{
		ID:          string(doc.ID),
		Type:        string(doc.Kind),
		Owner:       string(doc.Owner),
		Title:       doc.Title,
		Slug:        doc.Slug,
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
		Images:      images,
		Active:      doc.Active,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

func MapDocuments(items []*domaincatalog.Document) DocumentList {
	out := DocumentList{Items: make([]Document, 0, len(items)), Total: len(items)}
	for _, doc := range items {
		out.Items = append(out.Items, MapDocument(doc))
	}
	return out
}

func MapAsset(asset domaincatalog.Asset) Asset {
	return Asset{AssetID: asset.ID, URL: asset.URL, ContentType: asset.ContentType, Size: asset.Size}
}
