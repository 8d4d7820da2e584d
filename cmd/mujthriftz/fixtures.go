package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	domaincatalog "mujthriftz/internal/domain/catalog"
)

type catalogFixture struct {
	ID          string   `json:"id"`
	Type        string   `json:"_type"`
	Owner       string   `json:"owner_id"`
	Title       string   `json:"title"`
	Slug        string   `json:"slug"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Category    string   `json:"category"`
	Condition   string   `json:"condition"`
	Price       int64    `json:"price"`
	Negotiable  bool     `json:"negotiable"`
	Location    string   `json:"location"`
	Gender      string   `json:"gender"`
	RoomType    string   `json:"room_type"`
	Urgency     string   `json:"urgency"`
	ImageURLs   []string `json:"image_urls"`
	CreatedAt   string   `json:"created_at"`
}

// loadCatalogFixtures seeds documents from a JSON file. Documents whose slug already
// exists are left alone so restarting against a persistent store is harmless.
func (a *application) loadCatalogFixtures(ctx context.Context, path string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("catalog fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	if len(data) == 0 {
		logger.Warn("catalog fixtures file empty", "path", path)
		return nil
	}

	var fixtures []catalogFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}

	now := time.Now()
	imported := 0
	for _, fx := range fixtures {
		kind, err := domaincatalog.ParseKind(fx.Type)
		if err != nil {
			logger.Error("fixture has unknown type", "document_id", fx.ID, "type", fx.Type)
			continue
		}
		slug := fx.Slug
		if strings.TrimSpace(slug) == "" {
			slug = domaincatalog.Slugify(fx.Title)
		}
		images := make([]domaincatalog.Image, 0, len(fx.ImageURLs))
		for _, url := range fx.ImageURLs {
			images = append(images, domaincatalog.Image{URL: url})
		}
		doc, err := domaincatalog.NewDocument(domaincatalog.CreateParams{
			ID:    domaincatalog.DocumentID(fx.ID),
			Kind:  kind,
			Owner: domaincatalog.OwnerID(fx.Owner),
			Slug:  slug,
			Attributes: domaincatalog.Attributes{
				Title:       fx.Title,
				Description: fx.Description,
				Tags:        append([]string(nil), fx.Tags...),
				Category:    fx.Category,
				Condition:   fx.Condition,
				Price:       fx.Price,
				Negotiable:  fx.Negotiable,
				Location:    fx.Location,
				Gender:      fx.Gender,
				RoomType:    fx.RoomType,
				Urgency:     fx.Urgency,
				Images:      images,
			},
			Now: parseFixtureTime(fx.CreatedAt, now),
		})
		if err != nil {
			logger.Error("fixture invalid", "document_id", fx.ID, "error", err)
			continue
		}
		if err := a.catalog.Create(ctx, doc); err != nil {
			if errors.Is(err, domaincatalog.ErrSlugTaken) {
				continue
			}
			logger.Error("cannot store fixture document", "document_id", fx.ID, "error", err)
			continue
		}
		imported++
	}
	logger.Info("catalog fixtures imported", "count", imported, "path", path)
	return nil
}

func parseFixtureTime(value string, fallback time.Time) time.Time {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return fallback
}

func defaultFixturesPath() string {
	candidates := []string{
		filepath.Join("data", "catalog.json"),
		filepath.Join("..", "..", "data", "catalog.json"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return candidates[0]
}
