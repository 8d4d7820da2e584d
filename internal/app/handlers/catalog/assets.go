package catalog

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"mujthriftz/internal/app/commands"
	"mujthriftz/internal/app/dto"
	"mujthriftz/internal/app/policies"
	domaincatalog "mujthriftz/internal/domain/catalog"
)

const uploadAssetKey = "catalog.assets.upload"

// MaxAssetSize bounds a single uploaded image.
const MaxAssetSize = 10 << 20

var (
	ErrAssetTooLarge       = errors.New("catalog: asset exceeds size limit")
	ErrUnsupportedAsset    = errors.New("catalog: only image uploads are accepted")
	ErrStorageUnavailable  = errors.New("catalog: asset storage unavailable")
	allowedImageExtensions = map[string]string{
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"image/webp": ".webp",
		"image/gif":  ".gif",
	}
)

type UploadAssetCommand struct {
	OwnerID     string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

func (c UploadAssetCommand) Key() string     { return uploadAssetKey }
func (c UploadAssetCommand) ActorID() string { return c.OwnerID }

func (c UploadAssetCommand) Validate() error {
	if c.Size > MaxAssetSize {
		return ErrAssetTooLarge
	}
	if _, ok := allowedImageExtensions[normalizeContentType(c.ContentType)]; !ok {
		return ErrUnsupportedAsset
	}
	return nil
}

type UploadAssetHandler struct {
	Repo    domaincatalog.Repository
	Storage policies.AssetStorage
	Logger  *slog.Logger
	Now     func() time.Time
}

func (h *UploadAssetHandler) Handle(ctx context.Context, cmd UploadAssetCommand) (dto.Asset, error) {
	if h.Storage == nil {
		return dto.Asset{}, ErrStorageUnavailable
	}
	if cmd.Body == nil {
		return dto.Asset{}, ErrUnsupportedAsset
	}
	contentType := normalizeContentType(cmd.ContentType)
	ext, ok := allowedImageExtensions[contentType]
	if !ok {
		return dto.Asset{}, ErrUnsupportedAsset
	}
	id := uuid.NewString()
	key := path.Join("assets", strings.TrimSpace(cmd.OwnerID), id+ext)
	// one extra byte tells an oversized stream apart from an exact fit
	data, err := io.ReadAll(io.LimitReader(cmd.Body, MaxAssetSize+1))
	if err != nil {
		return dto.Asset{}, err
	}
	if len(data) > MaxAssetSize {
		return dto.Asset{}, ErrAssetTooLarge
	}
	url, err := h.Storage.Upload(ctx, key, bytes.NewReader(data), contentType)
	if err != nil {
		return dto.Asset{}, err
	}
	asset := domaincatalog.Asset{
		ID:          id,
		Owner:       domaincatalog.OwnerID(cmd.OwnerID),
		URL:         url,
		ContentType: contentType,
		Size:        int64(len(data)),
		CreatedAt:   nowFrom(h.Now).UTC(),
	}
	if err := h.Repo.SaveAsset(ctx, asset); err != nil {
		// nothing references the object yet
		if rmErr := h.Storage.Remove(ctx, key); rmErr != nil && h.Logger != nil {
			h.Logger.Warn("orphaned asset left in storage", "key", key, "error", rmErr)
		}
		return dto.Asset{}, err
	}
	if h.Logger != nil {
		h.Logger.Info("asset uploaded", "asset_id", id, "owner_id", cmd.OwnerID, "size", len(data))
	}
	return dto.MapAsset(asset), nil
}

func normalizeContentType(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	if idx := strings.IndexByte(value, ';'); idx >= 0 {
		value = strings.TrimSpace(value[:idx])
	}
	if value == "image/jpg" {
		value = "image/jpeg"
	}
	return value
}

var _ commands.Handler[UploadAssetCommand, dto.Asset] = (*UploadAssetHandler)(nil)
