package policies

import (
	"context"
	"io"
)

// Notifier delivers a templated transactional email.
type Notifier interface {
	Send(ctx context.Context, template string, params map[string]string) error
}

// Publisher pushes an event onto a realtime channel.
type Publisher interface {
	Publish(ctx context.Context, channel, event string, data any) error
}

// AssetStorage stores uploaded binaries and returns their public URL. Remove
// treats a missing object as success.
type AssetStorage interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error)
	Remove(ctx context.Context, key string) error
}
