package media

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const defaultSignedURLTTL = 24 * time.Hour

// Signer is satisfied by *storage.BucketHandle.
type Signer interface {
	SignedURL(object string, opts *storage.SignedURLOptions) (string, error)
}

// Resolver turns stored icon references into URLs clients can fetch.
type Resolver struct {
	signer Signer
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewResolver signs object paths with signer. A nil signer passes every reference through.
func NewResolver(signer Signer, ttl time.Duration, logger *slog.Logger) *Resolver {
	if ttl <= 0 {
		ttl = defaultSignedURLTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{signer: signer, ttl: ttl, now: time.Now, logger: logger}
}

// NewGCSResolver opens a Cloud Storage client for bucketName. The returned
// close function releases the client.
func NewGCSResolver(ctx context.Context, bucketName string, ttl time.Duration, logger *slog.Logger) (*Resolver, func() error, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return NewResolver(client.Bucket(bucketName), ttl, logger), client.Close, nil
}

// Resolve returns raw unchanged when it is empty, already absolute or no
// bucket is configured; otherwise a V4 signed GET URL for the object path.
func (r *Resolver) Resolve(_ context.Context, raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return trimmed
	}
	if r == nil || r.signer == nil {
		return trimmed
	}

	object := strings.TrimPrefix(trimmed, "/")
	url, err := r.signer.SignedURL(object, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: r.now().Add(r.ttl),
	})
	if err != nil {
		r.logger.Warn("sign icon url failed", slog.String("object", object), slog.Any("error", err))
		return ""
	}
	return url
}
