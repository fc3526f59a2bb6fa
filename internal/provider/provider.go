// Package provider implements the storage backend contract: one adapter per
// provider, selected by the tenant's StorageConfig discriminant. Adapters
// expose upload negotiation (direct writes), proxy finalization, and delete;
// backends with a listing or server-side move capability additionally
// implement Lister or Mover.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arencloud/janus/internal/models"
)

// Provider discriminants, matching models.StorageConfig.Provider.
const (
	Local      = "local"
	S3         = "s3"
	Cloudinary = "cloudinary"
	ImageKit   = "imagekit"
	GDrive     = "gdrive"
	OneDrive   = "onedrive"
	Dropbox    = "dropbox"
)

var (
	ErrUnknownProvider   = errors.New("provider: unknown provider type")
	ErrInvalidConfig     = errors.New("provider: invalid configuration")
	ErrDirectUnsupported = errors.New("provider: direct uploads not supported")
	ErrUploadFailed      = errors.New("provider: upload failed")
	ErrDeleteFailed      = errors.New("provider: delete failed")
	ErrNotFound          = errors.New("provider: object not found")
)

// DirectUpload is the instruction set a client needs to write bytes straight
// to the backend: either a signed URL with method/headers, or a multi-field
// POST descriptor. It expires implicitly with the underlying credential.
type DirectUpload struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ObjectInfo is the provider-agnostic view of a stored object or synthetic
// folder node.
type ObjectInfo struct {
	Key        string
	Name       string
	Size       int64
	ModifiedAt time.Time
	IsDir      bool
}

// Adapter is the closed storage backend contract.
type Adapter interface {
	Name() string
	SupportsDirect() bool
	// NegotiateDirect mints upload instructions scoped to exactly one key.
	NegotiateDirect(ctx context.Context, key, contentType string, size int64) (*DirectUpload, error)
	// Upload commits already-received bytes (the proxy path) and returns the
	// stored location (key or provider URL).
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	// Delete removes an object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Lister is implemented by adapters that can enumerate one level of a key
// prefix (folders derived synthetically from delimiters).
type Lister interface {
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// Mover is implemented by adapters with a server-side copy, allowing move
// without pulling bytes through the gateway.
type Mover interface {
	Move(ctx context.Context, srcKey, dstKey string) error
}

// Options carries gateway-level knobs shared by all adapters.
type Options struct {
	LocalRoot    string // tenant root directory for the local provider
	SignedURLTTL time.Duration
	HTTPClient   *http.Client // used by REST adapters; nil means http.DefaultClient
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return http.DefaultClient
}

func (o Options) ttl() time.Duration {
	if o.SignedURLTTL > 0 {
		return o.SignedURLTTL
	}
	return 15 * time.Minute
}

// FromConfig builds the adapter selected by the tenant's storage config.
// The context is only used by adapters that refresh OAuth credentials.
func FromConfig(ctx context.Context, cfg models.StorageConfig, opts Options) (Adapter, error) {
	switch cfg.Provider {
	case Local, "":
		return NewLocal(opts.LocalRoot), nil
	case S3:
		return NewS3(cfg, opts)
	case Cloudinary:
		return NewCloudinary(cfg, opts)
	case ImageKit:
		return NewImageKit(cfg, opts)
	case GDrive:
		return NewGoogleDrive(ctx, cfg, opts)
	case OneDrive:
		return NewOneDrive(ctx, cfg, opts)
	case Dropbox:
		return NewDropbox(cfg, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
