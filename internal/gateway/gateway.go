package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/arencloud/janus/internal/logging"
	"github.com/arencloud/janus/internal/models"
	"github.com/arencloud/janus/internal/policy"
	"github.com/arencloud/janus/internal/provider"
)

var (
	ErrNotFound          = errors.New("gateway: not found")
	ErrConflict          = errors.New("gateway: name already exists")
	ErrSignatureMismatch = errors.New("gateway: content does not match claimed type")
)

// TenantContext carries everything a single request needs about its tenant:
// the resolved storage configuration, the policy engine built from the
// tenant's governance rules, and the tenant's private directory root.
type TenantContext struct {
	Tenant models.Tenant
	Config models.StorageConfig
	Engine *policy.Engine
	Root   string
}

// Gateway implements upload negotiation and the bucket/object lifecycle on
// top of the per-tenant storage adapter. It holds no per-request state.
type Gateway struct {
	log     logging.Logger
	staging string
	ttl     time.Duration
	client  *http.Client

	// adapterFor is swappable in tests to avoid real cloud clients.
	adapterFor func(ctx context.Context, tc *TenantContext) (provider.Adapter, error)
}

func New(log logging.Logger, staging string, ttl time.Duration) *Gateway {
	g := &Gateway{log: log, staging: staging, ttl: ttl}
	g.adapterFor = g.buildAdapter
	return g
}

func (g *Gateway) buildAdapter(ctx context.Context, tc *TenantContext) (provider.Adapter, error) {
	return provider.FromConfig(ctx, tc.Config, provider.Options{
		LocalRoot:    tc.Root,
		SignedURLTTL: g.ttl,
		HTTPClient:   g.client,
	})
}

// local returns the tenant-root filesystem view. Bucket management, folder
// creation and search always operate on this tree regardless of provider.
func (g *Gateway) local(tc *TenantContext) *provider.LocalFS {
	return provider.NewLocal(tc.Root)
}

func (g *Gateway) isLocal(tc *TenantContext) bool {
	return tc.Config.Provider == "" || tc.Config.Provider == provider.Local
}
