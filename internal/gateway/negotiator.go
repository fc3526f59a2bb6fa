package gateway

import (
	"context"
	"fmt"
	"net/url"
	"path"

	"github.com/arencloud/janus/internal/pathguard"
	"github.com/arencloud/janus/internal/policy"
	"github.com/arencloud/janus/internal/provider"
)

// NegotiationRequest carries the client-declared upload intent. Size and
// content type are untrusted until the bytes arrive.
type NegotiationRequest struct {
	Bucket      string `json:"bucket"`
	Path        string `json:"path"`
	Name        string `json:"name"`
	ContentType string `json:"type"`
	Size        int64  `json:"size"`
}

// Decision tells the client where and how to put the bytes. For proxy
// uploads the URL is the gateway's own ingestion endpoint; for direct
// uploads it points at the provider and expires with the underlying grant.
type Decision struct {
	Strategy policy.Strategy   `json:"strategy"`
	Provider string            `json:"provider"`
	Key      string            `json:"key"`
	URL      string            `json:"url"`
	Method   string            `json:"method"`
	Headers  map[string]string `json:"headers,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// Negotiate runs the optimistic policy check on the declared values and
// picks the upload strategy. Local tenants always proxy; cloud tenants go
// direct when their adapter can mint scoped upload instructions. A policy
// violation is returned before any adapter call is made.
func (g *Gateway) Negotiate(ctx context.Context, tc *TenantContext, req NegotiationRequest) (*Decision, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: file name required", ErrNotFound)
	}
	key, err := pathguard.CleanRelative(path.Join(req.Bucket, req.Path, req.Name))
	if err != nil {
		return nil, err
	}

	adapter, err := g.adapterFor(ctx, tc)
	if err != nil {
		return nil, err
	}

	strategy := policy.StrategyProxy
	if adapter.Name() != provider.Local && adapter.SupportsDirect() {
		strategy = policy.StrategyDirect
	}
	if v := tc.Engine.CheckIngestion(req.Name, req.Size, strategy); v != nil {
		return nil, v
	}

	if strategy == policy.StrategyProxy {
		return &Decision{
			Strategy: policy.StrategyProxy,
			Provider: adapter.Name(),
			Key:      key,
			URL:      fmt.Sprintf("/api/v1/buckets/%s/objects", url.PathEscape(req.Bucket)),
			Method:   "POST",
		}, nil
	}

	du, err := adapter.NegotiateDirect(ctx, key, req.ContentType, req.Size)
	if err != nil {
		return nil, err
	}
	return &Decision{
		Strategy: policy.StrategyDirect,
		Provider: adapter.Name(),
		Key:      key,
		URL:      du.URL,
		Method:   du.Method,
		Headers:  du.Headers,
		Fields:   du.Fields,
	}, nil
}
