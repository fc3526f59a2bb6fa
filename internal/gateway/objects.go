package gateway

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/arencloud/janus/internal/pathguard"
	"github.com/arencloud/janus/internal/policy"
	"github.com/arencloud/janus/internal/provider"
	"github.com/arencloud/janus/internal/signature"
)

// Receipt describes a committed proxy upload.
type Receipt struct {
	Provider string `json:"provider"`
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	Location string `json:"location,omitempty"`
}

// MoveReport carries the partial-failure outcome of a batch move.
type MoveReport struct {
	Moved    int           `json:"moved"`
	Failures []MoveFailure `json:"failures,omitempty"`
}

type MoveFailure struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// List enumerates one directory level. A missing directory is an empty
// listing. Adapters without a listing contract yield empty as well.
func (g *Gateway) List(ctx context.Context, tc *TenantContext, bucket, relPath string) ([]provider.ObjectInfo, error) {
	key, err := pathguard.CleanRelative(path.Join(bucket, relPath))
	if err != nil {
		return nil, err
	}
	adapter, err := g.adapterFor(ctx, tc)
	if err != nil {
		return nil, err
	}
	lister, ok := adapter.(provider.Lister)
	if !ok {
		return []provider.ObjectInfo{}, nil
	}
	return lister.List(ctx, key)
}

// Search walks the bucket subtree (or the whole tenant root when bucket is
// empty) matching file names case-insensitively. Only the local provider
// supports recursion; others return an empty result.
func (g *Gateway) Search(ctx context.Context, tc *TenantContext, bucket, query string) ([]provider.ObjectInfo, error) {
	if !g.isLocal(tc) {
		return []provider.ObjectInfo{}, nil
	}
	prefix, err := pathguard.CleanRelative(bucket)
	if err != nil {
		return nil, err
	}
	return g.local(tc).Search(ctx, prefix, query)
}

// CreateFolder materializes a folder node. Providers without real folders
// treat this as a no-op success; their folders appear when keys are written.
func (g *Gateway) CreateFolder(ctx context.Context, tc *TenantContext, bucket, relPath, name string) error {
	key, err := pathguard.CleanRelative(path.Join(bucket, relPath, name))
	if err != nil {
		return err
	}
	if !g.isLocal(tc) {
		return nil
	}
	return g.local(tc).MkdirAll(key)
}

// ReceiveUpload is the proxy ingestion path. Bytes are staged to a private
// temp file, then the policy check reruns against the received size and the
// content signature is verified before anything is committed. Rejection at
// any step removes the staged bytes.
func (g *Gateway) ReceiveUpload(ctx context.Context, tc *TenantContext, bucket, relPath, name string, r io.Reader) (*Receipt, error) {
	key, err := pathguard.CleanRelative(path.Join(bucket, relPath, name))
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(g.staging, 0o755); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(g.staging, "upload-*")
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()
	received, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return nil, err
	}

	ext := policy.Ext(name)
	if v := tc.Engine.CheckIngestion(name, received, policy.StrategyProxy); v != nil {
		os.Remove(tmpPath)
		return nil, v
	}
	ok, err := signature.Verify(tmpPath, ext)
	if err != nil {
		os.Remove(tmpPath)
		return nil, err
	}
	if !ok {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: %s", ErrSignatureMismatch, name)
	}

	if g.isLocal(tc) {
		if err := g.local(tc).Place(tmpPath, key); err != nil {
			os.Remove(tmpPath)
			return nil, err
		}
		return &Receipt{Provider: provider.Local, Key: key, Size: received}, nil
	}

	defer os.Remove(tmpPath)
	adapter, err := g.adapterFor(ctx, tc)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(tmpPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	loc, err := adapter.Upload(ctx, key, f, received, "")
	if err != nil {
		return nil, err
	}
	return &Receipt{Provider: adapter.Name(), Key: key, Size: received, Location: loc}, nil
}

// Move relocates each path into destination, keeping the base name. One
// failed item does not abort the rest.
func (g *Gateway) Move(ctx context.Context, tc *TenantContext, bucket string, paths []string, destination string) (*MoveReport, error) {
	adapter, err := g.adapterFor(ctx, tc)
	if err != nil {
		return nil, err
	}
	mover, ok := adapter.(provider.Mover)
	if !ok {
		report := &MoveReport{}
		for _, p := range paths {
			report.Failures = append(report.Failures, MoveFailure{Path: p, Reason: "provider does not support move"})
		}
		return report, nil
	}

	report := &MoveReport{}
	for _, p := range paths {
		srcKey, err := pathguard.CleanRelative(path.Join(bucket, p))
		if err != nil {
			report.Failures = append(report.Failures, MoveFailure{Path: p, Reason: err.Error()})
			continue
		}
		dstKey, err := pathguard.CleanRelative(path.Join(bucket, destination, filepath.Base(p)))
		if err != nil {
			report.Failures = append(report.Failures, MoveFailure{Path: p, Reason: err.Error()})
			continue
		}
		if err := mover.Move(ctx, srcKey, dstKey); err != nil {
			g.log.Error("object move failed", "tenant", tc.Tenant.Slug, "path", p, "error", err.Error())
			report.Failures = append(report.Failures, MoveFailure{Path: p, Reason: err.Error()})
			continue
		}
		report.Moved++
	}
	return report, nil
}

// Delete removes a file or folder subtree. Missing targets succeed.
func (g *Gateway) Delete(ctx context.Context, tc *TenantContext, bucket, relPath string) error {
	key, err := pathguard.CleanRelative(path.Join(bucket, relPath))
	if err != nil {
		return err
	}
	adapter, err := g.adapterFor(ctx, tc)
	if err != nil {
		return err
	}
	return adapter.Delete(ctx, key)
}

// OpenLocal opens a stored file for download. Only local tenants serve
// bytes back through the gateway.
func (g *Gateway) OpenLocal(tc *TenantContext, bucket, relPath string) (*os.File, os.FileInfo, error) {
	if !g.isLocal(tc) {
		return nil, nil, fmt.Errorf("%w: downloads are proxied only for local storage", ErrNotFound)
	}
	abs, err := pathguard.Resolve(tc.Root, path.Join(bucket, relPath))
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if fi.IsDir() {
		f.Close()
		return nil, nil, ErrNotFound
	}
	return f, fi, nil
}
