package gateway

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/arencloud/janus/internal/pathguard"
)

// Bucket is a top-level namespace in the tenant's tree. Buckets are plain
// directories under the tenant root for every provider; cloud keys are
// prefixed with the bucket name.
type Bucket struct {
	Name       string `json:"name"`
	ObjectsNum int    `json:"objects"`
}

// Buckets lists the tenant's buckets sorted by name.
func (g *Gateway) Buckets(ctx context.Context, tc *TenantContext) ([]Bucket, error) {
	entries, err := os.ReadDir(tc.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return []Bucket{}, nil
		}
		return nil, err
	}
	out := make([]Bucket, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		children, _ := os.ReadDir(filepath.Join(tc.Root, e.Name()))
		out = append(out, Bucket{Name: e.Name(), ObjectsNum: len(children)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CreateBucket makes the bucket directory. Creating an existing bucket is a
// no-op success.
func (g *Gateway) CreateBucket(ctx context.Context, tc *TenantContext, name string) error {
	key, err := pathguard.CleanRelative(name)
	if err != nil {
		return err
	}
	if key == "" {
		return ErrNotFound
	}
	return g.local(tc).MkdirAll(key)
}

// RenameBucket moves the bucket directory. It conflicts when the new name
// already exists and reports ErrNotFound for a missing source.
func (g *Gateway) RenameBucket(ctx context.Context, tc *TenantContext, oldName, newName string) error {
	src, err := pathguard.Resolve(tc.Root, oldName)
	if err != nil {
		return err
	}
	dst, err := pathguard.Resolve(tc.Root, newName)
	if err != nil {
		return err
	}
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	if _, err := os.Stat(dst); err == nil {
		return ErrConflict
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.Rename(src, dst)
}

// DeleteBucket removes the bucket subtree. Deleting a missing bucket
// succeeds.
func (g *Gateway) DeleteBucket(ctx context.Context, tc *TenantContext, name string) error {
	key, err := pathguard.CleanRelative(name)
	if err != nil {
		return err
	}
	if key == "" {
		return ErrNotFound
	}
	return g.local(tc).Delete(ctx, key)
}
