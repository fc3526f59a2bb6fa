package provider

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/arencloud/janus/internal/pathguard"
)

// LocalFS stores objects as plain files under a tenant root directory. It is
// the only adapter with a full recursive view of the tree, so search and
// folder operations are local-provider features.
type LocalFS struct {
	root string
}

func NewLocal(root string) *LocalFS {
	return &LocalFS{root: filepath.Clean(root)}
}

func (l *LocalFS) Name() string         { return Local }
func (l *LocalFS) SupportsDirect() bool { return false }

func (l *LocalFS) NegotiateDirect(ctx context.Context, key, contentType string, size int64) (*DirectUpload, error) {
	return nil, ErrDirectUnsupported
}

// Upload streams bytes into the resolved path, creating parent directories.
func (l *LocalFS) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	dst, err := pathguard.Resolve(l.root, key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dst)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return key, nil
}

// Place finalizes a staged upload by renaming the temporary file into its
// final location. When the staging area and the tenant tree sit on different
// devices the rename fails with EXDEV and we fall back to copy-then-delete;
// the window between the two steps is a documented non-atomic gap.
func (l *LocalFS) Place(tmpPath, key string) error {
	dst, err := pathguard.Resolve(l.root, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	err = os.Rename(tmpPath, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if err := copyFile(tmpPath, dst); err != nil {
		return err
	}
	return os.Remove(tmpPath)
}

// Delete removes a file or folder subtree. Idempotent: a missing path
// succeeds.
func (l *LocalFS) Delete(ctx context.Context, key string) error {
	p, err := pathguard.Resolve(l.root, key)
	if err != nil {
		return err
	}
	return os.RemoveAll(p)
}

// List returns the direct children of a directory, sorted by name. A missing
// directory yields an empty list, not an error.
func (l *LocalFS) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	dir, err := pathguard.Resolve(l.root, prefix)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []ObjectInfo{}, nil
		}
		return nil, err
	}
	out := make([]ObjectInfo, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		oi := ObjectInfo{
			Key:        joinKey(prefix, e.Name()),
			Name:       e.Name(),
			ModifiedAt: info.ModTime(),
			IsDir:      e.IsDir(),
		}
		if !e.IsDir() {
			oi.Size = info.Size()
		}
		out = append(out, oi)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Move renames src to dst with the same cross-device fallback as Place.
func (l *LocalFS) Move(ctx context.Context, srcKey, dstKey string) error {
	src, err := pathguard.Resolve(l.root, srcKey)
	if err != nil {
		return err
	}
	dst, err := pathguard.Resolve(l.root, dstKey)
	if err != nil {
		return err
	}
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	err = os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// Search walks the tree under prefix and returns files whose name contains
// the query, case-insensitive.
func (l *LocalFS) Search(ctx context.Context, prefix, query string) ([]ObjectInfo, error) {
	base, err := pathguard.Resolve(l.root, prefix)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var out []ObjectInfo
	err = filepath.WalkDir(base, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if p == base {
			return nil
		}
		if !strings.Contains(strings.ToLower(d.Name()), q) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return nil
		}
		oi := ObjectInfo{
			Key:        filepath.ToSlash(rel),
			Name:       d.Name(),
			ModifiedAt: info.ModTime(),
			IsDir:      d.IsDir(),
		}
		if !d.IsDir() {
			oi.Size = info.Size()
		}
		out = append(out, oi)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []ObjectInfo{}
	}
	return out, nil
}

// MkdirAll creates a folder subtree under the root.
func (l *LocalFS) MkdirAll(key string) error {
	p, err := pathguard.Resolve(l.root, key)
	if err != nil {
		return err
	}
	return os.MkdirAll(p, 0o755)
}

// Exists reports whether a key resolves to an existing file or directory.
func (l *LocalFS) Exists(key string) (bool, error) {
	p, err := pathguard.Resolve(l.root, key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

func joinKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

var (
	_ Adapter = (*LocalFS)(nil)
	_ Lister  = (*LocalFS)(nil)
	_ Mover   = (*LocalFS)(nil)
)
