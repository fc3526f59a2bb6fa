package provider

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/arencloud/janus/internal/models"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
)

// DropboxFS stores objects under a Dropbox app folder. Direct uploads use
// temporary upload links: Dropbox mints a short-lived URL the client POSTs
// the raw bytes to with Content-Type application/octet-stream.
type DropboxFS struct {
	client files.Client
	root   string
}

func NewDropbox(cfg models.StorageConfig, opts Options) (*DropboxFS, error) {
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("%w: dropbox requires an access token", ErrInvalidConfig)
	}
	dc := dropbox.Config{Token: cfg.AccessToken}
	return &DropboxFS{client: files.New(dc), root: strings.Trim(cfg.RootFolderID, "/")}, nil
}

func (d *DropboxFS) Name() string         { return Dropbox }
func (d *DropboxFS) SupportsDirect() bool { return true }

// dropboxPath prefixes the key with the configured root folder. Dropbox
// paths are absolute and slash-rooted.
func (d *DropboxFS) dropboxPath(key string) string {
	p := strings.Trim(key, "/")
	if d.root != "" {
		p = d.root + "/" + p
	}
	return "/" + p
}

func (d *DropboxFS) NegotiateDirect(ctx context.Context, key, contentType string, size int64) (*DirectUpload, error) {
	ci := files.NewCommitInfo(d.dropboxPath(key))
	ci.Mode = &files.WriteMode{Tagged: dropbox.Tagged{Tag: files.WriteModeOverwrite}}
	res, err := d.client.GetTemporaryUploadLink(files.NewGetTemporaryUploadLinkArg(ci))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return &DirectUpload{
		URL:     res.Link,
		Method:  "POST",
		Headers: map[string]string{"Content-Type": "application/octet-stream"},
	}, nil
}

func (d *DropboxFS) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	arg := files.NewUploadArg(d.dropboxPath(key))
	arg.Mode = &files.WriteMode{Tagged: dropbox.Tagged{Tag: files.WriteModeOverwrite}}
	meta, err := d.client.Upload(arg, r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return meta.PathDisplay, nil
}

func (d *DropboxFS) Delete(ctx context.Context, key string) error {
	_, err := d.client.DeleteV2(files.NewDeleteArg(d.dropboxPath(key)))
	if err != nil {
		if strings.Contains(err.Error(), "not_found") {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

// List enumerates the immediate children of a prefix. A missing folder
// yields an empty listing.
func (d *DropboxFS) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	p := d.dropboxPath(prefix)
	if p == "/" {
		p = ""
	}
	res, err := d.client.ListFolder(files.NewListFolderArg(p))
	if err != nil {
		if strings.Contains(err.Error(), "not_found") {
			return []ObjectInfo{}, nil
		}
		return nil, err
	}
	out := make([]ObjectInfo, 0, len(res.Entries))
	for {
		for _, e := range res.Entries {
			switch m := e.(type) {
			case *files.FileMetadata:
				out = append(out, ObjectInfo{
					Key:        strings.TrimPrefix(m.PathDisplay, "/"),
					Name:       m.Name,
					Size:       int64(m.Size),
					ModifiedAt: m.ServerModified,
				})
			case *files.FolderMetadata:
				out = append(out, ObjectInfo{
					Key:   strings.TrimPrefix(m.PathDisplay, "/"),
					Name:  m.Name,
					IsDir: true,
				})
			}
		}
		if !res.HasMore {
			break
		}
		res, err = d.client.ListFolderContinue(files.NewListFolderContinueArg(res.Cursor))
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *DropboxFS) Move(ctx context.Context, fromKey, toKey string) error {
	arg := files.NewRelocationArg(d.dropboxPath(fromKey), d.dropboxPath(toKey))
	if _, err := d.client.MoveV2(arg); err != nil {
		if strings.Contains(err.Error(), "not_found") {
			return ErrNotFound
		}
		return err
	}
	return nil
}

var (
	_ Adapter = (*DropboxFS)(nil)
	_ Lister  = (*DropboxFS)(nil)
	_ Mover   = (*DropboxFS)(nil)
)
