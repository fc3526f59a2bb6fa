package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/arencloud/janus/internal/models"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GoogleDrive maps object keys onto a Drive folder tree rooted at a
// configured folder. Direct uploads hand the client a resumable upload
// session URI; the client PUTs the bytes straight to Google.
type GoogleDrive struct {
	svc    *drive.Service
	ts     oauth2.TokenSource
	rootID string
	client *http.Client
}

func NewGoogleDrive(ctx context.Context, cfg models.StorageConfig, opts Options) (*GoogleDrive, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, fmt.Errorf("%w: gdrive requires client id, client secret and refresh token", ErrInvalidConfig)
	}
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
		Scopes: []string{drive.DriveFileScope},
	}
	ts := oc.TokenSource(ctx, &oauth2.Token{
		AccessToken:  cfg.AccessToken,
		RefreshToken: cfg.RefreshToken,
	})
	svc, err := drive.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, err
	}
	rootID := cfg.RootFolderID
	if rootID == "" {
		rootID = "root"
	}
	return &GoogleDrive{svc: svc, ts: ts, rootID: rootID, client: opts.httpClient()}, nil
}

func (g *GoogleDrive) Name() string         { return GDrive }
func (g *GoogleDrive) SupportsDirect() bool { return true }

// NegotiateDirect opens a resumable session against the upload API and
// returns its Location URI. The URI embeds the grant, so the client needs
// no further auth header.
func (g *GoogleDrive) NegotiateDirect(ctx context.Context, key, contentType string, size int64) (*DirectUpload, error) {
	dir, name := path.Split(key)
	parentID, err := g.ensureFolder(ctx, strings.Trim(dir, "/"))
	if err != nil {
		return nil, err
	}
	meta, err := json.Marshal(map[string]any{
		"name":    name,
		"parents": []string{parentID},
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://www.googleapis.com/upload/drive/v3/files?uploadType=resumable", bytes.NewReader(meta))
	if err != nil {
		return nil, err
	}
	tok, err := g.ts.Token()
	if err != nil {
		return nil, err
	}
	tok.SetAuthHeader(req)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	if contentType != "" {
		req.Header.Set("X-Upload-Content-Type", contentType)
	}
	if size > 0 {
		req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(size, 10))
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: drive session status %d", ErrUploadFailed, resp.StatusCode)
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		return nil, fmt.Errorf("%w: drive session returned no location", ErrUploadFailed)
	}
	return &DirectUpload{URL: loc, Method: "PUT"}, nil
}

func (g *GoogleDrive) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	dir, name := path.Split(key)
	parentID, err := g.ensureFolder(ctx, strings.Trim(dir, "/"))
	if err != nil {
		return "", err
	}
	f := &drive.File{Name: name, Parents: []string{parentID}}
	created, err := g.svc.Files.Create(f).Media(r).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return "https://drive.google.com/file/d/" + created.Id + "/view", nil
}

func (g *GoogleDrive) Delete(ctx context.Context, key string) error {
	id, err := g.lookup(ctx, key)
	if err != nil {
		return err
	}
	if id == "" {
		return nil
	}
	if err := g.svc.Files.Delete(id).Context(ctx).Do(); err != nil {
		if isDriveNotFound(err) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

// lookup walks the key's folder segments from the root and returns the file
// id, or empty when any segment is missing.
func (g *GoogleDrive) lookup(ctx context.Context, key string) (string, error) {
	parentID := g.rootID
	segs := strings.Split(strings.Trim(key, "/"), "/")
	for i, seg := range segs {
		last := i == len(segs)-1
		q := fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false", escapeDriveQuery(seg), parentID)
		if !last {
			q += " and mimeType = 'application/vnd.google-apps.folder'"
		}
		list, err := g.svc.Files.List().Q(q).Fields("files(id)").PageSize(1).Context(ctx).Do()
		if err != nil {
			return "", err
		}
		if len(list.Files) == 0 {
			return "", nil
		}
		parentID = list.Files[0].Id
	}
	return parentID, nil
}

// ensureFolder resolves (creating as needed) the folder chain for a
// slash-separated relative dir and returns the deepest folder id.
func (g *GoogleDrive) ensureFolder(ctx context.Context, dir string) (string, error) {
	parentID := g.rootID
	if dir == "" {
		return parentID, nil
	}
	for _, seg := range strings.Split(dir, "/") {
		q := fmt.Sprintf("name = '%s' and '%s' in parents and mimeType = 'application/vnd.google-apps.folder' and trashed = false",
			escapeDriveQuery(seg), parentID)
		list, err := g.svc.Files.List().Q(q).Fields("files(id)").PageSize(1).Context(ctx).Do()
		if err != nil {
			return "", err
		}
		if len(list.Files) > 0 {
			parentID = list.Files[0].Id
			continue
		}
		created, err := g.svc.Files.Create(&drive.File{
			Name:     seg,
			MimeType: "application/vnd.google-apps.folder",
			Parents:  []string{parentID},
		}).Context(ctx).Do()
		if err != nil {
			return "", err
		}
		parentID = created.Id
	}
	return parentID, nil
}

func escapeDriveQuery(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `'`, `\'`)
}

func isDriveNotFound(err error) bool {
	var ge *googleapi.Error
	if errors.As(err, &ge) {
		return ge.Code == http.StatusNotFound
	}
	return false
}

var _ Adapter = (*GoogleDrive)(nil)
