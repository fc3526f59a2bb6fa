package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/arencloud/janus/internal/models"

	"golang.org/x/oauth2"
)

const graphBase = "https://graph.microsoft.com/v1.0"

// OneDrive stores objects in the signed-in account's drive via the Microsoft
// Graph API. Direct uploads use createUploadSession: Graph returns a
// pre-authenticated uploadUrl the client PUTs chunks to.
type OneDriveGraph struct {
	ts     oauth2.TokenSource
	root   string
	client *http.Client
}

func NewOneDrive(ctx context.Context, cfg models.StorageConfig, opts Options) (*OneDriveGraph, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, fmt.Errorf("%w: onedrive requires client id, client secret and refresh token", ErrInvalidConfig)
	}
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
			TokenURL: "https://login.microsoftonline.com/common/oauth2/v2.0/token",
		},
		Scopes: []string{"Files.ReadWrite", "offline_access"},
	}
	ts := oc.TokenSource(ctx, &oauth2.Token{
		AccessToken:  cfg.AccessToken,
		RefreshToken: cfg.RefreshToken,
	})
	return &OneDriveGraph{ts: ts, root: strings.Trim(cfg.RootFolderID, "/"), client: opts.httpClient()}, nil
}

func (o *OneDriveGraph) Name() string         { return OneDrive }
func (o *OneDriveGraph) SupportsDirect() bool { return true }

// itemPath builds the :/path:-addressed Graph item reference for a key.
func (o *OneDriveGraph) itemPath(key string) string {
	p := strings.Trim(key, "/")
	if o.root != "" {
		p = o.root + "/" + p
	}
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return "/me/drive/root:/" + strings.Join(segs, "/")
}

func (o *OneDriveGraph) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, graphBase+path, body)
	if err != nil {
		return nil, err
	}
	tok, err := o.ts.Token()
	if err != nil {
		return nil, err
	}
	tok.SetAuthHeader(req)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return o.client.Do(req)
}

func (o *OneDriveGraph) NegotiateDirect(ctx context.Context, key, contentType string, size int64) (*DirectUpload, error) {
	payload := []byte(`{"item":{"@microsoft.graph.conflictBehavior":"replace"}}`)
	resp, err := o.do(ctx, http.MethodPost, o.itemPath(key)+":/createUploadSession", bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: graph session status %d", ErrUploadFailed, resp.StatusCode)
	}
	var out struct {
		UploadURL string `json:"uploadUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if out.UploadURL == "" {
		return nil, fmt.Errorf("%w: graph session returned no upload url", ErrUploadFailed)
	}
	return &DirectUpload{URL: out.UploadURL, Method: "PUT"}, nil
}

func (o *OneDriveGraph) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	resp, err := o.do(ctx, http.MethodPut, o.itemPath(key)+":/content", r, contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: graph status %d: %s", ErrUploadFailed, resp.StatusCode, msg)
	}
	var out struct {
		WebURL string `json:"webUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.WebURL, nil
}

func (o *OneDriveGraph) Delete(ctx context.Context, key string) error {
	resp, err := o.do(ctx, http.MethodDelete, o.itemPath(key), nil, "")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("%w: graph status %d", ErrDeleteFailed, resp.StatusCode)
	}
	return nil
}

var _ Adapter = (*OneDriveGraph)(nil)
