package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/arencloud/janus/internal/models"

	"github.com/google/uuid"
)

const (
	imagekitUploadURL = "https://upload.imagekit.io/api/v1/files/upload"
	imagekitAPIBase   = "https://api.imagekit.io/v1"
)

// ImageKitCDN talks to the ImageKit media API. Direct uploads hand the client
// the upload endpoint plus a token/expire/signature field set; the signature
// is an HMAC-SHA1 of token+expire keyed by the private key.
type ImageKitCDN struct {
	publicKey  string
	privateKey string
	client     *http.Client
}

func NewImageKit(cfg models.StorageConfig, opts Options) (*ImageKitCDN, error) {
	if cfg.PublicKey == "" || cfg.PrivateKey == "" {
		return nil, fmt.Errorf("%w: imagekit requires public and private keys", ErrInvalidConfig)
	}
	return &ImageKitCDN{publicKey: cfg.PublicKey, privateKey: cfg.PrivateKey, client: opts.httpClient()}, nil
}

func (k *ImageKitCDN) Name() string         { return ImageKit }
func (k *ImageKitCDN) SupportsDirect() bool { return true }

func (k *ImageKitCDN) NegotiateDirect(ctx context.Context, key, contentType string, size int64) (*DirectUpload, error) {
	token := uuid.NewString()
	expire := strconv.FormatInt(time.Now().Add(30*time.Minute).Unix(), 10)
	mac := hmac.New(sha1.New, []byte(k.privateKey))
	mac.Write([]byte(token + expire))
	dir, name := path.Split(key)
	fields := map[string]string{
		"publicKey":         k.publicKey,
		"token":             token,
		"expire":            expire,
		"signature":         hex.EncodeToString(mac.Sum(nil)),
		"fileName":          name,
		"useUniqueFileName": "false",
	}
	if dir != "" {
		fields["folder"] = "/" + dir
	}
	return &DirectUpload{URL: imagekitUploadURL, Method: "POST", Fields: fields}, nil
}

func (k *ImageKitCDN) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	dir, name := path.Split(key)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(fw, r); err != nil {
		return "", err
	}
	_ = mw.WriteField("fileName", name)
	_ = mw.WriteField("useUniqueFileName", "false")
	if dir != "" {
		_ = mw.WriteField("folder", "/"+dir)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, imagekitUploadURL, &body)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(k.privateKey, "")
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := k.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: imagekit status %d: %s", ErrUploadFailed, resp.StatusCode, msg)
	}
	var out struct {
		URL    string `json:"url"`
		FileID string `json:"fileId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.URL, nil
}

func (k *ImageKitCDN) Delete(ctx context.Context, key string) error {
	id, err := k.fileIDByPath(ctx, key)
	if err != nil {
		return err
	}
	if id == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, imagekitAPIBase+"/files/"+id, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(k.privateKey, "")
	resp, err := k.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("%w: imagekit status %d", ErrDeleteFailed, resp.StatusCode)
	}
	return nil
}

// fileIDByPath resolves a key to an ImageKit file id via the list endpoint.
// An empty id means the file does not exist.
func (k *ImageKitCDN) fileIDByPath(ctx context.Context, key string) (string, error) {
	dir, name := path.Split(key)
	q := url.Values{}
	q.Set("name", name)
	if dir != "" {
		q.Set("path", "/"+dir)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imagekitAPIBase+"/files?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(k.privateKey, "")
	resp, err := k.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("imagekit list status %d", resp.StatusCode)
	}
	var files []struct {
		FileID string `json:"fileId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", nil
	}
	return files[0].FileID, nil
}

var _ Adapter = (*ImageKitCDN)(nil)
