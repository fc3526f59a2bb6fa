package provider

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/arencloud/janus/internal/models"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryCDN stores objects in a Cloudinary cloud. Direct uploads use the
// signed multi-field POST form of the upload API; the signature is a SHA-1
// over the sorted parameters plus the API secret.
type CloudinaryCDN struct {
	cld       *cloudinary.Cloudinary
	cloudName string
	apiKey    string
	apiSecret string
}

func NewCloudinary(cfg models.StorageConfig, opts Options) (*CloudinaryCDN, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("%w: cloudinary requires cloud name, api key and secret", ErrInvalidConfig)
	}
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, err
	}
	return &CloudinaryCDN{cld: cld, cloudName: cfg.CloudName, apiKey: cfg.APIKey, apiSecret: cfg.APISecret}, nil
}

func (c *CloudinaryCDN) Name() string         { return Cloudinary }
func (c *CloudinaryCDN) SupportsDirect() bool { return true }

func (c *CloudinaryCDN) NegotiateDirect(ctx context.Context, key, contentType string, size int64) (*DirectUpload, error) {
	publicID := strings.TrimSuffix(key, "."+extOf(key))
	params := map[string]string{
		"public_id": publicID,
		"timestamp": strconv.FormatInt(time.Now().Unix(), 10),
	}
	fields := map[string]string{
		"api_key":   c.apiKey,
		"public_id": params["public_id"],
		"timestamp": params["timestamp"],
		"signature": signCloudinary(params, c.apiSecret),
	}
	return &DirectUpload{
		URL:    fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/auto/upload", c.cloudName),
		Method: "POST",
		Fields: fields,
	}, nil
}

func (c *CloudinaryCDN) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	publicID := strings.TrimSuffix(key, "."+extOf(key))
	resp, err := c.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		PublicID:     publicID,
		ResourceType: "auto",
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return resp.SecureURL, nil
}

func (c *CloudinaryCDN) Delete(ctx context.Context, key string) error {
	publicID := strings.TrimSuffix(key, "."+extOf(key))
	if _, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID}); err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

// signCloudinary builds the upload API signature: sorted key=value pairs
// joined with '&', concatenated with the secret, SHA-1 hex.
func signCloudinary(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret))
	return hex.EncodeToString(sum[:])
}

func extOf(key string) string {
	if i := strings.LastIndex(key, "."); i >= 0 && i < len(key)-1 {
		return key[i+1:]
	}
	return ""
}

var _ Adapter = (*CloudinaryCDN)(nil)
