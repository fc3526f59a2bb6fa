package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/arencloud/janus/internal/config"
	"github.com/arencloud/janus/internal/db"
	"github.com/arencloud/janus/internal/gateway"
	"github.com/arencloud/janus/internal/logging"
	"github.com/arencloud/janus/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// set up a temporary DB, gateway and router for integration-style tests
func setupTestServer(t *testing.T) (*httptest.Server, *config.Config) {
	t.Helper()
	tmp := t.TempDir()
	cfg := &config.Config{
		Env:          "test",
		HttpPort:     "0",
		DBPath:       filepath.Join(tmp, "test.db"),
		DBDriver:     "sqlite",
		DataRoot:     filepath.Join(tmp, "tenants"),
		MaxBodyBytes: 100 << 20,
		SignedURLTTL: 15 * time.Minute,
		AdminToken:   "op-token",
	}
	logger := logging.New("test")
	if err := db.Init(cfg, logger); err != nil {
		t.Fatalf("db init: %v", err)
	}
	gw := gateway.New(logger, filepath.Join(cfg.DataRoot, ".staging"), cfg.SignedURLTTL)
	ts := httptest.NewServer(Router(cfg, logger, gw))
	return ts, cfg
}

// seedTenant creates a tenant with a known API key and a local storage config.
func seedTenant(t *testing.T, slug, secret string) models.Tenant {
	t.Helper()
	hash, _ := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	tenant := models.Tenant{Slug: slug, Name: slug, APIKeyHash: string(hash)}
	if err := db.DB.Create(&tenant).Error; err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	if err := db.DB.Create(&models.StorageConfig{TenantID: tenant.ID, Provider: "local"}).Error; err != nil {
		t.Fatalf("create storage config: %v", err)
	}
	return tenant
}

func authedReq(t *testing.T, method, url, apiKey string, body io.Reader) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	return req
}

func TestHealthAndVersion(t *testing.T) {
	ts, _ := setupTestServer(t)
	defer ts.Close()
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("/health status=%d", resp.StatusCode)
	}
	resp, err = http.Get(ts.URL + "/api/version")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("/api/version status=%d", resp.StatusCode)
	}
}

func TestStorageRequiresAPIKey(t *testing.T) {
	ts, _ := setupTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/buckets/")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 401 {
		t.Fatalf("expected 401 without key, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest("GET", ts.URL+"/api/v1/buckets/", nil)
	req.Header.Set("Authorization", "Bearer acme.wrong-secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 401 {
		t.Fatalf("expected 401 for bad key, got %d", resp.StatusCode)
	}
}

// Full proxy flow: negotiate a 2MB PDF, upload real PDF bytes, list shows
// the committed size.
func TestProxyUploadEndToEnd(t *testing.T) {
	ts, _ := setupTestServer(t)
	defer ts.Close()
	seedTenant(t, "acme", "sekret")
	apiKey := "acme.sekret"

	// create bucket
	body, _ := json.Marshal(map[string]string{"name": "docs"})
	resp, err := http.DefaultClient.Do(authedReq(t, "POST", ts.URL+"/api/v1/buckets/", apiKey, bytes.NewReader(body)))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 201 {
		t.Fatalf("create bucket status=%d", resp.StatusCode)
	}

	// negotiate
	pdfBody := "%PDF-1.7 " + strings.Repeat("j", 2_000_000-9)
	nb, _ := json.Marshal(map[string]any{"bucket": "docs", "name": "report.pdf", "type": "application/pdf", "size": len(pdfBody)})
	resp, err = http.DefaultClient.Do(authedReq(t, "POST", ts.URL+"/api/v1/uploads/negotiate", apiKey, bytes.NewReader(nb)))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("negotiate status=%d", resp.StatusCode)
	}
	var dec struct {
		Strategy string `json:"strategy"`
		URL      string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&dec); err != nil {
		t.Fatal(err)
	}
	if dec.Strategy != "proxy" {
		t.Fatalf("expected proxy strategy for local provider, got %s", dec.Strategy)
	}
	if dec.URL != "/api/v1/buckets/docs/objects" {
		t.Fatalf("unexpected ingestion url %q", dec.URL)
	}

	// upload through the negotiated endpoint
	var mpBody bytes.Buffer
	mw := multipart.NewWriter(&mpBody)
	fw, _ := mw.CreateFormFile("file", "report.pdf")
	fw.Write([]byte(pdfBody))
	mw.Close()
	req := authedReq(t, "POST", ts.URL+dec.URL, apiKey, &mpBody)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("ingest status=%d body=%s", resp.StatusCode, b)
	}
	var out struct {
		Success  bool   `json:"success"`
		Provider string `json:"provider"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.Success || out.Provider != "local" {
		t.Fatalf("unexpected ingest response %+v", out)
	}

	// list shows the file with its real size
	resp, err = http.DefaultClient.Do(authedReq(t, "GET", ts.URL+"/api/v1/buckets/docs/objects", apiKey, nil))
	if err != nil {
		t.Fatal(err)
	}
	var listing []struct {
		Name string `json:"name"`
		Type string `json:"type"`
		Size int64  `json:"size"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		t.Fatal(err)
	}
	if len(listing) != 1 || listing[0].Name != "report.pdf" || listing[0].Size != int64(len(pdfBody)) {
		t.Fatalf("unexpected listing %+v", listing)
	}

	// download round-trips the bytes
	resp, err = http.DefaultClient.Do(authedReq(t, "GET", ts.URL+"/api/v1/buckets/docs/objects/download?path=report.pdf", apiKey, nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("download status=%d", resp.StatusCode)
	}
	got, _ := io.ReadAll(resp.Body)
	if len(got) != len(pdfBody) {
		t.Fatalf("download size %d, want %d", len(got), len(pdfBody))
	}
}

// Oversized declaration is rejected at negotiation, before any bytes move.
func TestNegotiateOversizedRejected(t *testing.T) {
	ts, _ := setupTestServer(t)
	defer ts.Close()
	seedTenant(t, "acme", "sekret")

	nb, _ := json.Marshal(map[string]any{"bucket": "docs", "name": "report.pdf", "size": 50_000_000})
	resp, err := http.DefaultClient.Do(authedReq(t, "POST", ts.URL+"/api/v1/uploads/negotiate", "acme.sekret", bytes.NewReader(nb)))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 422 {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), "size exceeds proxied limit") {
		t.Fatalf("unexpected body %s", b)
	}
}

// Bytes that do not match the claimed extension are rejected with 422 and
// nothing is committed.
func TestIngestRejectsForgedContent(t *testing.T) {
	ts, _ := setupTestServer(t)
	defer ts.Close()
	seedTenant(t, "acme", "sekret")
	apiKey := "acme.sekret"

	var mpBody bytes.Buffer
	mw := multipart.NewWriter(&mpBody)
	fw, _ := mw.CreateFormFile("file", "photo.png")
	fw.Write([]byte("this is plainly not a png"))
	mw.Close()
	req := authedReq(t, "POST", ts.URL+"/api/v1/buckets/docs/objects", apiKey, &mpBody)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 422 {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}

	resp, err = http.DefaultClient.Do(authedReq(t, "GET", ts.URL+"/api/v1/buckets/docs/objects", apiKey, nil))
	if err != nil {
		t.Fatal(err)
	}
	var listing []any
	json.NewDecoder(resp.Body).Decode(&listing)
	if len(listing) != 0 {
		t.Fatalf("nothing should be committed, got %+v", listing)
	}
}

func TestPathTraversalForbidden(t *testing.T) {
	ts, _ := setupTestServer(t)
	defer ts.Close()
	seedTenant(t, "acme", "sekret")

	resp, err := http.DefaultClient.Do(authedReq(t, "GET",
		ts.URL+"/api/v1/buckets/docs/objects?path=..%2F..%2Fetc", "acme.sekret", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 403 {
		t.Fatalf("expected 403 for traversal, got %d", resp.StatusCode)
	}
}

func TestStorageRulesSurface(t *testing.T) {
	ts, _ := setupTestServer(t)
	defer ts.Close()
	tenant := seedTenant(t, "acme", "sekret")

	// override: docs sector capped at 1MB proxied
	if err := db.DB.Create(&models.GovernanceRule{TenantID: tenant.ID, Sector: "docs", MaxSizeProxied: 1 << 20, MaxSizeDirect: 1 << 30}).Error; err != nil {
		t.Fatal(err)
	}

	resp, err := http.DefaultClient.Do(authedReq(t, "GET", ts.URL+"/api/v1/storage/rules", "acme.sekret", nil))
	if err != nil {
		t.Fatal(err)
	}
	var rules []struct {
		Sector         string `json:"sector"`
		MaxSizeProxied int64  `json:"maxSizeProxied"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rules); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, r := range rules {
		if r.Sector == "docs" {
			found = true
			if r.MaxSizeProxied != 1<<20 {
				t.Fatalf("docs override not applied: %d", r.MaxSizeProxied)
			}
		}
	}
	if !found {
		t.Fatal("docs sector missing from rules")
	}

	// the override also bites at negotiation
	nb, _ := json.Marshal(map[string]any{"bucket": "b", "name": "big.pdf", "size": 2 << 20})
	resp, err = http.DefaultClient.Do(authedReq(t, "POST", ts.URL+"/api/v1/uploads/negotiate", "acme.sekret", bytes.NewReader(nb)))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 422 {
		t.Fatalf("expected 422 under tightened rule, got %d", resp.StatusCode)
	}
}

func TestAdminTenantLifecycle(t *testing.T) {
	ts, _ := setupTestServer(t)
	defer ts.Close()

	// no token -> forbidden
	resp, err := http.Get(ts.URL + "/api/v1/admin/tenants")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 403 {
		t.Fatalf("expected 403 without operator token, got %d", resp.StatusCode)
	}

	body, _ := json.Marshal(map[string]string{"slug": "umbrella", "name": "Umbrella Corp"})
	req, _ := http.NewRequest("POST", ts.URL+"/api/v1/admin/tenants", bytes.NewReader(body))
	req.Header.Set("X-Api-Key", "op-token")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 201 {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("create tenant status=%d body=%s", resp.StatusCode, b)
	}
	var created struct {
		APIKey string `json:"apiKey"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(created.APIKey, "umbrella.") {
		t.Fatalf("unexpected api key %q", created.APIKey)
	}

	// the returned key authenticates immediately
	resp, err = http.DefaultClient.Do(authedReq(t, "GET", ts.URL+"/api/v1/buckets/", created.APIKey, nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("new tenant key rejected: %d", resp.StatusCode)
	}
}

func TestBucketRenameConflictOverHTTP(t *testing.T) {
	ts, _ := setupTestServer(t)
	defer ts.Close()
	seedTenant(t, "acme", "sekret")
	apiKey := "acme.sekret"

	for _, name := range []string{"a", "b"} {
		body, _ := json.Marshal(map[string]string{"name": name})
		resp, err := http.DefaultClient.Do(authedReq(t, "POST", ts.URL+"/api/v1/buckets/", apiKey, bytes.NewReader(body)))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != 201 {
			t.Fatalf("create %s status=%d", name, resp.StatusCode)
		}
	}
	body, _ := json.Marshal(map[string]string{"newName": "b"})
	resp, err := http.DefaultClient.Do(authedReq(t, "PUT", ts.URL+"/api/v1/buckets/a", apiKey, bytes.NewReader(body)))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 409 {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}
