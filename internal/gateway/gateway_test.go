package gateway

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/arencloud/janus/internal/logging"
	"github.com/arencloud/janus/internal/models"
	"github.com/arencloud/janus/internal/policy"
	"github.com/arencloud/janus/internal/provider"
)

func newTestGateway(t *testing.T) (*Gateway, *TenantContext) {
	t.Helper()
	base := t.TempDir()
	root := filepath.Join(base, "acme")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	g := New(logging.New("test"), filepath.Join(base, ".staging"), 15*time.Minute)
	tc := &TenantContext{
		Tenant: models.Tenant{Slug: "acme"},
		Config: models.StorageConfig{Provider: provider.Local},
		Engine: policy.NewEngine(nil),
		Root:   root,
	}
	return g, tc
}

func TestNegotiateLocalIsProxy(t *testing.T) {
	g, tc := newTestGateway(t)

	dec, err := g.Negotiate(context.Background(), tc, NegotiationRequest{
		Bucket: "docs", Name: "report.pdf", Size: 2_000_000, ContentType: "application/pdf",
	})
	if err != nil {
		t.Fatalf("negotiate: %v", err)
	}
	if dec.Strategy != policy.StrategyProxy {
		t.Fatalf("expected proxy strategy, got %s", dec.Strategy)
	}
	if dec.URL != "/api/v1/buckets/docs/objects" {
		t.Fatalf("unexpected ingestion url %q", dec.URL)
	}
	if dec.Key != "docs/report.pdf" {
		t.Fatalf("unexpected key %q", dec.Key)
	}
}

func TestNegotiateRejectsOversizedDeclaration(t *testing.T) {
	g, tc := newTestGateway(t)

	_, err := g.Negotiate(context.Background(), tc, NegotiationRequest{
		Bucket: "docs", Name: "report.pdf", Size: 50_000_000,
	})
	if !policy.IsViolation(err) {
		t.Fatalf("expected policy violation, got %v", err)
	}
}

type fakeDirect struct{ negotiated bool }

func (f *fakeDirect) Name() string         { return provider.S3 }
func (f *fakeDirect) SupportsDirect() bool { return true }
func (f *fakeDirect) NegotiateDirect(ctx context.Context, key, contentType string, size int64) (*provider.DirectUpload, error) {
	f.negotiated = true
	return &provider.DirectUpload{URL: "https://minio.example/" + key, Method: "PUT"}, nil
}
func (f *fakeDirect) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	return key, nil
}
func (f *fakeDirect) Delete(ctx context.Context, key string) error { return nil }

func TestNegotiateDirectCapableProvider(t *testing.T) {
	g, tc := newTestGateway(t)
	fake := &fakeDirect{}
	g.adapterFor = func(ctx context.Context, tc *TenantContext) (provider.Adapter, error) {
		return fake, nil
	}

	dec, err := g.Negotiate(context.Background(), tc, NegotiationRequest{
		Bucket: "media", Name: "clip.bin", Size: 1 << 20,
	})
	if err != nil {
		t.Fatalf("negotiate: %v", err)
	}
	if dec.Strategy != policy.StrategyDirect || dec.Method != "PUT" {
		t.Fatalf("unexpected decision %+v", dec)
	}
	if !fake.negotiated {
		t.Fatal("adapter was not asked for upload instructions")
	}
}

func TestNegotiateViolationSkipsAdapterCall(t *testing.T) {
	g, tc := newTestGateway(t)
	fake := &fakeDirect{}
	g.adapterFor = func(ctx context.Context, tc *TenantContext) (provider.Adapter, error) {
		return fake, nil
	}

	_, err := g.Negotiate(context.Background(), tc, NegotiationRequest{
		Bucket: "media", Name: "huge.bin", Size: 6 << 30,
	})
	if !policy.IsViolation(err) {
		t.Fatalf("expected policy violation, got %v", err)
	}
	if fake.negotiated {
		t.Fatal("signed url was minted despite the violation")
	}
}

func TestReceiveUploadCommitsValidPDF(t *testing.T) {
	g, tc := newTestGateway(t)
	ctx := context.Background()

	body := "%PDF-1.7 " + strings.Repeat("x", 100)
	rec, err := g.ReceiveUpload(ctx, tc, "docs", "", "report.pdf", strings.NewReader(body))
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if rec.Provider != provider.Local || rec.Size != int64(len(body)) {
		t.Fatalf("unexpected receipt %+v", rec)
	}

	infos, err := g.List(ctx, tc, "docs", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 1 || infos[0].Name != "report.pdf" || infos[0].Size != int64(len(body)) {
		t.Fatalf("unexpected listing %+v", infos)
	}
}

func TestReceiveUploadRejectsForgedSignature(t *testing.T) {
	g, tc := newTestGateway(t)

	// text bytes claiming to be a PNG
	_, err := g.ReceiveUpload(context.Background(), tc, "docs", "", "fake.png", strings.NewReader("definitely not a png"))
	if !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected signature mismatch, got %v", err)
	}

	staged, _ := os.ReadDir(g.staging)
	if len(staged) != 0 {
		t.Fatalf("staging dir should be empty after rejection, has %d entries", len(staged))
	}
	infos, err := g.List(context.Background(), tc, "docs", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 0 {
		t.Fatalf("nothing should be committed, listing has %+v", infos)
	}
}

func TestReceiveUploadRejectsOversizedBody(t *testing.T) {
	g, tc := newTestGateway(t)
	tc.Engine = policy.NewEngine([]policy.Rule{{Sector: policy.SectorGlobal, MaxSizeProxied: 10}})

	_, err := g.ReceiveUpload(context.Background(), tc, "docs", "", "big.txt", strings.NewReader(strings.Repeat("y", 64)))
	if !policy.IsViolation(err) {
		t.Fatalf("expected violation on authoritative size, got %v", err)
	}
	staged, _ := os.ReadDir(g.staging)
	if len(staged) != 0 {
		t.Fatalf("staged bytes should be cleaned up, found %d", len(staged))
	}
}

func TestFolderRoundTrip(t *testing.T) {
	g, tc := newTestGateway(t)
	ctx := context.Background()

	if err := g.CreateFolder(ctx, tc, "docs", "", "contracts"); err != nil {
		t.Fatalf("create folder: %v", err)
	}
	infos, err := g.List(ctx, tc, "docs", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 || !infos[0].IsDir || infos[0].Name != "contracts" {
		t.Fatalf("unexpected listing %+v", infos)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	g, tc := newTestGateway(t)
	ctx := context.Background()

	if _, err := g.ReceiveUpload(ctx, tc, "docs", "", "note.txt", strings.NewReader("hi")); err != nil {
		t.Fatal(err)
	}
	if err := g.Delete(ctx, tc, "docs", "note.txt"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := g.Delete(ctx, tc, "docs", "note.txt"); err != nil {
		t.Fatalf("repeat delete should succeed: %v", err)
	}
}

func TestMovePartialFailure(t *testing.T) {
	g, tc := newTestGateway(t)
	ctx := context.Background()

	if _, err := g.ReceiveUpload(ctx, tc, "docs", "", "a.txt", strings.NewReader("a")); err != nil {
		t.Fatal(err)
	}
	report, err := g.Move(ctx, tc, "docs", []string{"a.txt", "ghost.txt"}, "archive")
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if report.Moved != 1 {
		t.Fatalf("expected 1 moved, got %d", report.Moved)
	}
	if len(report.Failures) != 1 || report.Failures[0].Path != "ghost.txt" {
		t.Fatalf("unexpected failures %+v", report.Failures)
	}

	infos, err := g.List(ctx, tc, "docs", "archive")
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 || infos[0].Name != "a.txt" {
		t.Fatalf("moved file missing from destination: %+v", infos)
	}
}

func TestSearchLocalOnly(t *testing.T) {
	g, tc := newTestGateway(t)
	ctx := context.Background()

	if _, err := g.ReceiveUpload(ctx, tc, "docs", "deep/nested", "Quarterly-Report.pdf", strings.NewReader("%PDF-1.4")); err != nil {
		t.Fatal(err)
	}
	hits, err := g.Search(ctx, tc, "docs", "report")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %+v", hits)
	}

	tc.Config.Provider = provider.S3
	hits, err = g.Search(ctx, tc, "docs", "report")
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Fatalf("cloud search should be empty, got %+v", hits)
	}
}

func TestBucketLifecycle(t *testing.T) {
	g, tc := newTestGateway(t)
	ctx := context.Background()

	if err := g.CreateBucket(ctx, tc, "projects"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := g.CreateBucket(ctx, tc, "projects"); err != nil {
		t.Fatalf("repeat create should be a no-op: %v", err)
	}

	buckets, err := g.Buckets(ctx, tc)
	if err != nil {
		t.Fatal(err)
	}
	if len(buckets) != 1 || buckets[0].Name != "projects" {
		t.Fatalf("unexpected buckets %+v", buckets)
	}

	if err := g.RenameBucket(ctx, tc, "projects", "archive"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if err := g.CreateBucket(ctx, tc, "projects"); err != nil {
		t.Fatal(err)
	}
	if err := g.RenameBucket(ctx, tc, "projects", "archive"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := g.RenameBucket(ctx, tc, "missing", "whatever"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := g.DeleteBucket(ctx, tc, "archive"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := g.DeleteBucket(ctx, tc, "archive"); err != nil {
		t.Fatalf("repeat delete should succeed: %v", err)
	}
}

func TestBucketEscapeRejected(t *testing.T) {
	g, tc := newTestGateway(t)
	if err := g.CreateBucket(context.Background(), tc, "../outside"); err == nil {
		t.Fatal("expected traversal rejection")
	}
}
