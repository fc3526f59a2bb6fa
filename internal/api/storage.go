package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/arencloud/janus/internal/gateway"
	"github.com/arencloud/janus/internal/pathguard"
	"github.com/arencloud/janus/internal/policy"
	"github.com/arencloud/janus/internal/provider"

	"github.com/go-chi/chi/v5"
)

// writeGatewayError maps gateway failures onto HTTP statuses. Policy and
// signature rejections are 422s so clients can distinguish them from
// malformed requests.
func writeGatewayError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pathguard.ErrTraversal):
		respondError(w, r, http.StatusForbidden, "path escapes storage root")
	case policy.IsViolation(err):
		respondError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, gateway.ErrSignatureMismatch):
		respondError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, gateway.ErrNotFound), errors.Is(err, provider.ErrNotFound):
		respondError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, gateway.ErrConflict):
		respondError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, provider.ErrInvalidConfig), errors.Is(err, provider.ErrUnknownProvider):
		respondError(w, r, http.StatusBadGateway, err.Error())
	case errors.Is(err, provider.ErrUploadFailed), errors.Is(err, provider.ErrDeleteFailed):
		respondError(w, r, http.StatusBadGateway, err.Error())
	default:
		respondError(w, r, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) negotiateUpload(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r.Context())
	var req gateway.NegotiationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Bucket == "" || req.Name == "" {
		respondError(w, r, http.StatusBadRequest, "bucket and name required")
		return
	}
	addEvent(r, "upload.negotiate", map[string]any{"bucket": req.Bucket, "name": req.Name, "declaredSize": req.Size})
	dec, err := s.gw.Negotiate(r.Context(), tc, req)
	if err != nil {
		writeGatewayError(w, r, err)
		return
	}
	addEvent(r, "upload.decision", map[string]any{"strategy": string(dec.Strategy), "provider": dec.Provider})
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dec)
}

// ingestObject is the proxy ingestion endpoint. The multipart body carries
// the file plus an optional "path" folder field. The body ceiling is the
// platform constant, independent of per-tenant governance.
func (s *apiServer) ingestObject(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r.Context())
	bucket := chi.URLParam(r, "bucket")

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	relPath := ""
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			respondError(w, r, http.StatusBadRequest, "multipart field 'file' required")
			return
		}
		if err != nil {
			respondError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if part.FormName() == "path" {
			b, _ := io.ReadAll(io.LimitReader(part, 4096))
			relPath = string(b)
			continue
		}
		if part.FormName() != "file" {
			continue
		}
		name := part.FileName()
		if name == "" {
			respondError(w, r, http.StatusBadRequest, "file name required")
			return
		}
		addEvent(r, "upload.receive", map[string]any{"bucket": bucket, "name": name})
		rec, err := s.gw.ReceiveUpload(r.Context(), tc, bucket, relPath, name, part)
		if err != nil {
			writeGatewayError(w, r, err)
			return
		}
		addEvent(r, "upload.committed", map[string]any{"key": rec.Key, "size": rec.Size, "provider": rec.Provider})
		s.logger.Info("object committed", "tenant", tc.Tenant.Slug, "key", rec.Key, "size", rec.Size, "provider", rec.Provider)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"success": true, "provider": rec.Provider, "key": rec.Key, "size": rec.Size, "location": rec.Location})
		return
	}
}

func (s *apiServer) listObjects(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r.Context())
	bucket := chi.URLParam(r, "bucket")
	infos, err := s.gw.List(r.Context(), tc, bucket, r.URL.Query().Get("path"))
	if err != nil {
		writeGatewayError(w, r, err)
		return
	}
	out := make([]map[string]any, 0, len(infos))
	for _, in := range infos {
		typ := "file"
		if in.IsDir {
			typ = "folder"
		}
		out = append(out, map[string]any{
			"name":         in.Name,
			"type":         typ,
			"size":         in.Size,
			"modifiedAt":   in.ModifiedAt,
			"relativePath": in.Key,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// searchObjects serves both the bucket-scoped route and the tenant-wide one;
// an empty bucket searches the whole tenant root.
func (s *apiServer) searchObjects(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r.Context())
	q := r.URL.Query().Get("q")
	if q == "" {
		respondError(w, r, http.StatusBadRequest, "q required")
		return
	}
	bucket := chi.URLParam(r, "bucket")
	if bucket == "" {
		bucket = r.URL.Query().Get("bucket")
	}
	hits, err := s.gw.Search(r.Context(), tc, bucket, q)
	if err != nil {
		writeGatewayError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(hits)
}

func (s *apiServer) createFolder(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r.Context())
	var in struct {
		Path string `json:"path"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if in.Name == "" {
		respondError(w, r, http.StatusBadRequest, "name required")
		return
	}
	if err := s.gw.CreateFolder(r.Context(), tc, chi.URLParam(r, "bucket"), in.Path, in.Name); err != nil {
		writeGatewayError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *apiServer) moveObjects(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r.Context())
	var in struct {
		Paths       []string `json:"paths"`
		Destination string   `json:"destination"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(in.Paths) == 0 {
		respondError(w, r, http.StatusBadRequest, "paths required")
		return
	}
	report, err := s.gw.Move(r.Context(), tc, chi.URLParam(r, "bucket"), in.Paths, in.Destination)
	if err != nil {
		writeGatewayError(w, r, err)
		return
	}
	addEvent(r, "objects.move", map[string]any{"moved": report.Moved, "failed": len(report.Failures)})
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

func (s *apiServer) deleteObject(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r.Context())
	p := r.URL.Query().Get("path")
	if p == "" {
		respondError(w, r, http.StatusBadRequest, "path required")
		return
	}
	if err := s.gw.Delete(r.Context(), tc, chi.URLParam(r, "bucket"), p); err != nil {
		writeGatewayError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) downloadObject(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r.Context())
	p := r.URL.Query().Get("path")
	if p == "" {
		respondError(w, r, http.StatusBadRequest, "path required")
		return
	}
	f, fi, err := s.gw.OpenLocal(tc, chi.URLParam(r, "bucket"), p)
	if err != nil {
		writeGatewayError(w, r, err)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Disposition", "attachment; filename=\""+fi.Name()+"\"")
	http.ServeContent(w, r, fi.Name(), fi.ModTime(), f)
}

// Bucket handlers

func (s *apiServer) listBuckets(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r.Context())
	buckets, err := s.gw.Buckets(r.Context(), tc)
	if err != nil {
		writeGatewayError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(buckets)
}

func (s *apiServer) createBucket(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r.Context())
	var in struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if in.Name == "" {
		respondError(w, r, http.StatusBadRequest, "name required")
		return
	}
	if err := s.gw.CreateBucket(r.Context(), tc, in.Name); err != nil {
		writeGatewayError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *apiServer) renameBucket(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r.Context())
	var in struct {
		NewName string `json:"newName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if in.NewName == "" {
		respondError(w, r, http.StatusBadRequest, "newName required")
		return
	}
	if err := s.gw.RenameBucket(r.Context(), tc, chi.URLParam(r, "bucket"), in.NewName); err != nil {
		writeGatewayError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) deleteBucket(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r.Context())
	if err := s.gw.DeleteBucket(r.Context(), tc, chi.URLParam(r, "bucket")); err != nil {
		writeGatewayError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Read-only tenant configuration surface

func (s *apiServer) storageConfig(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r.Context())
	// credentials stay server-side
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"provider":       tc.Config.Provider,
		"bucket":         tc.Config.Bucket,
		"region":         tc.Config.Region,
		"supportsDirect": tc.Config.Provider != "" && tc.Config.Provider != provider.Local,
	})
}

func (s *apiServer) storageRules(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r.Context())
	out := make([]map[string]any, 0)
	for _, sector := range policy.Sectors() {
		rule := tc.Engine.RuleForSector(sector)
		out = append(out, map[string]any{
			"sector":             string(sector),
			"maxSizeProxied":     rule.MaxSizeProxied,
			"maxSizeDirect":      rule.MaxSizeDirect,
			"allowedExtensions":  rule.AllowedExtensions,
			"overProxiedCeiling": policy.OverCeiling(rule, s.cfg.MaxBodyBytes),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}
