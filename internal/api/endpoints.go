package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/arencloud/janus/internal/config"
	"github.com/arencloud/janus/internal/db"
	"github.com/arencloud/janus/internal/gateway"
	"github.com/arencloud/janus/internal/logging"
	"github.com/arencloud/janus/internal/models"

	"github.com/go-chi/chi/v5"
)

type apiServer struct {
	cfg    *config.Config
	logger logging.Logger
	gw     *gateway.Gateway
}

var appStart = time.Now()
var totalRequests uint64
var total4xx uint64
var total5xx uint64
var bytesIn uint64
var bytesOut uint64
var totalDurationNs uint64

func metricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	uptime := time.Since(appStart).Seconds()
	tr := atomic.LoadUint64(&totalRequests)
	dn := atomic.LoadUint64(&totalDurationNs)
	avgMs := 0.0
	if tr > 0 {
		avgMs = float64(dn) / float64(tr) / 1e6
	}
	json.NewEncoder(w).Encode(map[string]any{
		"uptimeSec":     uptime,
		"uptimeHuman":   (time.Duration(uptime) * time.Second).String(),
		"startedAt":     appStart.Format(time.RFC3339),
		"goroutines":    runtime.NumGoroutine(),
		"heapAlloc":     m.HeapAlloc,
		"heapSys":       m.HeapSys,
		"lastGCUnix":    m.LastGC,
		"gcNum":         m.NumGC,
		"totalRequests": tr,
		"total4xx":      atomic.LoadUint64(&total4xx),
		"total5xx":      atomic.LoadUint64(&total5xx),
		"bytesIn":       atomic.LoadUint64(&bytesIn),
		"bytesOut":      atomic.LoadUint64(&bytesOut),
		"avgDurationMs": avgMs,
	})
}

// errorsHandler returns recent traces with errors (status >= 400) and the last error event message.
func errorsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var trs []models.TraceRow
	if err := db.DB.Where("status >= ?", 400).Order("started desc").Limit(200).Find(&trs).Error; err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	out := make([]map[string]any, 0, len(trs))
	for _, t := range trs {
		var ev models.TraceEventRow
		_ = db.DB.Where("trace_id = ? AND name = ?", t.ID, "error").Order("time desc").First(&ev).Error
		msg := ""
		if ev.Fields != "" {
			var f map[string]any
			_ = json.Unmarshal([]byte(ev.Fields), &f)
			if s, ok := f["message"].(string); ok {
				msg = s
			}
		}
		out = append(out, map[string]any{
			"id":         t.ID,
			"method":     t.Method,
			"path":       t.Path,
			"status":     t.Status,
			"durationMs": float64(t.DurationNs) / 1e6,
			"tenant":     t.TenantSlug,
			"message":    msg,
			"started":    t.Started,
		})
	}
	json.NewEncoder(w).Encode(out)
}

// logsRecent returns recent structured logs, sourced from DB to survive restarts.
func logsRecent(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	limit := 200
	if v := r.URL.Query().Get("limit"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			limit = i
		}
	}
	var rows []models.LogEntry
	if err := db.DB.Order("time desc").Limit(limit).Find(&rows).Error; err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		var f map[string]any
		if r.Fields != "" {
			_ = json.Unmarshal([]byte(r.Fields), &f)
		}
		out = append(out, map[string]any{"time": r.Time, "level": r.Level, "msg": r.Msg, "fields": f})
	}
	json.NewEncoder(w).Encode(out)
}

// logsDownload returns recent logs as NDJSON for easy download
func logsDownload(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-store")
	limit := 1000
	if v := r.URL.Query().Get("limit"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			limit = i
		}
	}
	enc := json.NewEncoder(w)
	for _, e := range logging.Recent(limit) {
		_ = enc.Encode(e)
	}
}

// logsGetLevel returns current log level
func logsGetLevel(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"level": logging.GetLevel()})
}

// logsSetLevel updates global log level
func logsSetLevel(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var in struct {
		Level string `json:"level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if in.Level == "" {
		http.Error(w, "level required", 400)
		return
	}
	logging.SetLevel(in.Level)
	json.NewEncoder(w).Encode(map[string]any{"ok": true, "level": logging.GetLevel()})
}

// logsStream streams logs via Server-Sent Events
func logsStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	fl, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", 500)
		return
	}
	qLevel := r.URL.Query().Get("level")
	write := func(e any) {
		b, _ := json.Marshal(e)
		w.Write([]byte("data: "))
		w.Write(b)
		w.Write([]byte("\n\n"))
		fl.Flush()
	}
	// send a small backlog first
	for _, e := range logging.Recent(50) {
		if qLevel == "" || e.Level == qLevel {
			write(e)
		}
	}
	ch, cancel := logging.Subscribe()
	defer cancel()
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if qLevel == "" || e.Level == qLevel {
				write(e)
			}
		}
	}
}

// obsSummary aggregates recent traces: latency distribution, status counts,
// per-minute request/error buckets and per-path hot spots.
func obsSummary(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var trs []models.TraceRow
	_ = db.DB.Order("started desc").Limit(500).Find(&trs).Error

	lat := make([]float64, 0, len(trs))
	statusCounts := map[string]int{"2xx": 0, "3xx": 0, "4xx": 0, "5xx": 0}
	now := time.Now().UTC()
	type minuteBucket struct {
		Count  int
		Errors int
	}
	buckets := map[int64]*minuteBucket{}
	for i := 0; i < 12; i++ {
		m := now.Add(-time.Duration(i) * time.Minute).Truncate(time.Minute).Unix()
		buckets[m] = &minuteBucket{}
	}
	type pathAgg struct {
		Count int
		SumMs float64
		Errs  int
	}
	paths := map[string]*pathAgg{}
	for _, t := range trs {
		ms := float64(t.DurationNs) / 1e6
		if ms < 0 {
			ms = 0
		}
		lat = append(lat, ms)
		switch {
		case t.Status >= 500:
			statusCounts["5xx"]++
		case t.Status >= 400:
			statusCounts["4xx"]++
		case t.Status >= 300:
			statusCounts["3xx"]++
		default:
			statusCounts["2xx"]++
		}
		if b, ok := buckets[t.Started.UTC().Truncate(time.Minute).Unix()]; ok {
			b.Count++
			if t.Status >= 400 {
				b.Errors++
			}
		}
		pa := paths[t.Path]
		if pa == nil {
			pa = &pathAgg{}
			paths[t.Path] = pa
		}
		pa.Count++
		pa.SumMs += ms
		if t.Status >= 400 {
			pa.Errs++
		}
	}

	topSlow := make([]map[string]any, 0)
	topErrors := make([]map[string]any, 0)
	for p, ag := range paths {
		if ag.Count >= 3 {
			topSlow = append(topSlow, map[string]any{"path": p, "count": ag.Count, "avgMs": ag.SumMs / float64(ag.Count)})
		}
		if ag.Errs > 0 {
			topErrors = append(topErrors, map[string]any{"path": p, "count": ag.Errs})
		}
	}
	sort.Slice(topSlow, func(i, j int) bool { return topSlow[i]["avgMs"].(float64) > topSlow[j]["avgMs"].(float64) })
	if len(topSlow) > 5 {
		topSlow = topSlow[:5]
	}
	sort.Slice(topErrors, func(i, j int) bool { return topErrors[i]["count"].(int) > topErrors[j]["count"].(int) })
	if len(topErrors) > 8 {
		topErrors = topErrors[:8]
	}

	perMinute := make([]map[string]any, 0, len(buckets))
	for ts, b := range buckets {
		perMinute = append(perMinute, map[string]any{"ts": ts, "count": b.Count, "errors": b.Errors})
	}
	sort.Slice(perMinute, func(i, j int) bool { return perMinute[i]["ts"].(int64) < perMinute[j]["ts"].(int64) })

	json.NewEncoder(w).Encode(map[string]any{
		"recentLatencies": lat,
		"statusCounts":    statusCounts,
		"perMinute":       perMinute,
		"topSlow":         topSlow,
		"topErrors":       topErrors,
	})
}

func openapiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	spec := map[string]any{
		"openapi": "3.0.3",
		"info":    map[string]any{"title": "Janus API", "version": "0.1.0", "description": "Per-tenant object storage gateway (upload negotiation, proxy ingestion, buckets, objects, governance, observability)"},
		"servers": []any{map[string]any{"url": "/api/v1"}},
		"paths": map[string]any{
			"/uploads/negotiate": map[string]any{"post": map[string]any{"summary": "Negotiate upload strategy", "requestBody": map[string]any{"required": true, "content": map[string]any{"application/json": map[string]any{"schema": map[string]any{"type": "object", "properties": map[string]any{"bucket": map[string]any{"type": "string"}, "path": map[string]any{"type": "string"}, "name": map[string]any{"type": "string"}, "type": map[string]any{"type": "string"}, "size": map[string]any{"type": "integer"}}, "required": []any{"bucket", "name", "size"}}}}}, "responses": map[string]any{"200": map[string]any{"description": "Upload decision"}, "422": map[string]any{"description": "Policy violation"}}}},
			"/buckets": map[string]any{
				"get":  map[string]any{"summary": "List buckets", "responses": map[string]any{"200": map[string]any{"description": "OK"}}},
				"post": map[string]any{"summary": "Create bucket (idempotent)", "responses": map[string]any{"201": map[string]any{"description": "Created"}}},
			},
			"/buckets/{bucket}": map[string]any{
				"put":    map[string]any{"summary": "Rename bucket", "responses": map[string]any{"204": map[string]any{"description": "Renamed"}, "409": map[string]any{"description": "Name conflict"}}},
				"delete": map[string]any{"summary": "Delete bucket", "responses": map[string]any{"204": map[string]any{"description": "Deleted"}}},
			},
			"/buckets/{bucket}/objects": map[string]any{
				"get":    map[string]any{"summary": "List one directory level", "parameters": []any{map[string]any{"name": "path", "in": "query", "schema": map[string]any{"type": "string"}}}, "responses": map[string]any{"200": map[string]any{"description": "OK"}}},
				"post":   map[string]any{"summary": "Proxy ingestion (multipart)", "responses": map[string]any{"200": map[string]any{"description": "Committed"}, "422": map[string]any{"description": "Policy or signature rejection"}}},
				"delete": map[string]any{"summary": "Delete object or folder", "parameters": []any{map[string]any{"name": "path", "in": "query", "required": true, "schema": map[string]any{"type": "string"}}}, "responses": map[string]any{"204": map[string]any{"description": "Deleted"}}},
			},
			"/buckets/{bucket}/objects/search":   map[string]any{"get": map[string]any{"summary": "Recursive name search (local provider)", "parameters": []any{map[string]any{"name": "q", "in": "query", "required": true, "schema": map[string]any{"type": "string"}}}, "responses": map[string]any{"200": map[string]any{"description": "OK"}}}},
			"/objects/search":                    map[string]any{"get": map[string]any{"summary": "Tenant-wide recursive name search", "parameters": []any{map[string]any{"name": "q", "in": "query", "required": true, "schema": map[string]any{"type": "string"}}, map[string]any{"name": "bucket", "in": "query", "schema": map[string]any{"type": "string"}}}, "responses": map[string]any{"200": map[string]any{"description": "OK"}}}},
			"/buckets/{bucket}/objects/move":     map[string]any{"post": map[string]any{"summary": "Batch move with partial-failure report", "responses": map[string]any{"200": map[string]any{"description": "Move report"}}}},
			"/buckets/{bucket}/objects/download": map[string]any{"get": map[string]any{"summary": "Download object (local provider)", "parameters": []any{map[string]any{"name": "path", "in": "query", "required": true, "schema": map[string]any{"type": "string"}}}, "responses": map[string]any{"200": map[string]any{"description": "OK"}}}},
			"/buckets/{bucket}/folders":          map[string]any{"post": map[string]any{"summary": "Create folder", "responses": map[string]any{"201": map[string]any{"description": "Created"}}}},
			"/storage/config":                    map[string]any{"get": map[string]any{"summary": "Active storage configuration (sanitized)", "responses": map[string]any{"200": map[string]any{"description": "OK"}}}},
			"/storage/rules":                     map[string]any{"get": map[string]any{"summary": "Effective governance rules per sector", "responses": map[string]any{"200": map[string]any{"description": "OK"}}}},
			"/obs/metrics":                       map[string]any{"get": map[string]any{"summary": "Server metrics", "responses": map[string]any{"200": map[string]any{"description": "OK"}}}},
			"/obs/summary":                       map[string]any{"get": map[string]any{"summary": "Observability summary", "responses": map[string]any{"200": map[string]any{"description": "OK"}}}},
			"/obs/errors":                        map[string]any{"get": map[string]any{"summary": "Recent error traces", "responses": map[string]any{"200": map[string]any{"description": "OK"}}}},
			"/trace/recent":                      map[string]any{"get": map[string]any{"summary": "Recent traces", "responses": map[string]any{"200": map[string]any{"description": "OK"}}}},
			"/trace/{id}":                        map[string]any{"get": map[string]any{"summary": "Trace detail", "parameters": []any{map[string]any{"name": "id", "in": "path", "required": true, "schema": map[string]any{"type": "string"}}}, "responses": map[string]any{"200": map[string]any{"description": "OK"}}}},
		},
	}
	json.NewEncoder(w).Encode(spec)
}

func registerAPI(r chi.Router, s *apiServer) {
	// tenant-authenticated storage surface
	r.Group(func(tr chi.Router) {
		tr.Use(s.requireTenant)

		tr.Post("/uploads/negotiate", s.negotiateUpload)

		tr.Route("/buckets", func(r chi.Router) {
			r.Get("/", s.listBuckets)
			r.Post("/", s.createBucket)
			r.Put("/{bucket}", s.renameBucket)
			r.Delete("/{bucket}", s.deleteBucket)

			r.Get("/{bucket}/objects", s.listObjects)
			r.Post("/{bucket}/objects", s.ingestObject)
			r.Delete("/{bucket}/objects", s.deleteObject)
			r.Get("/{bucket}/objects/search", s.searchObjects)
			r.Post("/{bucket}/objects/move", s.moveObjects)
			r.Get("/{bucket}/objects/download", s.downloadObject)
			r.Post("/{bucket}/folders", s.createFolder)
		})

		tr.Get("/objects/search", s.searchObjects)

		tr.Get("/storage/config", s.storageConfig)
		tr.Get("/storage/rules", s.storageRules)

		// observability, visible to any authenticated tenant
		tr.Get("/obs/metrics", metricsHandler)
		tr.Get("/obs/errors", errorsHandler)
		tr.Get("/obs/summary", obsSummary)
		tr.Get("/openapi.json", openapiHandler)
		tr.Get("/trace/recent", traceRecent)
		tr.Get("/trace/{id}", traceGet)
		tr.Get("/logs/recent", logsRecent)
		tr.Get("/logs/download", logsDownload)
		tr.Get("/logs/level", logsGetLevel)
		tr.Put("/logs/level", logsSetLevel)
		tr.Get("/logs/stream", logsStream)
	})

	// operator surface
	r.Route("/admin", func(ar chi.Router) {
		ar.Use(s.requireOperator)
		ar.Get("/tenants", s.listTenants)
		ar.Post("/tenants", s.createTenant)
		ar.Delete("/tenants/{id}", s.deleteTenant)
		ar.Post("/tenants/{id}/rotate-key", s.rotateTenantKey)
		ar.Put("/tenants/{id}/storage", s.putTenantStorage)
		ar.Get("/tenants/{id}/rules", s.listTenantRules)
		ar.Put("/tenants/{id}/rules", s.putTenantRule)
		ar.Delete("/tenants/{id}/rules/{sector}", s.deleteTenantRule)
	})
}
