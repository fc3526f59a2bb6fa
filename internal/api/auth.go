package api

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/arencloud/janus/internal/db"
	"github.com/arencloud/janus/internal/gateway"
	"github.com/arencloud/janus/internal/models"
	"github.com/arencloud/janus/internal/policy"

	"golang.org/x/crypto/bcrypt"
)

const tenantKey ctxKey = 2

// tenantFrom returns the authenticated tenant context, or nil.
func tenantFrom(ctx context.Context) *gateway.TenantContext {
	if v := ctx.Value(tenantKey); v != nil {
		if tc, ok := v.(*gateway.TenantContext); ok {
			return tc
		}
	}
	return nil
}

// apiKeyFrom extracts the presented API key from Authorization: Bearer or
// the X-Api-Key header.
func apiKeyFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return strings.TrimSpace(r.Header.Get("X-Api-Key"))
}

// requireTenant authenticates the "<slug>.<secret>" API key, loads the
// tenant's storage config and governance rules, and stashes a ready
// TenantContext on the request. Every storage route sits behind it.
func (s *apiServer) requireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := apiKeyFrom(r)
		slug, secret, ok := strings.Cut(key, ".")
		if !ok || slug == "" || secret == "" {
			respondError(w, r, http.StatusUnauthorized, "api key required")
			return
		}

		var tenant models.Tenant
		if err := db.DB.First(&tenant, "slug = ?", slug).Error; err != nil {
			respondError(w, r, http.StatusUnauthorized, "invalid api key")
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(tenant.APIKeyHash), []byte(secret)) != nil {
			respondError(w, r, http.StatusUnauthorized, "invalid api key")
			return
		}

		var sc models.StorageConfig
		_ = db.DB.First(&sc, "tenant_id = ?", tenant.ID).Error

		var rules []models.GovernanceRule
		_ = db.DB.Where("tenant_id = ?", tenant.ID).Find(&rules).Error

		tc := &gateway.TenantContext{
			Tenant: tenant,
			Config: sc,
			Engine: policy.NewEngine(toPolicyRules(rules)),
			Root:   filepath.Join(s.cfg.DataRoot, tenant.Slug),
		}
		if t := traceFrom(r.Context()); t != nil {
			t.TenantSlug = tenant.Slug
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tenantKey, tc)))
	})
}

// requireOperator guards the admin surface with the static operator token.
// When no token is configured the surface is disabled entirely.
func (s *apiServer) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminToken == "" {
			respondError(w, r, http.StatusForbidden, "admin surface disabled")
			return
		}
		if apiKeyFrom(r) != s.cfg.AdminToken {
			respondError(w, r, http.StatusForbidden, "operator token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func toPolicyRules(rows []models.GovernanceRule) []policy.Rule {
	out := make([]policy.Rule, 0, len(rows))
	for _, row := range rows {
		out = append(out, policy.Rule{
			Sector:            policy.Sector(row.Sector),
			MaxSizeProxied:    row.MaxSizeProxied,
			MaxSizeDirect:     row.MaxSizeDirect,
			AllowedExtensions: policy.SplitExtensions(row.AllowedExtensions),
		})
	}
	return out
}
