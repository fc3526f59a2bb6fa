package api

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/arencloud/janus/internal/db"
	"github.com/arencloud/janus/internal/models"
	"github.com/arencloud/janus/internal/policy"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
)

var slugRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}$`)

func newAPISecret() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (s *apiServer) listTenants(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var tenants []models.Tenant
	if err := db.DB.Find(&tenants).Error; err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	json.NewEncoder(w).Encode(tenants)
}

// createTenant provisions a tenant with a local storage config. The full API
// key is returned exactly once; only its hash is stored.
func (s *apiServer) createTenant(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var in struct {
		Slug string `json:"slug"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if !slugRe.MatchString(in.Slug) {
		http.Error(w, "invalid slug", 400)
		return
	}
	secret, err := newAPISecret()
	if err != nil {
		http.Error(w, "failed to generate api key", 500)
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "failed to hash api key", 500)
		return
	}
	t := models.Tenant{Slug: in.Slug, Name: in.Name, APIKeyHash: string(hash)}
	if err := db.DB.Create(&t).Error; err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	_ = db.DB.Create(&models.StorageConfig{TenantID: t.ID, Provider: "local"}).Error
	_ = db.DB.Create(&models.GovernanceRule{
		TenantID:       t.ID,
		Sector:         string(policy.SectorGlobal),
		MaxSizeProxied: policy.DefaultMaxSizeProxied,
		MaxSizeDirect:  policy.DefaultMaxSizeDirect,
	}).Error
	s.logger.Info("tenant created", "slug", t.Slug)
	w.WriteHeader(201)
	json.NewEncoder(w).Encode(map[string]any{"tenant": t, "apiKey": t.Slug + "." + secret})
}

// rotateTenantKey replaces the tenant's API key and returns the new one once.
func (s *apiServer) rotateTenantKey(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	t, ok := s.tenantByID(w, r)
	if !ok {
		return
	}
	secret, err := newAPISecret()
	if err != nil {
		http.Error(w, "failed to generate api key", 500)
		return
	}
	hash, _ := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	t.APIKeyHash = string(hash)
	if err := db.DB.Save(&t).Error; err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	s.logger.Info("tenant api key rotated", "slug", t.Slug)
	json.NewEncoder(w).Encode(map[string]any{"apiKey": t.Slug + "." + secret})
}

func (s *apiServer) deleteTenant(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tenantByID(w, r)
	if !ok {
		return
	}
	_ = db.DB.Where("tenant_id = ?", t.ID).Delete(&models.StorageConfig{}).Error
	_ = db.DB.Where("tenant_id = ?", t.ID).Delete(&models.GovernanceRule{}).Error
	if err := db.DB.Delete(&models.Tenant{}, t.ID).Error; err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	w.WriteHeader(204)
}

// putTenantStorage replaces the tenant's storage configuration. Objects
// already stored under the previous provider are not migrated.
func (s *apiServer) putTenantStorage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	t, ok := s.tenantByID(w, r)
	if !ok {
		return
	}
	var in models.StorageConfig
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	var sc models.StorageConfig
	if err := db.DB.First(&sc, "tenant_id = ?", t.ID).Error; err != nil {
		sc = models.StorageConfig{TenantID: t.ID}
	}
	in.ID = sc.ID
	in.TenantID = t.ID
	if err := db.DB.Save(&in).Error; err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	s.logger.Info("tenant storage updated", "slug", t.Slug, "provider", in.Provider)
	json.NewEncoder(w).Encode(in)
}

func (s *apiServer) listTenantRules(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	t, ok := s.tenantByID(w, r)
	if !ok {
		return
	}
	var rules []models.GovernanceRule
	if err := db.DB.Where("tenant_id = ?", t.ID).Find(&rules).Error; err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	json.NewEncoder(w).Encode(rules)
}

// putTenantRule upserts one sector override.
func (s *apiServer) putTenantRule(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	t, ok := s.tenantByID(w, r)
	if !ok {
		return
	}
	var in struct {
		Sector            string `json:"sector"`
		MaxSizeProxied    int64  `json:"maxSizeProxied"`
		MaxSizeDirect     int64  `json:"maxSizeDirect"`
		AllowedExtensions string `json:"allowedExtensions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	sector := strings.ToLower(strings.TrimSpace(in.Sector))
	if !validSector(sector) {
		http.Error(w, "unknown sector", 400)
		return
	}
	var rule models.GovernanceRule
	err := db.DB.Where("tenant_id = ? AND sector = ?", t.ID, sector).First(&rule).Error
	if err != nil {
		rule = models.GovernanceRule{TenantID: t.ID, Sector: sector}
	}
	rule.MaxSizeProxied = in.MaxSizeProxied
	rule.MaxSizeDirect = in.MaxSizeDirect
	rule.AllowedExtensions = in.AllowedExtensions
	if err := db.DB.Save(&rule).Error; err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	if policy.OverCeiling(policy.Rule{MaxSizeProxied: rule.MaxSizeProxied}, s.cfg.MaxBodyBytes) {
		// flagged, never clamped: proxied uploads above the body ceiling
		// will be cut off by the HTTP layer before this rule applies
		s.logger.Info("governance rule exceeds proxied body ceiling",
			"tenant", t.Slug, "sector", rule.Sector,
			"maxSizeProxied", rule.MaxSizeProxied, "bodyCeiling", s.cfg.MaxBodyBytes)
	}
	json.NewEncoder(w).Encode(rule)
}

func (s *apiServer) deleteTenantRule(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tenantByID(w, r)
	if !ok {
		return
	}
	sector := chi.URLParam(r, "sector")
	if err := db.DB.Where("tenant_id = ? AND sector = ?", t.ID, sector).Delete(&models.GovernanceRule{}).Error; err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	w.WriteHeader(204)
}

func (s *apiServer) tenantByID(w http.ResponseWriter, r *http.Request) (models.Tenant, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		http.Error(w, "invalid tenant id", 400)
		return models.Tenant{}, false
	}
	var t models.Tenant
	if err := db.DB.First(&t, id).Error; err != nil {
		http.Error(w, "not found", 404)
		return models.Tenant{}, false
	}
	return t, true
}

func validSector(s string) bool {
	for _, sec := range policy.Sectors() {
		if string(sec) == s {
			return true
		}
	}
	return false
}
