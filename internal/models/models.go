package models

import (
	"time"
)

// Tenant is a project owning an isolated storage root. API keys are presented
// as "<slug>.<secret>"; only the bcrypt hash of the secret is stored.
type Tenant struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Slug       string    `gorm:"uniqueIndex;not null" json:"slug"`
	Name       string    `json:"name"`
	APIKeyHash string    `json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// StorageConfig selects and parameterizes the tenant's active backend.
// Changing it does not migrate already-stored objects.
type StorageConfig struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	TenantID uint   `gorm:"uniqueIndex;not null" json:"tenantId"`
	Provider string `json:"provider"` // local|s3|cloudinary|imagekit|gdrive|onedrive|dropbox

	// S3-compatible backends
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"accessKey"`
	SecretKey string `json:"secretKey"`
	Region    string `json:"region"`
	Bucket    string `json:"bucket"`
	UseSSL    bool   `json:"useSSL"`

	// Cloudinary
	CloudName string `json:"cloudName"`
	APIKey    string `json:"apiKey"`
	APISecret string `json:"apiSecret"`

	// ImageKit
	PublicKey   string `json:"publicKey"`
	PrivateKey  string `json:"privateKey"`
	URLEndpoint string `json:"urlEndpoint"`

	// OAuth-backed drives (gdrive|onedrive|dropbox)
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	RootFolderID string `json:"rootFolderId"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// GovernanceRule caps uploads for one sector of a tenant. An empty
// AllowedExtensions means no extension restriction.
type GovernanceRule struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	TenantID          uint      `gorm:"index:idx_tenant_sector,unique;not null" json:"tenantId"`
	Sector            string    `gorm:"index:idx_tenant_sector,unique;not null" json:"sector"`
	MaxSizeProxied    int64     `json:"maxSizeProxied"`
	MaxSizeDirect     int64     `json:"maxSizeDirect"`
	AllowedExtensions string    `json:"allowedExtensions"` // comma-separated, lowercase, no dots
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Persistent observability models

type LogEntry struct {
	ID     uint      `gorm:"primaryKey" json:"id"`
	Time   time.Time `json:"time"`
	Level  string    `json:"level"`
	Msg    string    `json:"msg"`
	Fields string    `json:"fields"` // JSON string of fields
}

type TraceRow struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Status     int       `json:"status"`
	TenantSlug string    `json:"tenantSlug"`
	UserAgent  string    `json:"userAgent"`
	RemoteIP   string    `json:"remoteIp"`
	ReqBytes   int64     `json:"reqBytes"`
	RespBytes  int64     `json:"respBytes"`
	Started    time.Time `json:"started"`
	Ended      time.Time `json:"ended"`
	DurationNs int64     `json:"durationNs"`
}

type TraceEventRow struct {
	ID      uint      `gorm:"primaryKey" json:"id"`
	TraceID string    `gorm:"index" json:"traceId"`
	Time    time.Time `json:"time"`
	Name    string    `json:"name"`
	Fields  string    `json:"fields"` // JSON string of fields
}
