package db

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arencloud/janus/internal/config"
	"github.com/arencloud/janus/internal/logging"
	"github.com/arencloud/janus/internal/models"
	"github.com/arencloud/janus/internal/policy"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

func Init(cfg *config.Config, logger logging.Logger) error {
	var gormLevel gormlogger.LogLevel
	switch strings.ToLower(logging.GetLevel()) {
	case "debug":
		gormLevel = gormlogger.Info // log SQL traces at debug level
	case "error", "fatal":
		gormLevel = gormlogger.Error
	default:
		gormLevel = gormlogger.Warn
	}
	gormLogger := newGormLogger(logger, gormLevel)

	var dialector gorm.Dialector
	driver := strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	if driver == "postgres" || driver == "postgresql" {
		if cfg.DBDsn == "" {
			return &os.PathError{Op: "open", Path: "DATABASE_URL/DB_DSN", Err: os.ErrInvalid}
		}
		dialector = postgres.Open(cfg.DBDsn)
		logger.Info("db connect", "driver", "postgres")
	} else {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return err
		}
		dialector = sqlite.Open(cfg.DBPath)
		logger.Info("db connect", "driver", "sqlite", "path", cfg.DBPath)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return err
	}
	if err := gdb.AutoMigrate(
		&models.Tenant{},
		&models.StorageConfig{},
		&models.GovernanceRule{},
		&models.LogEntry{},
		&models.TraceRow{},
		&models.TraceEventRow{},
	); err != nil {
		return err
	}
	DB = gdb

	// Hook logging persistence into DB (non-blocking)
	logging.SetPersist(func(e any) error {
		b, _ := json.Marshal(e)
		var tmp struct {
			Time   time.Time      `json:"time"`
			Level  string         `json:"level"`
			Msg    string         `json:"msg"`
			Fields map[string]any `json:"fields"`
		}
		if err := json.Unmarshal(b, &tmp); err != nil {
			return nil
		}
		fieldsBytes, _ := json.Marshal(tmp.Fields)
		le := models.LogEntry{Time: tmp.Time, Level: tmp.Level, Msg: tmp.Msg, Fields: string(fieldsBytes)}
		return DB.Create(&le).Error
	})

	// Bootstrap a default tenant on first run so the gateway is usable
	// immediately. The generated secret is logged exactly once.
	var count int64
	if err := DB.Model(&models.Tenant{}).Count(&count).Error; err == nil && count == 0 {
		secret := make([]byte, 16)
		if _, err := rand.Read(secret); err == nil {
			apiSecret := hex.EncodeToString(secret)
			hash, _ := bcrypt.GenerateFromPassword([]byte(apiSecret), bcrypt.DefaultCost)
			tenant := models.Tenant{Slug: "default", Name: "Default Project", APIKeyHash: string(hash)}
			if err := DB.Create(&tenant).Error; err == nil {
				_ = DB.Create(&models.StorageConfig{TenantID: tenant.ID, Provider: "local"}).Error
				_ = DB.Create(&models.GovernanceRule{
					TenantID:       tenant.ID,
					Sector:         string(policy.SectorGlobal),
					MaxSizeProxied: policy.DefaultMaxSizeProxied,
					MaxSizeDirect:  policy.DefaultMaxSizeDirect,
				}).Error
				logger.Info("default tenant created", "slug", tenant.Slug, "apiKey", tenant.Slug+"."+apiSecret)
			} else {
				logger.Error("failed to create default tenant", "error", err)
			}
		}
	}
	return nil
}
