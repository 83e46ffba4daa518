// Package app wires configuration, storage, services, and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/keywarden/keywarden/internal/authn"
	"github.com/keywarden/keywarden/internal/config"
	"github.com/keywarden/keywarden/internal/db"
	"github.com/keywarden/keywarden/internal/enroll"
	"github.com/keywarden/keywarden/internal/http/api"
	"github.com/keywarden/keywarden/internal/ratelimit"
	"github.com/keywarden/keywarden/internal/secrets"
	"github.com/keywarden/keywarden/internal/store"
)

// RunServer boots the provisioning service and blocks until ctx is done or
// the listener fails.
func RunServer(ctx context.Context, cfg config.AppConfig, port int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)

	storageCfg, errStorage := config.LoadStorageConfig(configPath)
	if errStorage != nil {
		return errStorage
	}
	totpCfg, errTOTP := config.LoadTOTPConfig(configPath)
	if errTOTP != nil {
		return errTOTP
	}
	authCfg, errAuth := config.LoadAuthConfig(configPath)
	if errAuth != nil {
		return errAuth
	}

	credStore, conn, errOpen := openStore(storageCfg)
	if errOpen != nil {
		return errOpen
	}

	sealed, errSeal := sealStore(credStore, configPath)
	if errSeal != nil {
		return errSeal
	}

	limiter := ratelimit.NewManager(func() ratelimit.SettingsConfig {
		return ratelimit.SettingsConfig{
			Attempts:      authCfg.RateLimit.Attempts,
			Window:        authCfg.RateLimit.Window,
			RedisEnabled:  authCfg.RateLimit.Redis.Enabled,
			RedisAddr:     authCfg.RateLimit.Redis.Addr,
			RedisPassword: authCfg.RateLimit.Redis.Password,
			RedisDB:       authCfg.RateLimit.Redis.DB,
			RedisPrefix:   authCfg.RateLimit.Redis.Prefix,
		}
	}, nil, nil)

	enrollSvc := enroll.NewService(sealed, totpCfg.Issuer, nil)
	authSvc := authn.NewService(sealed, limiter, authCfg.FailureDelay, nil, nil)

	engine := gin.New()
	engine.Use(gin.Recovery())
	api.RegisterRoutes(engine, enrollSvc, authSvc, conn)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s (backend=%s)", server.Addr, storageCfg.Backend)
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
		}
		close(errCh)
	}()

	select {
	case errServe := <-errCh:
		return errServe
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.DefaultShutdownTimeout)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return fmt.Errorf("shutdown: %w", errShutdown)
	}
	return nil
}

// openStore builds the configured store backend. The returned connection is
// nil for the file backend.
func openStore(storageCfg config.StorageConfig) (store.Store, *gorm.DB, error) {
	switch storageCfg.Backend {
	case config.BackendDatabase:
		conn, errOpen := db.Open(storageCfg.DSN)
		if errOpen != nil {
			return nil, nil, errOpen
		}
		if errMigrate := db.Migrate(conn); errMigrate != nil {
			return nil, nil, errMigrate
		}
		return store.NewGormStore(conn), conn, nil
	default:
		fileStore, errFile := store.NewFileStore(storageCfg.DataDir)
		if errFile != nil {
			return nil, nil, errFile
		}
		return fileStore, nil, nil
	}
}

// sealStore wraps the store with at-rest sealing when a key is configured.
func sealStore(credStore store.Store, configPath string) (store.Store, error) {
	encoded, errLoad := config.LoadSealKey(configPath)
	if errLoad != nil {
		return nil, errLoad
	}
	if encoded == "" {
		return credStore, nil
	}
	key, errDecode := secrets.DecodeKey(encoded)
	if errDecode != nil {
		return nil, errDecode
	}
	sealer, errSealer := secrets.NewSealer(key)
	if errSealer != nil {
		return nil, errSealer
	}
	log.Info("at-rest sealing enabled")
	return store.NewSealedStore(credStore, sealer), nil
}
