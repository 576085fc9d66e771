// File: cmd/server/providers.go
package main

import (
	"log"

	"vamarket_backend/internal/config"
	"vamarket_backend/internal/platform/database"
	"vamarket_backend/internal/push"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// provideHub sizes the in-process push hub from configuration.
func provideHub(cfg *config.Config, zl *zap.Logger) *push.Hub {
	return push.NewHub(cfg.PushBufferSize, zl)
}

// provideCleanup returns the teardown hook run after server shutdown.
func provideCleanup(zl *zap.Logger, db *gorm.DB) func() {
	return func() {
		zl.Info("Executing cleanup tasks...")
		database.CloseGORMDB(db)
		if err := zl.Sync(); err != nil {
			log.Printf("ERROR: Failed to sync logger during cleanup: %v", err)
		}
		log.Println("Cleanup finished.")
	}
}
