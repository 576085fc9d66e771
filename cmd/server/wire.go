// File: cmd/server/wire.go
//go:build wireinject
// +build wireinject

package main

import (
	"vamarket_backend/internal/announcement"
	"vamarket_backend/internal/app"
	"vamarket_backend/internal/config"
	"vamarket_backend/internal/dispatch"
	"vamarket_backend/internal/firebase"
	"vamarket_backend/internal/jobs"
	"vamarket_backend/internal/mailer"
	"vamarket_backend/internal/notification"
	"vamarket_backend/internal/platform/database"
	platformElasticsearch "vamarket_backend/internal/platform/elasticsearch"
	"vamarket_backend/internal/platform/logger"
	"vamarket_backend/internal/push"
	"vamarket_backend/internal/shared"
	"vamarket_backend/internal/user"

	"github.com/google/wire"
)

// initializeServer is the main Wire injector.
func initializeServer(cfg *config.Config) (*app.Server, func(), error) {
	wire.Build(
		// Platform Layer
		logger.New,
		database.NewGORM,
		platformElasticsearch.NewClient,
		provideCleanup,

		// Firebase Service
		firebase.NewFirebaseService,

		// Core User Services
		user.NewGORMRepository, // Provides user.Repository
		user.NewService,        // Provides *user.ServiceImplementation
		wire.Bind(new(shared.UserProvider), new(*user.ServiceImplementation)),
		wire.Bind(new(shared.Directory), new(*user.ServiceImplementation)),

		// Push
		provideHub,
		wire.Bind(new(push.Channel), new(*push.Hub)),
		push.NewHandler,

		// Email
		mailer.NewMailer,

		// Notifications
		notification.NewGORMRepository,
		notification.NewService,
		notification.NewHandler,

		// Announcements
		announcement.NewGORMRepository,
		announcement.NewGORMLedger,
		announcement.NewIndexer,
		announcement.NewService,
		announcement.NewHandler,

		// Admin fan-out
		dispatch.NewGORMRepository,
		dispatch.NewDispatcher,
		dispatch.NewStatsService,
		dispatch.NewHandler,

		// Jobs
		jobs.NewArchiveSweepJob,

		// Application Layer
		app.NewServer,
	)
	return nil, nil, nil
}
