// File: internal/jobs/archive_sweep.go
package jobs

import (
	"context"
	"fmt"
	"time"

	"vamarket_backend/internal/announcement"
	"vamarket_backend/internal/config"
	"vamarket_backend/internal/notification"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ArchiveSweepJob periodically archives stale read notifications and
// deactivates expired announcements.
type ArchiveSweepJob struct {
	notifications notification.Repository
	announcements announcement.Repository
	logger        *zap.Logger
	cfg           *config.Config
	cronScheduler *cron.Cron
}

// NewArchiveSweepJob creates a new ArchiveSweepJob.
func NewArchiveSweepJob(
	notifications notification.Repository,
	announcements announcement.Repository,
	logger *zap.Logger,
	cfg *config.Config,
) *ArchiveSweepJob {
	scheduler := cron.New(cron.WithLogger(NewCronLogger(logger.Named("cron"))))

	return &ArchiveSweepJob{
		notifications: notifications,
		announcements: announcements,
		logger:        logger.Named("ArchiveSweepJob"),
		cfg:           cfg,
		cronScheduler: scheduler,
	}
}

// SetupAndStart schedules and starts the cron job.
func (j *ArchiveSweepJob) SetupAndStart() error {
	jobSpec := j.cfg.SweepJobSchedule // e.g., "@daily", "0 2 * * *" (2 AM daily)
	if jobSpec == "" {
		j.logger.Warn("Archive sweep job schedule not defined (SWEEP_JOB_SCHEDULE). Job will not run.")
		return nil
	}

	jobID, err := j.cronScheduler.AddFunc(jobSpec, j.runJob)
	if err != nil {
		j.logger.Error("Failed to schedule archive sweep job", zap.String("spec", jobSpec), zap.Error(err))
		return err
	}

	j.logger.Info("Archive sweep job scheduled", zap.String("spec", jobSpec), zap.Any("jobID", jobID))
	j.cronScheduler.Start()
	return nil
}

// runJob is the actual work performed by the cron job. Only notifications
// that have been read are eligible for auto archival; unread rows stay in
// the inbox no matter how old they are.
func (j *ArchiveSweepJob) runJob() {
	j.logger.Info("Starting archive sweep job run...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().AddDate(0, 0, -j.cfg.AutoArchiveDays)
	archived, err := j.notifications.AutoArchiveOld(ctx, cutoff)
	if err != nil {
		j.logger.Error("Notification auto-archive failed", zap.Error(err))
	} else {
		j.logger.Info("Notification auto-archive completed",
			zap.Int64("notifications_archived", archived),
			zap.Time("cutoff", cutoff))
	}

	deactivated, err := j.announcements.ArchiveExpired(ctx)
	if err != nil {
		j.logger.Error("Announcement expiry sweep failed", zap.Error(err))
	} else {
		j.logger.Info("Announcement expiry sweep completed", zap.Int64("announcements_deactivated", deactivated))
	}
}

// Stop gracefully stops the cron scheduler.
func (j *ArchiveSweepJob) Stop() {
	if j.cronScheduler != nil {
		j.logger.Info("Stopping archive sweep job scheduler...")
		stopCtx := j.cronScheduler.Stop()
		select {
		case <-stopCtx.Done():
			j.logger.Info("Archive sweep job scheduler stopped gracefully.")
		case <-time.After(10 * time.Second):
			j.logger.Warn("Archive sweep job scheduler stop timed out.")
		}
	}
}

// --- Cron Logger Adapter ---

// cronLogger adapts zap.Logger to cron.Logger interface.
type cronLogger struct {
	zl *zap.Logger
}

// NewCronLogger creates a new cronLogger.
func NewCronLogger(zl *zap.Logger) cron.Logger {
	return &cronLogger{zl: zl}
}

// Info logs routine messages from cron.
func (cl *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	cl.zl.Info(msg, cl.parseKeysAndValues(keysAndValues...)...)
}

// Error logs error messages from cron.
func (cl *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := cl.parseKeysAndValues(keysAndValues...)
	fields = append(fields, zap.Error(err))
	cl.zl.Error(msg, fields...)
}

func (cl *cronLogger) parseKeysAndValues(keysAndValues ...interface{}) []zap.Field {
	var fields []zap.Field
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) {
			fields = append(fields, zap.Any(fmt.Sprintf("%v", keysAndValues[i]), keysAndValues[i+1]))
		} else {
			fields = append(fields, zap.Any(fmt.Sprintf("%v", keysAndValues[i]), "MISSING_VALUE"))
		}
	}
	return fields
}
