// Command doorpasses-sweeper runs the periodic maintenance jobs: expired
// session deletion, expired invitation cleanup, and audit log retention.
// It is deployed as a singleton alongside the API server.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/doorpasses/platform/pkg/audit"
	"github.com/doorpasses/platform/pkg/auth"
	"github.com/doorpasses/platform/pkg/config"
	"github.com/doorpasses/platform/pkg/orgs"
	"github.com/doorpasses/platform/pkg/storage/postgres"
)

func main() {
	schedule := flag.String("schedule", "@hourly", "Cron schedule for the sweep")
	runOnce := flag.Bool("once", false, "Run a single sweep and exit")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	ctx := context.Background()
	db, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	var sessions auth.Store
	if cfg.Session.Backend == config.SessionBackendRedis {
		store, err := auth.NewRedisStore(cfg.Redis)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to redis")
		}
		sessions = store
	} else {
		sessions = auth.NewPostgresStore(db)
	}

	sweeper := &sweeper{
		sessions:  sessions,
		orgs:      orgs.NewPostgresService(db),
		audit:     audit.NewDBStore(db),
		retention: audit.RetentionPolicy{MaxAge: time.Duration(cfg.Audit.RetentionDays) * 24 * time.Hour},
		log:       log,
	}

	if *runOnce {
		sweeper.sweep(ctx)
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(*schedule, func() { sweeper.sweep(ctx) }); err != nil {
		log.WithError(err).Fatal("invalid cron schedule")
	}
	c.Start()
	log.WithField("schedule", *schedule).Info("sweeper started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	<-c.Stop().Done()
	log.Info("sweeper stopped")
}

type sweeper struct {
	sessions  auth.Store
	orgs      orgs.Service
	audit     audit.Store
	retention audit.RetentionPolicy
	log       *logrus.Logger
}

// sweep runs each job independently so one failure does not starve the
// others.
func (s *sweeper) sweep(ctx context.Context) {
	now := time.Now().UTC()

	if n, err := s.sessions.DeleteExpiredSessions(ctx, now); err != nil {
		s.log.WithError(err).Error("expired session sweep failed")
	} else if n > 0 {
		s.log.WithField("deleted", n).Info("deleted expired sessions")
	}

	if n, err := s.orgs.CleanupExpiredInvitations(ctx, now); err != nil {
		s.log.WithError(err).Error("expired invitation sweep failed")
	} else if n > 0 {
		s.log.WithField("deleted", n).Info("deleted expired invitations")
	}

	if n, err := s.audit.Cleanup(ctx, s.retention, now); err != nil {
		s.log.WithError(err).Error("audit retention sweep failed")
	} else if n > 0 {
		s.log.WithField("deleted", n).Info("trimmed audit records past retention")
	}
}
