package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	iauth "github.com/crewdeck/crewdeck/internal/auth"
	"github.com/crewdeck/crewdeck/internal/cache"
	"github.com/crewdeck/crewdeck/internal/services"
	"github.com/crewdeck/crewdeck/pkg/logger"
)

const (
	defaultInvitationRetention = 30 * 24 * time.Hour
	defaultTokenSpec           = "@hourly"
	defaultInvitationSpec      = "@hourly"
	defaultCacheSpec           = "@daily"
)

// Cleaner coordinates background maintenance: dropping expired refresh
// tokens, expiring and purging stale invitations, and pruning database-backed
// cache entries.
type Cleaner struct {
	refreshStore *iauth.RefreshTokenStore
	invitations  *services.InvitationService
	cacheStore   *cache.DatabaseStore
	cron         *cron.Cron
	log          *zap.Logger
	retention    time.Duration

	tokenSchedule      string
	invitationSchedule string
	cacheSchedule      string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithInvitationRetention adjusts how long terminal invitations are kept.
func WithInvitationRetention(retention time.Duration) Option {
	return func(cleaner *Cleaner) {
		if retention > 0 {
			cleaner.retention = retention
		}
	}
}

// WithTokenSchedule overrides the cron specification for refresh token cleanup.
func WithTokenSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.tokenSchedule = spec
		}
	}
}

// WithInvitationSchedule overrides the cron specification for invitation sweeps.
func WithInvitationSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.invitationSchedule = spec
		}
	}
}

// WithCacheSchedule overrides the cron specification for cache entry pruning.
func WithCacheSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cacheSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency
// results in the corresponding cleanup job being skipped.
func NewCleaner(refreshStore *iauth.RefreshTokenStore, invitations *services.InvitationService, cacheStore *cache.DatabaseStore, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		refreshStore:       refreshStore,
		invitations:        invitations,
		cacheStore:         cacheStore,
		retention:          defaultInvitationRetention,
		tokenSchedule:      defaultTokenSpec,
		invitationSchedule: defaultInvitationSpec,
		cacheSchedule:      defaultCacheSpec,
		log:                logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it if at
// least one job is configured.
func (c *Cleaner) Start() error {
	registered := false

	if c.refreshStore != nil {
		if _, err := c.cron.AddFunc(c.tokenSchedule, func() {
			if _, err := c.refreshStore.CleanupExpired(context.Background()); err != nil {
				c.log.Warn("refresh token cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
		registered = true
	}

	if c.invitations != nil {
		if _, err := c.cron.AddFunc(c.invitationSchedule, func() {
			ctx := context.Background()
			if _, err := c.invitations.SweepExpired(ctx); err != nil {
				c.log.Warn("invitation sweep failed", zap.Error(err))
			}
			if _, err := c.invitations.PurgeTerminal(ctx, c.retention); err != nil {
				c.log.Warn("invitation purge failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
		registered = true
	}

	if c.cacheStore != nil {
		if _, err := c.cron.AddFunc(c.cacheSchedule, func() {
			if _, err := c.cacheStore.CleanupExpired(context.Background()); err != nil {
				c.log.Warn("cache cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
		registered = true
	}

	if registered {
		c.cron.Start()
	}
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Used in
// tests and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.refreshStore != nil {
		if _, err := c.refreshStore.CleanupExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.invitations != nil {
		if _, err := c.invitations.SweepExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
		if _, err := c.invitations.PurgeTerminal(ctx, c.retention); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.cacheStore != nil {
		if _, err := c.cacheStore.CleanupExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}
