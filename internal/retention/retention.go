// Package retention runs the scheduled purge of old messages. Purging
// goes through the store delete path so chats referencing a purged
// message are unlinked, never left dangling.
package retention

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"

	"chatdb/pkg/config"
	"chatdb/pkg/logger"
	"chatdb/pkg/store"
)

const defaultCron = "0 2 * * *"

// Start launches the retention scheduler when enabled. The returned
// cancel func stops the scheduler; a disabled config returns a no-op
// cancel and no error.
func Start(ctx context.Context, cfg config.RetentionConfig, st *store.Store) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}

	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = defaultCron
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", cfg.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", cfg.Cron)
	}

	period, err := resolvePeriod(cfg)
	if err != nil {
		logger.Error("retention_invalid_period", "period", cfg.Period, "error", err)
		return nil, err
	}

	logger.Info("retention_enabled", "cron", cronExpr, "period", period.String(), "dry_run", cfg.DryRun)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cfg, cronExpr, period, st)
	return cancel, nil
}

// RunImmediate executes a single purge pass outside the schedule. Used
// by admin triggers and tests.
func RunImmediate(cfg config.RetentionConfig, st *store.Store) error {
	period, err := resolvePeriod(cfg)
	if err != nil {
		return err
	}
	return runOnce(context.Background(), cfg, period, st)
}

// runScheduler sleeps until the next cron tick computed by gronx and
// fires a purge run. Full cron syntax is supported.
func runScheduler(ctx context.Context, cfg config.RetentionConfig, cronExpr string, period time.Duration, st *store.Store) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			if err := runOnce(ctx, cfg, period, st); err != nil {
				logger.Error("retention_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}

// runOnce purges messages older than the retention period, at most
// BatchSize per run. Every purge decision is written to the audit log.
func runOnce(ctx context.Context, cfg config.RetentionConfig, period time.Duration, st *store.Store) error {
	runID := time.Now().UTC().Format("20060102T150405.000000000")
	cutoff := time.Now().UTC().Add(-period)

	auditInfo("retention_audit_header", "run_id", runID, "cutoff", cutoff.Format(time.RFC3339), "dry_run", cfg.DryRun)

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 1000
	}
	ids := st.MessagesBefore(cutoff.UnixNano(), batch)

	var purged, failed int
	for _, id := range ids {
		select {
		case <-ctx.Done():
			auditInfo("retention_audit_footer", "run_id", runID, "purged", purged, "failed", failed, "aborted", true)
			return ctx.Err()
		default:
		}
		if cfg.DryRun {
			auditInfo("retention_audit_item", "run_id", runID, "id", id, "status", "dry_run")
			continue
		}
		if err := st.DeleteMessage(id); err != nil {
			failed++
			auditInfo("retention_audit_item", "run_id", runID, "id", id, "status", "failed", "error", err.Error())
			logger.Error("retention_purge_failed", "id", id, "error", err)
			continue
		}
		purged++
		auditInfo("retention_audit_item", "run_id", runID, "id", id, "status", "success")
	}

	auditInfo("retention_audit_footer", "run_id", runID, "scanned", len(ids), "purged", purged, "failed", failed)
	logger.Info("retention_run_complete", "scanned", len(ids), "purged", purged, "failed", failed)
	return nil
}

// auditInfo writes to the dedicated audit sink when one is attached,
// falling back to the main log otherwise.
func auditInfo(msg string, args ...any) {
	if logger.Audit != nil {
		logger.Audit.Info(msg, args...)
		return
	}
	logger.Info(msg, args...)
}

// resolvePeriod parses the configured period and clamps it against the
// configured floor so a typo cannot wipe recent history.
func resolvePeriod(cfg config.RetentionConfig) (time.Duration, error) {
	period, err := parsePeriod(cfg.Period)
	if err != nil {
		return 0, fmt.Errorf("invalid retention period: %w", err)
	}
	if cfg.MinPeriod != "" {
		min, err := parsePeriod(cfg.MinPeriod)
		if err != nil {
			return 0, fmt.Errorf("invalid retention min_period: %w", err)
		}
		if period < min {
			logger.Warn("retention_period_clamped", "period", period.String(), "min", min.String())
			period = min
		}
	}
	return period, nil
}

// parsePeriod accepts Go durations plus a day suffix ("30d"). Empty
// means the 30 day default.
func parsePeriod(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 30 * 24 * time.Hour, nil
	}
	if strings.HasSuffix(s, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || n < 0 {
			return 0, fmt.Errorf("bad day count %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative period %q", s)
	}
	return d, nil
}
