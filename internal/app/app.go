// Package app wires configuration, the record store, the HTTP surface
// and the retention scheduler into one process lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"chatdb/internal/retention"
	"chatdb/pkg/banner"
	"chatdb/pkg/config"
	"chatdb/pkg/logger"
	"chatdb/pkg/state"
	"chatdb/pkg/store"
	"chatdb/pkg/validation"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	st  *store.Store
	srv *http.Server

	stopRetention context.CancelFunc
}

// New initializes resources that do not need a running context: config
// validation, logger, validation rules, runtime keys and the store.
// Call Run to start the listeners and block until shutdown.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	if err := validateConfig(eff); err != nil {
		return nil, err
	}

	logger.InitWithLevel(eff.Config.Logging.Level)

	// runtime keys
	runtimeCfg := &config.RuntimeConfig{
		BackendKeys:  map[string]struct{}{},
		FrontendKeys: map[string]struct{}{},
		AdminKeys:    map[string]struct{}{},
	}
	for _, k := range eff.Config.Security.APIKeys.Backend {
		runtimeCfg.BackendKeys[k] = struct{}{}
	}
	for _, k := range eff.Config.Security.APIKeys.Frontend {
		runtimeCfg.FrontendKeys[k] = struct{}{}
	}
	for _, k := range eff.Config.Security.APIKeys.Admin {
		runtimeCfg.AdminKeys[k] = struct{}{}
	}
	config.SetRuntime(runtimeCfg)

	initValidation(eff)

	if err := state.Init(eff.DBPath); err != nil {
		return nil, fmt.Errorf("failed to prepare state dirs under %s: %w", eff.DBPath, err)
	}

	st, err := store.Open(eff.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", eff.DBPath, err)
	}

	return &App{eff: eff, st: st, version: version, commit: commit, buildDate: buildDate}, nil
}

// Store exposes the underlying record store, mainly for tests and admin
// tooling built on top of the app.
func (a *App) Store() *store.Store { return a.st }

// Run starts the retention scheduler, the probe listener and the HTTP
// server, then blocks until ctx is canceled or a fatal server error.
func (a *App) Run(ctx context.Context) error {
	a.printBanner()

	if a.eff.Config.Retention.Enabled {
		auditDir := state.PathsVar.Retention
		if auditDir == "" {
			auditDir = state.Layout(a.eff.DBPath).Retention
		}
		if err := logger.AttachAuditFileSink(auditDir); err != nil {
			logger.Warn("audit_sink_unavailable", "dir", auditDir, "error", err)
		}
	}
	cancelRet, err := retention.Start(ctx, a.eff.Config.Retention, a.st)
	if err != nil {
		return err
	}
	a.stopRetention = cancelRet

	if err := a.startProbe(ctx); err != nil {
		return err
	}

	errCh := a.startHTTP(ctx)

	select {
	case <-ctx.Done():
		a.shutdown()
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			a.shutdown()
			return err
		}
		return nil
	}
}

// shutdown stops the components in reverse start order: HTTP drain
// first so in-flight writes land, then retention, then the store.
func (a *App) shutdown() {
	if a.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.srv.Shutdown(ctx); err != nil {
			logger.Warn("http_shutdown_error", "error", err)
		}
	}
	if a.stopRetention != nil {
		a.stopRetention()
	}
	if a.st != nil {
		if err := a.st.Close(); err != nil {
			logger.Error("store_close_error", "error", err)
		}
	}
	logger.Info("shutdown_complete")
}

// printBanner prints the startup banner and build info.
func (a *App) printBanner() {
	verStr := a.version
	if a.commit != "none" && a.commit != "" {
		verStr += " (" + a.commit + ")"
	}
	if a.buildDate != "unknown" && a.buildDate != "" {
		verStr += " @ " + a.buildDate
	}
	banner.PrintWithEff(a.eff, verStr)
}

// initValidation builds record shape rules from config and installs
// them globally. Zero values keep the package defaults.
func initValidation(eff config.EffectiveConfigResult) {
	v := eff.Config.Validation
	r := validation.Rules{
		MaxBodyBytes: v.MaxBodyBytes.Int(),
		MaxSources:   v.MaxSources,
		MaxNameBytes: v.MaxNameBytes,
		Roles:        append([]string{}, v.Roles...),
	}
	validation.SetRules(r)
}
