package main

import (
	"context"

	"chatdb/internal/app"
	"chatdb/pkg/config"
	"chatdb/pkg/logger"
	"chatdb/pkg/shutdown"
)

// build metadata, set via ldflags during release
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	logger.Init()

	flags := config.ParseCommandFlags()
	cfgPath := config.ResolveConfigPath(flags.Config, flags.Set["config"])

	eff, err := config.LoadEffective(cfgPath)
	if err != nil {
		shutdown.Abort("failed to load config", err, "")
	}

	// explicit flags win over env and config file
	if flags.Set["addr"] || eff.Addr == "" {
		eff.Addr = flags.Addr
	}
	if flags.Set["db"] || eff.DBPath == "" {
		eff.DBPath = flags.DB
	}
	if len(flags.Set) > 0 {
		eff.Sources = append(eff.Sources, "flags")
	}

	a, err := app.New(eff, version, commit, buildDate)
	if err != nil {
		shutdown.Abort("startup failed", err, eff.DBPath)
	}

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	if err := a.Run(ctx); err != nil {
		shutdown.Abort("server exited", err, eff.DBPath)
	}
}
