package app

import (
	"context"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"

	"chatdb/pkg/httpx"
	"chatdb/pkg/logger"
)

// startProbe launches the optional dedicated liveness listener. It runs
// unauthenticated on its own port so orchestrator probes never compete
// with API traffic for the rate limiter.
func (a *App) startProbe(ctx context.Context) error {
	pc := a.eff.Config.Server.Probe
	if pc.Addr == "" {
		return nil
	}

	probe := func(w httpx.ResponseWriter, r *httpx.Request) {
		if r.Path != "/health" && r.Path != "/healthz" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if !a.st.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"not ready"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}

	switch pc.Engine {
	case "fasthttp":
		srv := &fasthttp.Server{
			Handler:            httpx.FastHTTPAdapter(probe),
			Name:               "chatdb-probe",
			ReadTimeout:        5 * time.Second,
			WriteTimeout:       5 * time.Second,
			MaxRequestBodySize: 1 << 20,
		}
		go func() {
			<-ctx.Done()
			_ = srv.Shutdown()
		}()
		go func() {
			if err := srv.ListenAndServe(pc.Addr); err != nil {
				logger.Error("probe_listener_exit", "engine", "fasthttp", "addr", pc.Addr, "error", err)
			}
		}()
	case "", "nethttp":
		srv := &http.Server{
			Addr:         pc.Addr,
			Handler:      httpx.NetHTTPAdapter(probe),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		}
		go func() {
			<-ctx.Done()
			_ = srv.Close()
		}()
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("probe_listener_exit", "engine", "nethttp", "addr", pc.Addr, "error", err)
			}
		}()
	default:
		logger.Warn("probe_engine_unknown", "engine", pc.Engine)
		return nil
	}

	logger.Info("probe_listener_started", "addr", pc.Addr, "engine", pc.Engine)
	return nil
}
