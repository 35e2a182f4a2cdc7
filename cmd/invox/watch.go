// cmd/invox/watch.go
package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Huzefa-Jadliwala/invox-client/internal/common/config"
	"github.com/Huzefa-Jadliwala/invox-client/internal/common/metrics"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// prober tracks the result of the last ping.
type prober struct {
	ping      func(context.Context) (string, error)
	ready     atomic.Bool
	lastError atomic.Value // string
}

func (p *prober) probe(ctx context.Context) error {
	_, err := p.ping(ctx)
	if err != nil {
		p.ready.Store(false)
		p.lastError.Store(err.Error())
		metrics.ServiceUp.Set(0)
		return err
	}
	p.ready.Store(true)
	p.lastError.Store("")
	metrics.ServiceUp.Set(1)
	return nil
}

func (p *prober) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if !p.ready.Load() {
			body := map[string]string{
				"status": "not ready",
				"time":   time.Now().Format(time.RFC3339),
			}
			if msg, _ := p.lastError.Load().(string); msg != "" {
				body["error"] = msg
			}
			writeStatus(w, http.StatusServiceUnavailable, body)
			return
		}
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "ready",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, status int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// run probes every interval until ctx is done.
func (p *prober) run(ctx context.Context, interval time.Duration, onResult func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		onResult(p.probe(ctx))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *app) watch(ctx context.Context, args []string) error {
	fs := a.flags("watch")
	interval := fs.Duration("interval", config.GetDuration(a.cfg.Metrics.ProbeInterval), "Time between ping probes")
	listen := fs.String("listen", a.cfg.Metrics.ListenAddress, "Address for /health, /ready and /metrics")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	if *interval <= 0 {
		return stderrors.New("interval must be positive")
	}

	p := &prober{ping: a.svc.Ping}
	srv := &http.Server{
		Addr:              *listen,
		Handler:           p.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	a.log.Info("Health/Metrics server listening", map[string]interface{}{"address": *listen})
	go func() {
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	probeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	probeDone := make(chan struct{})
	go func() {
		defer close(probeDone)
		p.run(probeCtx, *interval, func(err error) {
			if err != nil {
				a.log.WithError(err).Warn("Ping probe failed", nil)
				return
			}
			a.log.Debug("Ping probe succeeded", nil)
		})
	}()

	var err error
	select {
	case <-ctx.Done():
		a.log.Info("Shutdown signal received, stopping watch...", nil)
	case err = <-serveErr:
		a.log.WithError(err).Error("Health/Metrics server failed", nil)
	}
	cancel()
	<-probeDone

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if serr := srv.Shutdown(shutdownCtx); serr != nil && err == nil {
		err = serr
	}
	return err
}
