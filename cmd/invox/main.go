// cmd/invox/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Huzefa-Jadliwala/invox-client/internal/common/auth"
	"github.com/Huzefa-Jadliwala/invox-client/internal/common/config"
	"github.com/Huzefa-Jadliwala/invox-client/internal/common/errors"
	commonhttp "github.com/Huzefa-Jadliwala/invox-client/internal/common/http"
	"github.com/Huzefa-Jadliwala/invox-client/internal/common/logger"
	"github.com/Huzefa-Jadliwala/invox-client/internal/common/observability"
	"github.com/Huzefa-Jadliwala/invox-client/internal/invox"
	"github.com/Huzefa-Jadliwala/invox-client/internal/rpc"

	"go.uber.org/zap"
)

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdout, os.Stderr))
}

func realMain(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("invox", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", "", "Path to a config file (default: configs/config.yaml)")
	global.Usage = func() { help(stderr) }

	if err := global.Parse(args); err != nil {
		return 2
	}
	rest := global.Args()
	if len(rest) == 0 || rest[0] == "help" {
		help(stderr)
		return 1
	}

	// the catalog is static; no config needed
	if rest[0] == "methods" {
		a := &app{stdout: stdout, stderr: stderr}
		return a.finish(a.methods())
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := newService(ctx, cfg, log)
	if err != nil {
		zapLog.Error("service setup failed", zap.Error(err))
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	a := &app{svc: svc, cfg: cfg, log: log, stdout: stdout, stderr: stderr}

	start := time.Now()
	err = a.run(ctx, rest)
	status := "ok"
	if err != nil {
		status = string(errors.CodeOf(err))
	}
	obs.RecordCommand(ctx, rest[0], status, time.Since(start))

	return a.finish(err)
}

// newService wires transport, auth and the RPC codec from config.
func newService(ctx context.Context, cfg *config.Config, log logger.Logger) (*invox.Service, error) {
	opts := []commonhttp.Option{commonhttp.WithLogger(log)}
	if ts := auth.NewTokenSource(ctx, cfg.Auth); ts != nil {
		opts = append(opts, commonhttp.WithTokenSource(ts))
	}
	transport := commonhttp.NewClient(cfg.RPC, opts...)

	rpcOpts := []rpc.Option{rpc.WithPath(cfg.RPC.Path)}
	if cfg.RPC.SequentialIDs {
		rpcOpts = append(rpcOpts, rpc.WithSequentialIDs())
	}

	log.Debug("Forms service client configured", map[string]interface{}{
		"endpoint":      cfg.RPC.Endpoint(),
		"maxRetries":    cfg.RPC.MaxRetries,
		"sequentialIds": cfg.RPC.SequentialIDs,
	})

	return invox.NewService(rpc.NewClient(transport, log, rpcOpts...), log)
}

func help(w io.Writer) {
	fmt.Fprint(w, `
Usage: invox [-config path] <command> [flags]

Commands:
  ping                      Check that the forms service answers
  template get              Fetch a form template
  template create           Create a form template
  departments               List departments with their template count
  forms                     List templates of a department
  process                   Upload audio for transcription and extraction
  submit                    Submit a completed form
  submitted list            List submitted forms
  submitted get             Fetch a submitted form
  methods                   Print the operation catalog
  watch                     Probe the service and serve /health, /ready and /metrics
  help                      Show this help message

Examples:
  invox template get -id t1
  invox template create -name Intake -department HR -type audio -structure @structure.json
  invox forms -department HR
  invox process -template t1 -audio recording.webm
  invox submit -template t1 -answers '{"fullName":"Ada"}'
  invox watch -interval 15s

Use 'invox <command> -h' for more information about a command.
`)
}
