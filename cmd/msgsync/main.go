package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bhandras/msgsync/internal/actor"
	"github.com/bhandras/msgsync/internal/config"
	"github.com/bhandras/msgsync/internal/engine"
	"github.com/bhandras/msgsync/internal/metrics"
	"github.com/bhandras/msgsync/internal/remote"
	"github.com/bhandras/msgsync/internal/session"
	"github.com/bhandras/msgsync/internal/version"
	"github.com/bhandras/msgsync/internal/websocket"
	"github.com/bhandras/msgsync/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		logger.Errorf("msgsync: %v", err)
		os.Exit(1)
	}
}

// options are the command line overrides applied on top of config.Load.
type options struct {
	configPath  string
	serverURL   string
	metricsAddr string
	debug       bool
}

func parseFlags(args []string) (options, []string, error) {
	var opts options
	fs := flag.NewFlagSet("msgsync", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.configPath, "config", "", "YAML config file")
	fs.StringVar(&opts.serverURL, "server", "", "Server URL")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "Listen address for /metrics")
	fs.BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	if err := fs.Parse(args); err != nil {
		return opts, nil, err
	}
	return opts, fs.Args(), nil
}

func run(args []string) error {
	opts, rest, err := parseFlags(args)
	if err != nil {
		printUsage()
		return err
	}
	if len(rest) > 0 {
		switch rest[0] {
		case "version":
			fmt.Println("msgsync", version.RichVersion())
			return nil
		case "help":
			printUsage()
			return nil
		default:
			printUsage()
			return fmt.Errorf("unknown command %q", rest[0])
		}
	}

	// Flags override the environment, so they are applied before Load
	// validates the merged config.
	for env, v := range map[string]string{
		config.EnvConfig:      opts.configPath,
		config.EnvServerURL:   opts.serverURL,
		config.EnvMetricsAddr: opts.metricsAddr,
	} {
		if v == "" {
			continue
		}
		if err := os.Setenv(env, v); err != nil {
			return err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Debug = cfg.Debug || opts.debug
	logger.SetLevel(cfg.Level())

	logger.Infof("msgsync %s starting, server %s", version.RichVersion(), cfg.ServerURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg)
}

func serve(ctx context.Context, cfg *config.Config) error {
	m := metrics.New(version.Version())

	client := remote.New(remote.Config{
		ServerURL: cfg.ServerURL,
		Token:     cfg.Token,
		Timeout:   cfg.Fetch.Timeout,
		Retries:   cfg.Fetch.Retries,
		RPS:       cfg.Fetch.RPS,
		Burst:     cfg.Fetch.Burst,
	})
	defer client.Close()

	state := session.NewState(
		engine.Config{AllowEditHistory: cfg.AllowEditHistory},
		engine.NewDeps(),
		engine.WithCollaborators(engine.Collaborators{Observer: m}),
	)
	sess := session.New(state, session.NewRuntime(client, nil, m), actor.Hooks[*session.State]{
		OnPanic: func(r any) { logger.Errorf("session: loop panicked: %v", r) },
	})
	sess.Start()
	defer sess.Stop()

	if err := openViews(ctx, sess, cfg.Views); err != nil {
		return err
	}

	ws := websocket.NewClient(cfg.ServerURL, cfg.Token, websocket.Handlers{
		OnEvents: func(payload any) {
			// Malformed batches are logged and dropped by the session.
			_ = sess.HandlePush(ctx, payload)
		},
		OnConnected: func() {
			m.SetConnected(true)
			_ = sess.SetConnected(ctx, true, "")
		},
		OnDisconnected: func(reason string) {
			m.SetConnected(false)
			_ = sess.SetConnected(ctx, false, reason)
		},
	}, websocket.WithPath(cfg.SocketPath))
	if err := ws.Connect(); err != nil {
		return fmt.Errorf("failed to connect event stream: %w", err)
	}
	defer ws.Close()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			logger.Infof("metrics: listening on %s", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		select {
		case <-gctx.Done():
			logger.Infof("msgsync: shutting down")
			return nil
		case <-sess.Done():
			return errors.New("session loop exited")
		}
	})

	return g.Wait()
}

// openViews shows the home view and opens every other configured view in
// the background.
func openViews(ctx context.Context, sess *session.Session, views []config.View) error {
	for _, v := range views {
		if !v.Home {
			continue
		}
		if _, err := sess.ShowHome(ctx, v.Terms); err != nil {
			return fmt.Errorf("show %s: %w", v.Name, err)
		}
	}
	for _, v := range views {
		if v.Home {
			continue
		}
		id, err := sess.Open(ctx, v.Terms)
		if err != nil {
			return fmt.Errorf("open %s: %w", v.Name, err)
		}
		logger.Debugf("msgsync: view %s is list %d", v.Name, id)
	}
	return nil
}

func printUsage() {
	fmt.Println(`msgsync - keeps message views in sync with a chat server's event stream

Usage:
  msgsync [flags]      Connect and reconcile events until interrupted
  msgsync version      Show version information
  msgsync help         Show this help message

Environment Variables:
  MSGSYNC_SERVER_URL    Server URL
  MSGSYNC_TOKEN         Bearer token (required)
  MSGSYNC_CONFIG        YAML config file
  MSGSYNC_LOG_LEVEL     trace|debug|info|warn|error (default: info)
  MSGSYNC_DEBUG         Enable debug logging (true/1)
  MSGSYNC_METRICS_ADDR  Listen address for /metrics (disabled when empty)

Flags:
  --config        YAML config file
  --server        Server URL
  --metrics-addr  Listen address for /metrics
  --debug         Enable debug logging`)
}
