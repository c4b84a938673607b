// Command radhttpd serves a read-only HTTP API over the local node's state.
//
// Usage:
//
//	radhttpd [flags]
//
// The configuration file is searched for in the working directory and the
// platform config directory unless -config is given. RAD_HOME selects the
// node home.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"radhttpd/internal/config"
	"radhttpd/internal/logging"
)

var (
	// Version information (set at build time)
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "config file (TOML, JSON or YAML)")
	listen := flag.String("listen", "", "listen address, overrides http.listen")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error")
	versionFlag := flag.Bool("version", false, "print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "radhttpd - HTTP API for the local node\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment:\n")
		fmt.Fprintf(os.Stderr, "  RAD_HOME        node home directory (default ~/.radicle)\n")
		fmt.Fprintf(os.Stderr, "  %s*      overrides for individual settings\n", config.EnvPrefix)
	}
	flag.Parse()

	if *versionFlag {
		fmt.Printf("radhttpd %s (commit %s, built %s)\n", version, commit, buildTime)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *listen, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "radhttpd: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, listen, logLevel string) error {
	if configPath == "" {
		configPath = config.FindConfigFile()
	}
	loader := config.NewLoader(configPath)
	defer loader.Close()

	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config %s: %w", loader.Path(), err)
	}
	if listen != "" || logLevel != "" {
		cfg = cfg.Clone()
		if listen != "" {
			cfg.HTTP.Listen = listen
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logCfg, err := loggerConfig(cfg.Logging)
	if err != nil {
		return err
	}
	log, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer log.Close()
	logging.SetDefault(log)

	d, err := newDaemon(cfg, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		return err
	}
	defer d.Close()

	loader.OnChange(func(old, new *config.Config) {
		if old == nil || old.Web != new.Web {
			d.setWeb(new.Web)
			log.Info("web metadata reloaded", "config", loader.Path())
		}
	})
	if err := loader.Watch(); err != nil {
		log.Warn("config hot reload disabled", "config", loader.Path(), "error", err)
	} else {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case err := <-loader.Errors():
					log.Warn("config reload rejected", "config", loader.Path(), "error", err)
				}
			}
		}()
	}

	srv := &http.Server{
		Addr:         cfg.HTTP.Listen,
		Handler:      d.handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout(),
		WriteTimeout: cfg.HTTP.WriteTimeout(),
		IdleTimeout:  cfg.HTTP.IdleTimeout(),
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	ln, err := net.Listen("tcp", cfg.HTTP.Listen)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	d.health.SetReady(true)
	log.Info("listening",
		"addr", ln.Addr().String(),
		"nid", d.nid.String(),
		"version", version,
		"commit", commit,
	)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	d.health.SetReady(false)
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// loggerConfig maps the logging section onto the logger.
func loggerConfig(c config.LoggingConfig) (*logging.Config, error) {
	level, err := logging.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(c.Format)
	if err != nil {
		return nil, err
	}

	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Format = format
	cfg.Output = c.Output
	if c.FilePath != "" {
		cfg.FilePath = c.FilePath
	}
	cfg.MaxSize = int64(c.MaxSizeMB)
	cfg.MaxAge = c.MaxAgeDays
	cfg.MaxBackups = c.MaxBackups
	cfg.Compress = c.Compress
	return cfg, nil
}
