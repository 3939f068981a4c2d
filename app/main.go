package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/winhowes/RemoteData/app/metrics"
	"github.com/winhowes/RemoteData/app/secrets"
)

// version is the application version. It can be overridden at build time using
// the -ldflags "-X main.version=<version>" option.
var version = "dev"

var debug = flag.Bool("debug", false, "enable the data source management endpoints")
var addr = flag.String("addr", ":8080", "listen address")
var configFile = flag.String("config", "config.yaml", "path to configuration file (.yaml, .json or .jsonc)")
var envFile = flag.String("env-file", "", "dotenv file loaded before secrets are resolved")
var tlsCert = flag.String("tls-cert", "", "path to TLS certificate")
var tlsKey = flag.String("tls-key", "", "path to TLS key")
var logLevel = flag.String("log-level", "INFO", "log level: DEBUG, INFO, WARN, ERROR")
var logFormat = flag.String("log-format", "text", "log output format: text or json")
var redisAddr = flag.String("redis-addr", "", "redis address for the cache and rate limits (host:port)")
var redisTimeout = flag.Duration("redis-timeout", 5*time.Second, "dial timeout for redis")
var metricsUser = flag.String("metrics-user", "", "basic auth user for the metrics endpoint")
var metricsPass = flag.String("metrics-pass", "", "basic auth password for the metrics endpoint")
var showVersion = flag.Bool("version", false, "print version and exit")
var watch = flag.Bool("watch", false, "watch the config and env files for changes")
var logger = zap.NewNop()

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: remotedata [options]\n\n")
	fmt.Fprintf(flag.CommandLine.Output(), "Options:\n")
	flag.PrintDefaults()
}

func parseLevel(s string) zapcore.Level {
	l, err := zapcore.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// newLogger builds a zap logger writing to stdout. Format json selects the
// production encoder, anything else the console encoder.
func newLogger(level, format string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.OutputPaths = []string{"stdout"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if strings.ToLower(format) != "json" {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	return cfg.Build()
}

// reload reads the env and config files and swaps in a freshly built
// runtime. The previous runtime keeps serving when anything fails.
func reload(ctx context.Context, s *server) error {
	logger.Info("reloading configuration", zap.String("file", *configFile))

	if *envFile != "" {
		if err := godotenv.Overload(*envFile); err != nil {
			return fmt.Errorf("env file: %w", err)
		}
	}
	cfg, err := loadConfig(*configFile)
	if err != nil {
		return err
	}

	// Clear secret cache so rebuilt data sources use fresh values.
	secrets.ClearCache()

	rt, err := newRuntime(ctx, cfg, s.metrics, logger)
	if err != nil {
		return err
	}
	if old := s.swap(rt); old != nil {
		old.Close()
	}
	c := rt.currentCatalog()
	logger.Info("configuration loaded",
		zap.Int("data_sources", len(cfg.DataSources)),
		zap.Int("queries", len(c.queries)),
	)
	return nil
}

func watchFiles(ctx context.Context, files []string, out chan<- struct{}) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create watcher", zap.Error(err))
		return
	}
	defer w.Close()

	for _, f := range files {
		if err := w.Add(f); err != nil {
			logger.Error("watch add failed", zap.String("file", f), zap.Error(err))
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Rename|fsnotify.Remove) != 0 {
				// Editors replace files; re-add once the new one exists.
				go func(name string) {
					for i := 0; i < 5; i++ {
						if err := w.Add(name); err == nil {
							return
						} else if !os.IsNotExist(err) {
							logger.Error("watch re-add failed", zap.String("file", name), zap.Error(err))
							return
						}
						time.Sleep(100 * time.Millisecond)
					}
				}(ev.Name)
			} else if ev.Op&fsnotify.Create != 0 {
				if err := w.Add(ev.Name); err != nil && !os.IsNotExist(err) {
					logger.Error("watch re-add failed", zap.String("file", ev.Name), zap.Error(err))
				}
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				select {
				case out <- struct{}{}:
				default:
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Error("watch error", zap.Error(err))
		}
	}
}

type httpServer interface {
	ListenAndServe() error
	ListenAndServeTLS(certFile, keyFile string) error
}

func serve(s httpServer, cert, key string) error {
	switch {
	case cert != "" && key != "":
		return s.ListenAndServeTLS(cert, key)
	case cert == "" && key == "":
		return s.ListenAndServe()
	default:
		return fmt.Errorf("both cert and key must be provided")
	}
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	l, err := newLogger(*logLevel, *logFormat)
	if err != nil {
		log.Fatal(err)
	}
	logger = l
	defer logger.Sync()

	s := &server{
		metrics:     metrics.New(),
		logger:      logger,
		debug:       *debug,
		metricsUser: *metricsUser,
		metricsPass: *metricsPass,
	}
	ctx := context.Background()
	if err := reload(ctx, s); err != nil {
		logger.Fatal("initial configuration failed", zap.Error(err))
	}

	srv := &http.Server{Addr: *addr, Handler: s.routes(), ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := serve(srv, *tlsCert, *tlsKey); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()
	logger.Info("listening", zap.String("addr", *addr), zap.String("version", version))

	stop := make(chan os.Signal, 1)
	reloadSig := make(chan os.Signal, 1)
	watchSig := make(chan struct{}, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	signal.Notify(reloadSig, syscall.SIGHUP)

	var cancelWatch context.CancelFunc
	if *watch {
		var watchCtx context.Context
		watchCtx, cancelWatch = context.WithCancel(ctx)
		files := []string{*configFile}
		if *envFile != "" {
			files = append(files, *envFile)
		}
		go watchFiles(watchCtx, files, watchSig)
	}

	for {
		select {
		case <-reloadSig:
		case <-watchSig:
		case <-stop:
			goto shutdown
		}
		if err := reload(ctx, s); err != nil {
			logger.Error("reload failed", zap.Error(err))
		} else {
			logger.Info("reloaded configuration")
		}
	}

shutdown:

	if cancelWatch != nil {
		cancelWatch()
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if rt := s.swap(nil); rt != nil {
		rt.Close()
	}
}
