// Command bundlesh is a minimal interactive front end for the bundle
// runtime: it loads an optional on-disk descriptor, installs and starts the
// bundles it names, serves an admin HTTP API, and watches the descriptor
// file for log-level changes until interrupted.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ubundle/ubundle"
	"github.com/ubundle/ubundle/internal/cliopts"
	"github.com/ubundle/ubundle/internal/descriptor"
	"github.com/ubundle/ubundle/internal/diagnostics"
	"github.com/ubundle/ubundle/internal/reload"
	"github.com/ubundle/ubundle/internal/shelladmin"
)

// slogLogger adapts log/slog to ubundle.Logger, following the doc comment
// on ubundle.Logger's recommended slog wiring.
type slogLogger struct{ logger *slog.Logger }

func (l *slogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *slogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }

// levelVar makes the process-wide slog level hot-reloadable, implementing
// reload.LevelSetter.
type levelVar struct{ v *slog.LevelVar }

func (lv levelVar) SetLevel(level int) {
	// The value is used as a slog level as is: 0=INFO, -4=DEBUG, 4=WARN,
	// 8=ERROR; lower values are more verbose.
	lv.v.Set(slog.Level(level))
}

func main() {
	opts, err := cliopts.Parse(os.Args[1:])
	if err != nil {
		log.Fatalf("bundlesh: %v", err)
	}

	var lv slog.LevelVar
	slogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &lv}))
	logger := &slogLogger{logger: slogger}

	level, err := ubundle.LogLevelFromConfig(map[string]string{ubundle.LogLevelKey: opts.LogLevel})
	if err != nil {
		log.Fatalf("bundlesh: %v", err)
	}
	lv.Set(slog.Level(level))

	fw := ubundle.NewFramework(map[string]string{ubundle.LogLevelKey: opts.LogLevel}, logger, 30*time.Second)

	activators := map[string]ubundle.Activator{
		"noop": ubundle.ActivatorFunc{},
	}

	if opts.ConfigPath != "" {
		d, err := descriptor.Load(opts.ConfigPath)
		if err != nil {
			log.Fatalf("bundlesh: %v", err)
		}
		if err := fw.Init(); err != nil {
			log.Fatalf("bundlesh: %v", err)
		}
		for _, spec := range d.Bundles {
			b, err := fw.Context().InstallBundle(spec.SymbolicName, activators["noop"])
			if err != nil {
				log.Printf("bundlesh: install %s: %v", spec.SymbolicName, err)
				continue
			}
			if spec.AutoStart {
				if err := b.Resolve(); err == nil {
					_ = b.Start(0)
				}
			}
		}
	}

	if err := fw.Start(0); err != nil {
		log.Fatalf("bundlesh: %v", err)
	}

	heartbeat, err := diagnostics.NewHeartbeat(fw, "*/30 * * * * *")
	if err != nil {
		log.Fatalf("bundlesh: %v", err)
	}
	heartbeat.Start()
	defer heartbeat.Stop()

	if opts.ConfigPath != "" {
		watcher, err := reload.NewWatcher(opts.ConfigPath, levelVar{v: &lv})
		if err != nil {
			log.Printf("bundlesh: reload watcher disabled: %v", err)
		} else {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go func() {
				if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
					log.Printf("bundlesh: reload watcher stopped: %v", err)
				}
			}()
		}
	}

	admin := shelladmin.NewServer(fw, activators)
	httpServer := &http.Server{Addr: opts.Listen, Handler: admin}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("bundlesh: admin server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	_ = fw.Stop(0)
	fw.WaitForStop(10 * time.Second)
}
