package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/judwhite/go-svc"
	"go.uber.org/zap"

	"github.com/adcondev/printbridge/internal/auth"
	"github.com/adcondev/printbridge/internal/backend"
	"github.com/adcondev/printbridge/internal/bridge"
	"github.com/adcondev/printbridge/internal/config"
	"github.com/adcondev/printbridge/internal/printer"
	"github.com/adcondev/printbridge/internal/printing/cups"
	"github.com/adcondev/printbridge/internal/server"
	"github.com/adcondev/printbridge/internal/worker"
)

// summaryTTL bounds how stale the health printer summary may be.
const summaryTTL = 30 * time.Second

// Program implements svc.Service interface
type Program struct {
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	cfg        config.Environment
	logging    *Logging
	log        *zap.Logger
	backend    *backend.Context
	pool       *worker.Pool
	authMgr    *auth.Manager
	wsServer   *server.Server
	httpServer *http.Server
	discovery  *PrinterDiscovery
	startTime  time.Time
}

// Init loads configuration and initializes logging. env is nil in console mode.
func (p *Program) Init(env svc.Environment) error {
	cfg, err := config.Load(config.BuildEnvironment)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	p.cfg = cfg

	console := env == nil || !env.IsWindowsService()
	if err := p.initLogging(console); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	p.log.Info("starting service",
		zap.String("environment", cfg.Name),
		zap.String("build_date", config.BuildDate),
		zap.String("build_time", config.BuildTime))
	return nil
}

// Start starts the service
func (p *Program) Start() error {
	p.startTime = time.Now()
	p.ctx, p.cancel = context.WithCancel(context.Background())
	cfg := p.cfg

	var err error
	p.backend, err = backend.New(backend.Options{
		CUPS: cups.Config{
			Host:     cfg.CUPS.Host,
			Port:     cfg.CUPS.Port,
			User:     cfg.CUPS.User,
			Password: cfg.CUPS.Password,
			TLS:      cfg.CUPS.TLS,
		},
		TempDir: cfg.TempDir,
		Logger:  p.log,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize printing backend: %w", err)
	}

	// Auth manager is bound to the service context for clean shutdown
	p.authMgr, err = auth.NewManager(p.ctx, config.TokenHashB64, p.log.Named("auth"))
	if err != nil {
		_ = p.backend.Close()
		return fmt.Errorf("failed to initialize auth: %w", err)
	}

	p.pool = worker.NewPool(worker.Config{Workers: cfg.Workers, QueueSize: cfg.QueueCapacity}, p.log.Named("worker"))
	p.pool.Start()
	b := bridge.New(p.backend.Printers, p.backend.Jobs, p.pool, p.log.Named("bridge"))

	p.discovery = NewPrinterDiscovery(p.backend.Printers, summaryTTL, p.log.Named("printers"))
	p.discovery.LogStartupDiagnostics()

	p.wsServer = server.NewServer(server.Config{
		AllowedOrigins:  cfg.AllowedOrigins,
		JobsPerMinute:   cfg.JobsPerMinute,
		MaxMessageBytes: cfg.MaxMessageBytes,
	}, b, p.authMgr, p.backend.Platform, p.log.Named("ws"))

	health := healthHandler(healthSources{
		platform: p.backend.Platform,
		stats:    p.pool.Stats,
		summary:  p.discovery.GetSummary,
		clients:  p.wsServer.ClientCount,
		started:  p.startTime,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", p.wsServer.HandleWebSocket) // token validated per message
	mux.HandleFunc("/health", health)                 // public for monitoring tools

	p.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		p.log.Info("service ready",
			zap.String("environment", cfg.Name),
			zap.String("platform", p.backend.Platform),
			zap.String("websocket", "ws://"+cfg.ListenAddr+"/ws"),
			zap.String("health", "http://"+cfg.ListenAddr+"/health"),
			zap.Bool("auth", p.authMgr.Enabled()))

		if err := p.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.log.Error("error starting HTTP server", zap.Error(err))
		}
	}()

	return nil
}

// Stop stops the service gracefully
func (p *Program) Stop() error {
	p.log.Info("service shutting down")

	// 1. Cancel context (stops auth cleanup goroutine)
	if p.cancel != nil {
		p.cancel()
	}

	// 2. Graceful HTTP shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if p.httpServer != nil {
		if err := p.httpServer.Shutdown(ctx); err != nil {
			p.log.Warn("HTTP shutdown error", zap.Error(err))
		}
	}

	// 3. Disconnect WebSocket clients
	if p.wsServer != nil {
		p.wsServer.Shutdown()
	}

	// 4. Let running print operations finish
	if p.pool != nil {
		p.pool.Stop()
	}

	// 5. Release the printing backend
	if p.backend != nil {
		if err := p.backend.Close(); err != nil {
			p.log.Warn("backend close error", zap.Error(err))
		}
	}

	p.wg.Wait()

	p.log.Info("service stopped", zap.Duration("uptime", time.Since(p.startTime).Round(time.Second)))
	if p.logging != nil {
		return p.logging.Close()
	}
	return nil
}

func (p *Program) initLogging(console bool) error {
	logPath := p.cfg.LogPath(defaultLogBase())
	if err := os.MkdirAll(filepath.Dir(logPath), 0750); err != nil {
		return err
	}

	lc := LogConfig{Path: logPath, Verbose: p.cfg.Verbose, Format: p.cfg.LogFormat}
	if console {
		lc.Console = os.Stdout
	}
	logging, err := NewLogging(lc)
	if err != nil {
		return err
	}
	p.logging = logging
	p.log = logging.Logger
	p.log.Info("log file", zap.String("path", logPath))
	return nil
}

// defaultLogBase is PROGRAMDATA on Windows and the user cache directory
// elsewhere.
func defaultLogBase() string {
	if dir := os.Getenv("PROGRAMDATA"); dir != "" {
		return dir
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return dir
	}
	return os.TempDir()
}

// healthSources are the readings reported by /health.
type healthSources struct {
	platform string
	stats    func() worker.Statistics
	summary  func() printer.Summary
	clients  func() int
	started  time.Time
}

func healthHandler(src healthSources) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		stats := src.stats()

		var utilization float64
		if stats.QueueSize > 0 {
			utilization = float64(stats.Queued) / float64(stats.QueueSize) * 100
		}

		response := HealthResponse{
			Status:   "ok",
			Platform: src.platform,
			Queue: QueueStatus{
				Current:     stats.Queued,
				Capacity:    stats.QueueSize,
				Utilization: utilization,
			},
			Worker: WorkerStatus{
				Running:       stats.IsRunning,
				Workers:       stats.Workers,
				JobsProcessed: stats.JobsProcessed,
				JobsFailed:    stats.JobsFailed,
				JobsRejected:  stats.JobsRejected,
			},
			Clients:  src.clients(),
			Printers: src.summary(),
			Build: BuildInfo{
				Env:  config.BuildEnvironment,
				Date: config.BuildDate,
				Time: config.BuildTime,
			},
			Uptime: int(time.Since(src.started).Seconds()),
		}

		if response.Printers.Status == "error" || !stats.IsRunning {
			response.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		_ = json.NewEncoder(w).Encode(response)
	}
}
