package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"routeget/internal/api"
	"routeget/internal/config"
	"routeget/internal/connect"
	"routeget/internal/discover"
	"routeget/internal/loader"
	"routeget/internal/logger"
	"routeget/internal/manager"
	"routeget/internal/memstor"
	"routeget/internal/model"
	"routeget/internal/uploader"
)

const (
	shutdownTimeout = 30 * time.Second
	apiBasePath     = "/api"
)

var (
	categories   = flag.String("categories", "", "Categories to download, comma separated (cameras, qcameras, logs, qlogs, ecameras, dcameras). Default all.")
	dongleID     = flag.String("dongle_id", "", "Process only this device.")
	deviceUpload = flag.Bool("device_upload", false, "Ask online devices to upload their rlog files before discovery.")
	endless      = flag.Bool("endless", false, "Repeat passes until interrupted.")
	statusFile   = flag.String("s", "", "Save the last pass report to file, use '-' for stdout.")
	verbose      = flag.Bool("v", false, "Enable debug logging.")
)

func main() {
	flag.Parse()
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	applyFlags(&cfg)

	logger.SetupDefault(cfg.Logger)

	selected, err := model.ParseCategories(cfg.Discover.Categories)
	if err != nil {
		log.Fatalf("parse categories failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, selected); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func applyFlags(cfg *config.Config) {
	if *categories != "" {
		cfg.Discover.Categories = []string{*categories}
	}
	cfg.Manager.DeviceUpload = *deviceUpload
	cfg.Manager.Endless = *endless
	if *verbose {
		cfg.Logger.Level = slog.LevelDebug
	}
}

func run(ctx context.Context, cfg config.Config, selected model.CategorySet) error {
	client := newHTTPClient()

	backend, err := connect.New(cfg.Connect, client)
	if err != nil {
		return err
	}

	store := memstor.New(memstor.Config{
		MaxTotal: cfg.Status.ReportMax,
		TTL:      cfg.Status.ReportTTL,
	})
	defer store.Cancel()

	up := uploader.New(backend, cfg.Uploader)
	defer up.Close()

	disc := discover.New(backend, discover.Options{
		DongleID:   *dongleID,
		Categories: selected,
		Window:     cfg.Discover.Window,
	})
	ldr := loader.New(client, cfg.Loader)
	mgr := manager.New(cfg.Manager, disc, up, ldr, store)

	if cfg.Status.Addr != "" {
		server := newServer(cfg.Status.Addr, logger.HTTPLogging(slog.Default(), api.New(store, apiBasePath)))
		go func() {
			slog.Info("status server startup", "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("status server failed", "error", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				slog.Error("shutdown failed", "error", err)
			}
		}()
	}

	slog.Debug("start", "root", cfg.Loader.Root, "endless", cfg.Manager.Endless, "deviceUpload", cfg.Manager.DeviceUpload)
	runErr := mgr.Run(ctx)

	if *statusFile != "" {
		if err := writeStatus(store, *statusFile); err != nil {
			slog.Error("write status failed", "error", err)
		}
	}
	return runErr
}

func writeStatus(store *memstor.Memstor, fileName string) error {
	report, err := store.Latest()
	if err != nil {
		return err
	}
	buf, err := json.MarshalIndent(report, "", "    ")
	if err != nil {
		return err
	}
	buf = append(buf, '\n')

	if fileName == "-" {
		_, err = os.Stdout.Write(buf)
		return err
	}
	return os.WriteFile(fileName, buf, 0666)
}

// newHTTPClient создаёт клиент с таймаутами на установку соединения. Таймаутов
// на ответ нет: listDataDirectory ограничивается контекстом, остальные вызовы
// и загрузки длятся сколько потребуется.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: logger.Transport(slog.Default().With("op", "http"), newTransport()),
	}
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}

func newServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       1 * time.Minute,
		MaxHeaderBytes:    8192,
	}
}
