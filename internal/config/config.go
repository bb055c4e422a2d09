package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"routeget/internal/model"
)

const defaultBaseURL = "https://connect-api.duckdns.org"

type Logger struct {
	Level     slog.Level
	Plaintext bool
}

type Connect struct {
	BaseURL     string
	JWT         string
	RPCTimeout  time.Duration // таймаут на listDataDirectory
	HTTPTimeout time.Duration // 0 - без таймаута
}

type Loader struct {
	Root    string // локальный каталог загрузок
	Prefix  string // префикс удалённого URL, который отрезается при построении пути
	Workers int
}

type Discover struct {
	Window     time.Duration
	Categories []string // пусто - все категории
}

type Uploader struct {
	DedupTTL time.Duration // 0 - повторные запросы не подавляются
}

type Manager struct {
	DeviceUpload bool
	Endless      bool
	PassInterval time.Duration // минимальный интервал между началами проходов
}

type Status struct {
	Addr      string // пусто - сервер статуса не запускается
	ReportTTL time.Duration
	ReportMax int
}

type Config struct {
	Logger   Logger
	Connect  Connect
	Loader   Loader
	Discover Discover
	Uploader Uploader
	Manager  Manager
	Status   Status
}

func Load() (Config, error) {
	return load(newGetenv())
}

func load(ge *getenv) (Config, error) {
	baseURL := strings.TrimRight(ge.String("CONNECT_BASE_URL", false, defaultBaseURL), "/")
	cfg := Config{
		Logger: Logger{
			Level:     ge.LogLevel("LOG_LEVEL", false, slog.LevelInfo),
			Plaintext: ge.Bool("LOG_PLAINTEXT", false, false),
		},
		Connect: Connect{
			BaseURL:     baseURL,
			JWT:         ge.String("CONNECT_JWT", false, ""),
			RPCTimeout:  ge.Duration("CONNECT_RPC_TIMEOUT", false, 5*time.Second),
			HTTPTimeout: ge.Duration("CONNECT_HTTP_TIMEOUT", false, 0),
		},
		Loader: Loader{
			Root:    ge.String("DOWNLOAD_ROOT", false, "downloads"),
			Prefix:  ge.String("DOWNLOAD_PREFIX", false, baseURL+"/connectdata/"),
			Workers: ge.Int("DOWNLOAD_WORKERS", false, 5),
		},
		Discover: Discover{
			Window:     ge.Duration("DISCOVER_WINDOW", false, 24*time.Hour),
			Categories: ge.Strings("DISCOVER_CATEGORIES", false, nil),
		},
		Uploader: Uploader{
			DedupTTL: ge.Duration("UPLOAD_DEDUP_TTL", false, 0),
		},
		Manager: Manager{
			PassInterval: ge.Duration("MANAGER_PASS_INTERVAL", false, 0),
		},
		Status: Status{
			Addr:      ge.String("STATUS_ADDR", false, ""),
			ReportTTL: ge.Duration("REPORT_TTL", false, 1*time.Hour),
			ReportMax: ge.Int("REPORT_MAX", false, 100),
		},
	}
	if err := ge.Err(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (cfg Config) Validate() error {
	if cfg.Connect.JWT == "" {
		return fmt.Errorf("CONNECT_JWT: %w", model.ErrCredentialRequired)
	}
	if cfg.Loader.Workers <= 0 {
		return fmt.Errorf("DOWNLOAD_WORKERS must be > 0, got %d", cfg.Loader.Workers)
	}
	if cfg.Loader.Root == "" {
		return fmt.Errorf("DOWNLOAD_ROOT must not be empty")
	}
	if _, err := model.ParseCategories(cfg.Discover.Categories); err != nil {
		return fmt.Errorf("DISCOVER_CATEGORIES: %w", err)
	}
	if cfg.Discover.Window <= 0 {
		return fmt.Errorf("DISCOVER_WINDOW must be > 0, got %v", cfg.Discover.Window)
	}
	if cfg.Manager.PassInterval < 0 {
		return fmt.Errorf("MANAGER_PASS_INTERVAL must be >= 0, got %v", cfg.Manager.PassInterval)
	}
	return nil
}
