package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"

	"routeget/internal/config"
)

func SetupDefault(cfg config.Logger) {
	slog.SetDefault(slog.New(NewHandler(os.Stderr, cfg)))
}

// NewHandler возвращает JSON обработчик, либо в режиме Plaintext человекочитаемый
// консольный обработчик charmbracelet/log.
func NewHandler(w io.Writer, cfg config.Logger) slog.Handler {
	if cfg.Plaintext {
		return charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmlog.Level(cfg.Level),
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
		})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.Level})
}
