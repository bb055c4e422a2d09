package manager

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"routeget/internal/config"
	"routeget/internal/discover"
	"routeget/internal/logger"
	"routeget/internal/model"
	"routeget/internal/uploader"
)

type (
	Report = model.Report
	Device = model.Device
)

type Discovery interface {
	Devices(ctx context.Context) ([]Device, error)
	Collect(ctx context.Context, devices []Device, before func(context.Context, Device)) discover.Result
}

type Uploads interface {
	Upload(ctx context.Context, device Device) uploader.Result
}

type Loader interface {
	Download(ctx context.Context, urls []string) []model.File
}

type Store interface {
	NextID() int64
	Put(report Report)
}

// Manager выполняет проходы: выгрузка с устройств, поиск файлов, загрузка.
type Manager struct {
	cfg       config.Manager
	discovery Discovery
	uploads   Uploads
	loader    Loader
	store     Store
	limiter   *rate.Limiter
}

func New(cfg config.Manager, discovery Discovery, uploads Uploads, ldr Loader, store Store) *Manager {
	limit := rate.Inf
	if cfg.PassInterval > 0 {
		limit = rate.Every(cfg.PassInterval)
	}
	return &Manager{
		cfg:       cfg,
		discovery: discovery,
		uploads:   uploads,
		loader:    ldr,
		store:     store,
		limiter:   rate.NewLimiter(limit, 1),
	}
}

// RunPass выполняет один проход. Ошибка возвращается, только если не удалось
// получить список устройств; отчёт сохраняется в любом случае.
func (m *Manager) RunPass(ctx context.Context) (report Report, err error) {
	report = Report{ID: m.store.NextID(), StartedAt: time.Now()}
	ctx = logger.With(ctx, "pass", report.ID)
	log := logger.FromContext(ctx).With("op", "runPass")

	defer func() {
		report.FinishedAt = time.Now()
		if err != nil {
			report.ErrorMsg = err.Error()
		}
		m.store.Put(report)
	}()

	devices, err := m.discovery.Devices(ctx)
	if err != nil {
		log.Error("list devices failed", "error", err)
		return report, err
	}
	if len(devices) == 0 {
		log.Warn("no devices to process")
	}

	var before func(context.Context, Device)
	if m.cfg.DeviceUpload && m.uploads != nil {
		before = func(ctx context.Context, device Device) {
			res := m.uploads.Upload(ctx, device)
			report.Uploads.Requested += res.Requested
			report.Uploads.Failed += res.Failed
		}
	}

	found := m.discovery.Collect(ctx, devices, before)
	report.Devices = found.Devices
	report.Routes = found.Routes

	report.Files = m.loader.Download(ctx, found.URLs)
	report.Summary = model.Summarize(report.Files)

	log.Info("pass finished",
		"devices", report.Devices,
		"failedDevices", len(found.FailedDevices),
		"routes", report.Routes,
		"uploads", report.Uploads.Requested,
		"downloaded", report.Summary.Downloaded,
		"skipped", report.Summary.Skipped,
		"failed", report.Summary.Failed,
		"dur", time.Since(report.StartedAt))
	return report, nil
}

// Run выполняет один проход, либо в режиме Endless повторяет проходы до отмены ctx.
// Начала соседних проходов разделены не менее чем PassInterval.
// Ошибка получения списка устройств завершает Run в любом режиме; сбои
// отдельных устройств и файлов учитываются в отчёте прохода.
func (m *Manager) Run(ctx context.Context) error {
	if !m.cfg.Endless {
		_, err := m.RunPass(ctx)
		return err
	}

	for {
		if err := m.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if _, err := m.RunPass(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}
