package discover

import (
	"context"
	"fmt"
	"strings"
	"time"

	"routeget/internal/logger"
	"routeget/internal/model"
)

const (
	defaultWindow = 24 * time.Hour

	// unlog файлы лежат в корзине qlogs, но не являются qlog и не загружаются
	excludeMarker = "unlog"
)

type Backend interface {
	ListDevices(ctx context.Context) ([]model.Device, error)
	ListRoutes(ctx context.Context, dongleID string, start, end time.Time) ([]model.Route, error)
	ListRouteFiles(ctx context.Context, fullname string) (model.RouteFiles, error)
}

type Options struct {
	DongleID   string            // если задан, остальные устройства пропускаются
	Categories model.CategorySet // nil - все категории
	Window     time.Duration
	Now        func() time.Time
}

type Discoverer struct {
	backend    Backend
	dongleID   string
	categories model.CategorySet
	window     time.Duration
	now        func() time.Time
}

func New(backend Backend, opts Options) *Discoverer {
	d := &Discoverer{
		backend:    backend,
		dongleID:   opts.DongleID,
		categories: opts.Categories,
		window:     opts.Window,
		now:        opts.Now,
	}
	if d.categories == nil {
		d.categories = model.AllCategories()
	}
	if d.window <= 0 {
		d.window = defaultWindow
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// Devices возвращает устройства аккаунта с учётом фильтра по dongle id.
// Ошибка означает, что проход продолжать нельзя.
func (d *Discoverer) Devices(ctx context.Context) ([]model.Device, error) {
	devices, err := d.backend.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	if d.dongleID == "" {
		return devices, nil
	}

	var selected []model.Device
	for _, dev := range devices {
		if dev.DongleID == d.dongleID {
			selected = append(selected, dev)
		}
	}
	return selected, nil
}

// DeviceFiles возвращает URL файлов всех маршрутов устройства за последнее окно.
// Окно отсчитывается от момента вызова.
func (d *Discoverer) DeviceFiles(ctx context.Context, device model.Device) (urls []string, routes int, err error) {
	end := d.now()
	start := end.Add(-d.window)

	rs, err := d.backend.ListRoutes(ctx, device.DongleID, start, end)
	if err != nil {
		return nil, 0, err
	}

	for _, route := range rs {
		files, err := d.backend.ListRouteFiles(ctx, route.Fullname)
		if err != nil {
			return nil, 0, fmt.Errorf("route %s: %w", route.Fullname, err)
		}
		urls = append(urls, FilterRouteFiles(files, d.categories)...)
	}
	return urls, len(rs), nil
}

type Result struct {
	URLs          []string
	Devices       int
	Routes        int
	FailedDevices []string
}

// Collect обходит устройства по очереди. Перед запросом маршрутов устройства
// вызывается before (выгрузка с устройства), если он задан. Ошибка одного
// устройства не прерывает обход остальных.
func (d *Discoverer) Collect(ctx context.Context, devices []model.Device, before func(context.Context, model.Device)) Result {
	var res Result
	for _, device := range devices {
		if ctx.Err() != nil {
			break
		}
		ctx := logger.With(ctx, "dongle", device.DongleID)
		log := logger.FromContext(ctx).With("op", "discover")

		if before != nil {
			before(ctx, device)
		}

		urls, routes, err := d.DeviceFiles(ctx, device)
		res.Devices++
		if err != nil {
			res.FailedDevices = append(res.FailedDevices, device.DongleID)
			log.Warn("device skipped", "error", err)
			continue
		}

		log.Info("device discovered", "routes", routes, "files", len(urls))
		res.Routes += routes
		res.URLs = append(res.URLs, urls...)
	}
	return res
}

// FilterRouteFiles разворачивает корзины маршрута в список URL в порядке таблицы
// категорий, отбрасывая unlog файлы и невыбранные категории.
func FilterRouteFiles(files model.RouteFiles, categories model.CategorySet) []string {
	var urls []string
	for _, ci := range model.Categories {
		if !categories[ci.Category] {
			continue
		}
		for _, url := range files[ci.Category] {
			if strings.Contains(url, excludeMarker) {
				continue
			}
			urls = append(urls, url)
		}
	}
	return urls
}
