package uploader

import (
	"context"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"routeget/internal/config"
	"routeget/internal/logger"
	"routeget/internal/model"
)

// UploadCategory - категория файлов, которые просим выгрузить с устройства.
const UploadCategory = model.Logs

type Backend interface {
	ListLiveFiles(ctx context.Context, dongleID string) ([]string, bool)
	RequestUpload(ctx context.Context, dongleID string, names []string) (int, error)
}

type Result struct {
	Skipped   bool // устройство офлайн или список файлов недоступен
	Requested int  // выгрузки, принятые устройством
	Failed    int  // файлы, до которых очередь не дошла из-за ошибки
}

type Uploader struct {
	backend Backend
	stem    string
	seen    *ttlcache.Cache[string, struct{}] // nil - без подавления повторов
}

func New(backend Backend, cfg config.Uploader) *Uploader {
	ci, _ := model.Lookup(UploadCategory)
	u := &Uploader{
		backend: backend,
		stem:    ci.Stem,
	}
	if cfg.DedupTTL > 0 {
		u.seen = ttlcache.New[string, struct{}](
			ttlcache.WithTTL[string, struct{}](cfg.DedupTTL),
			ttlcache.WithDisableTouchOnHit[string, struct{}](),
		)
		go u.seen.Start()
	}
	return u
}

func (u *Uploader) Close() {
	if u.seen != nil {
		u.seen.Stop()
	}
}

// Upload просит онлайн устройство выгрузить его rlog файлы на бэкенд.
// Ошибки не возвращаются: офлайн устройство и недоступный список пропускаются,
// ошибка выгрузки прекращает выгрузку только для этого устройства.
func (u *Uploader) Upload(ctx context.Context, device model.Device) Result {
	log := logger.FromContext(ctx).With("op", "upload", "dongle", device.DongleID)

	if !device.IsOnline {
		log.Info("device offline, upload skipped")
		return Result{Skipped: true}
	}

	files, ok := u.backend.ListLiveFiles(ctx, device.DongleID)
	if !ok {
		log.Info("live listing unavailable, upload skipped")
		return Result{Skipped: true}
	}

	names := u.selectFiles(device.DongleID, files)
	if len(names) == 0 {
		log.Debug("nothing to upload", "listed", len(files))
		return Result{}
	}

	start := time.Now()
	n, err := u.backend.RequestUpload(ctx, device.DongleID, names)
	u.remember(device.DongleID, names[:n])

	res := Result{Requested: n, Failed: len(names) - n}
	if err != nil {
		log.Warn("upload stopped, remaining files skipped", "error", err, "requested", n, "skipped", res.Failed)
		return res
	}

	log.Info("upload requested", "files", n, "dur", time.Since(start))
	return res
}

func (u *Uploader) selectFiles(dongleID string, files []string) []string {
	var names []string
	for _, name := range files {
		if !strings.Contains(name, u.stem) {
			continue
		}
		if u.seen != nil && u.seen.Has(dedupKey(dongleID, name)) {
			continue
		}
		names = append(names, name)
	}
	return names
}

func (u *Uploader) remember(dongleID string, names []string) {
	if u.seen == nil {
		return
	}
	for _, name := range names {
		u.seen.Set(dedupKey(dongleID, name), struct{}{}, ttlcache.DefaultTTL)
	}
}

func dedupKey(dongleID, name string) string {
	return dongleID + "/" + name
}
