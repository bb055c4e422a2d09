package memstor

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"routeget/internal/model"
)

type Report = model.Report

var ErrReportNotFound = model.ErrReportNotFound

type Config struct {
	MaxTotal int           // максимальное количество отчётов, 0 - неограничено
	TTL      time.Duration // время жизни отчёта, 0 - бессрочно
}

// Memstor хранит отчёты последних проходов в памяти.
type Memstor struct {
	cache *ttlcache.Cache[int64, Report]

	mu     sync.Mutex
	nextID int64
	latest int64
}

func New(cfg Config) *Memstor {
	opts := []ttlcache.Option[int64, Report]{
		ttlcache.WithDisableTouchOnHit[int64, Report](),
	}
	if cfg.TTL > 0 {
		opts = append(opts, ttlcache.WithTTL[int64, Report](cfg.TTL))
	}
	if cfg.MaxTotal > 0 {
		opts = append(opts, ttlcache.WithCapacity[int64, Report](uint64(cfg.MaxTotal)))
	}

	m := &Memstor{cache: ttlcache.New(opts...)}
	go m.cache.Start()
	return m
}

// NextID выдаёт номер следующего прохода.
func (m *Memstor) NextID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	return m.nextID
}

func (m *Memstor) Put(report Report) {
	m.cache.Set(report.ID, report.Clone(), ttlcache.DefaultTTL)

	m.mu.Lock()
	defer m.mu.Unlock()
	if report.ID > m.latest {
		m.latest = report.ID
	}
}

func (m *Memstor) Get(id int64) (Report, error) {
	item := m.cache.Get(id)
	if item == nil {
		return Report{}, ErrReportNotFound
	}
	return item.Value().Clone(), nil
}

func (m *Memstor) Latest() (Report, error) {
	m.mu.Lock()
	id := m.latest
	m.mu.Unlock()

	if id == 0 {
		return Report{}, ErrReportNotFound
	}
	return m.Get(id)
}

// List возвращает отчёты без списков файлов, новые первыми.
func (m *Memstor) List() []Report {
	items := m.cache.Items()
	reports := make([]Report, 0, len(items))
	for _, item := range items {
		if item.IsExpired() {
			continue
		}
		r := item.Value()
		r.Files = nil
		reports = append(reports, r)
	}
	slices.SortFunc(reports, func(a, b Report) int {
		return cmp.Compare(b.ID, a.ID)
	})
	return reports
}

func (m *Memstor) Cancel() {
	m.cache.Stop()
	m.cache.DeleteAll()
}
