package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"routeget/internal/config"
	"routeget/internal/logger"
	"routeget/internal/model"
)

const (
	bufSize        = 32 * 1024
	defaultWorkers = 5
)

type File = model.File

type Loader struct {
	client  *http.Client
	root    string
	prefix  string
	workers int
}

func New(client *http.Client, cfg config.Loader) *Loader {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Loader{
		client:  client,
		root:    cfg.Root,
		prefix:  cfg.Prefix,
		workers: workers,
	}
}

type task struct {
	idx int
	url string
}

type result struct {
	idx  int
	file File
}

// Download загружает файлы пулом из ldr.workers воркеров. Результаты возвращаются
// в порядке urls, порядок завершения загрузок не определён. Ошибка одного файла
// не прерывает остальные.
func (ldr *Loader) Download(ctx context.Context, urls []string) []File {
	tasks := make(chan task)
	results := make(chan result, ldr.workers)

	var wg sync.WaitGroup
	wg.Add(ldr.workers)
	for range ldr.workers {
		go func() {
			defer wg.Done()
			for t := range tasks {
				results <- result{idx: t.idx, file: ldr.DownloadFile(ctx, t.url)}
			}
		}()
	}

	go func() {
		defer close(tasks)
		for i, url := range urls {
			tasks <- task{idx: i, url: url}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	files := make([]File, len(urls))
	for r := range results {
		files[r.idx] = r.file
	}
	return files
}

// DownloadFile загружает один файл, если его ещё нет на диске.
// Все ошибки отражаются в File (Status/ErrorMsg).
func (ldr *Loader) DownloadFile(ctx context.Context, uri string) (file File) {
	log := logger.FromContext(ctx).With("op", "downloadFile", "url", trimQuery(uri))

	file = File{URL: uri}
	defer func() {
		if !file.Skipped && file.Status != http.StatusOK && file.ErrorMsg == "" {
			file.ErrorMsg = http.StatusText(file.Status)
			if file.ErrorMsg == "" {
				file.ErrorMsg = fmt.Sprintf("HTTP %d", file.Status)
			}
		}
	}()

	path, err := LocalPath(ldr.root, ldr.prefix, uri)
	if err != nil {
		file.Status = http.StatusBadRequest
		file.ErrorMsg = err.Error()
		log.Warn("invalid local path", "error", err)
		return file
	}
	file.Path = path
	log = log.With("path", path)

	// Наличие файла - единственный признак того, что он уже загружен
	if _, err := os.Stat(path); err == nil {
		file.Skipped = true
		log.Info("file already exists")
		return file
	} else if !errors.Is(err, fs.ErrNotExist) {
		file.Status = http.StatusInternalServerError
		file.ErrorMsg = fmt.Sprintf("stat failed: %v", err)
		log.Error("stat failed", "error", err)
		return file
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		file.Status = http.StatusBadRequest
		file.ErrorMsg = fmt.Sprintf("invalid url: %v", err)
		log.Warn("create request failed", "error", err)
		return file
	}

	resp, err := ldr.client.Do(req)
	if err != nil {
		file.Status = http.StatusBadGateway
		file.ErrorMsg = err.Error()
		log.Warn("request failed", "error", err)
		return file
	}
	defer resp.Body.Close()

	file.Status = resp.StatusCode
	if file.Status != http.StatusOK {
		log.Warn("unexpected status, nothing written", "status", file.Status)
		return file
	}

	size, err := writeFile(path, resp.Body, resp.ContentLength)
	file.Size = size
	if err != nil {
		file.Status = http.StatusBadGateway
		file.ErrorMsg = err.Error()
		log.Warn("write failed", "error", err)
		return file
	}

	log.Info("file downloaded", "size", size)
	return file
}

// writeFile пишет тело во временный файл рядом с path и переименовывает его.
// Читатель никогда не видит по пути path недописанный файл.
func writeFile(path string, body io.Reader, contentLength int64) (int64, error) {
	dir := filepath.Dir(path)

	// MkdirAll не считает ошибкой существующий каталог, в том числе созданный соседним воркером
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create dir failed: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp file failed: %w", err)
	}
	tmpName := tmp.Name()
	_ = tmp.Chmod(0o644) // CreateTemp создаёт файл с правами 0600

	size, copyErr := io.CopyBuffer(tmp, body, make([]byte, bufSize))
	closeErr := tmp.Close()

	switch {
	case copyErr != nil:
		err = fmt.Errorf("read body failed: %w", copyErr)
	case closeErr != nil:
		err = fmt.Errorf("close temp file failed: %w", closeErr)
	case contentLength >= 0 && size != contentLength:
		err = fmt.Errorf("short body: got %d of %d bytes", size, contentLength)
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return size, err
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return size, fmt.Errorf("rename failed: %w", err)
	}
	return size, nil
}
