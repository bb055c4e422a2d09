package logger

import (
	"log/slog"
	"math/rand/v2"
	"net/http"
	"runtime/debug"
	"time"
)

// HTTPLogging - middleware сервера статуса. Добавляет в контекст запроса логгер
// с reqID и перехватывает паники обработчиков.
func HTTPLogging(log *slog.Logger, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := log.With("reqID", rand.Uint64(), "from", r.RemoteAddr, "method", r.Method, "url", r.URL.String())
		log.Debug("request received")

		w = &statusInterceptor{
			ResponseWriter: w,
			log:            log,
		}
		r = r.WithContext(Context(r.Context(), log))

		defer func() {
			if p := recover(); p != nil {
				log.Error("*** panic recovered ***",
					"panic", p,
					"stack", debug.Stack())
				http.Error(w, "internal error", 500)
			}
		}()

		h.ServeHTTP(w, r)
	})
}

type statusInterceptor struct {
	http.ResponseWriter
	log    *slog.Logger
	status int // 0 = не установлен
}

func (si *statusInterceptor) WriteHeader(status int) {
	if si.status != 0 {
		si.log.Warn("redundant WriteHeader call", "origStatus", si.status, "newStatus", status)
		return
	}
	si.status = status
	si.log.Debug("response status", "status", status)
	si.ResponseWriter.WriteHeader(status)
}

// Transport оборачивает клиентский RoundTripper и пишет в debug лог каждый исходящий запрос.
// Query не логируется: в нём передаётся подпись (sig).
func Transport(log *slog.Logger, rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	return roundTripFunc(func(r *http.Request) (*http.Response, error) {
		log := log.With("method", r.Method, "host", r.URL.Host, "path", r.URL.Path)
		start := time.Now()

		resp, err := rt.RoundTrip(r)
		if err != nil {
			log.Debug("request failed", "error", err, "dur", time.Since(start))
			return nil, err
		}
		log.Debug("response received", "status", resp.StatusCode, "dur", time.Since(start))
		return resp, nil
	})
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
