// Package connecttest - поддельный бэкенд для тестов клиента и конвейера.
package connecttest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"routeget/internal/model"
)

const JWT = "test-jwt"

type Window struct {
	Start, End time.Time
}

// Server отвечает на запросы API так же, как бэкенд, и запоминает, что у него просили.
// Поля настраиваются до первого запроса.
type Server struct {
	*httptest.Server

	Devices       []model.Device
	DevicesStatus int                            // != 0 - ответить этим статусом на список устройств
	Routes        map[string][]model.Route       // dongle -> маршруты
	RoutesStatus  map[string]int                 // dongle -> статус ошибки
	Files         map[string]map[string][]string // fullname -> корзины
	LiveFiles     map[string][]string            // dongle -> файлы на устройстве
	LiveDelay     map[string]time.Duration       // dongle -> задержка ответа listDataDirectory
	LiveError     map[string]bool                // dongle -> RPC ошибка в listDataDirectory
	FailUploadAt  map[string]int                 // dongle -> номер вызова uploadFileToUrl (с 1), который вернёт ошибку

	mu          sync.Mutex
	requests    []string
	uploaded    map[string][]string
	uploadCalls map[string]int
	urlRequests map[string][][]string
	windows     map[string]Window
	downloads   map[string]int
}

func NewServer() *Server {
	s := &Server{
		Routes:       make(map[string][]model.Route),
		RoutesStatus: make(map[string]int),
		Files:        make(map[string]map[string][]string),
		LiveFiles:    make(map[string][]string),
		LiveDelay:    make(map[string]time.Duration),
		LiveError:    make(map[string]bool),
		FailUploadAt: make(map[string]int),
		uploaded:     make(map[string][]string),
		uploadCalls:  make(map[string]int),
		urlRequests:  make(map[string][][]string),
		windows:      make(map[string]Window),
		downloads:    make(map[string]int),
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

// FileURL - адрес файла в хранилище, как его отдаёт бэкенд в списке файлов маршрута.
func (s *Server) FileURL(kind, dongleID, route string, segment int, name string) string {
	return fmt.Sprintf("%s/connectdata/%s/%s/%s/%d/%s?sig=signed", s.URL, kind, dongleID, route, segment, name)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/me/devices", s.signed(s.listDevices))
	mux.HandleFunc("GET /v1/devices/{id}/routes_segments", s.signed(s.listRoutes))
	mux.HandleFunc("GET /v1/route/{fullname}/files", s.signed(s.listFiles))
	mux.HandleFunc("POST /v1/{id}/upload_urls", s.authorized(s.uploadURLs))
	mux.HandleFunc("POST /ws/{id}", s.authorized(s.rpc))
	mux.HandleFunc("GET /connectdata/", s.download)
	mux.HandleFunc("PUT /upload/", func(w http.ResponseWriter, r *http.Request) {})
	return mux
}

func (s *Server) record(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
}

func (s *Server) signed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		if r.URL.Query().Get("sig") != JWT {
			http.Error(w, "bad signature", http.StatusUnauthorized)
			return
		}
		h(w, r)
	}
}

func (s *Server) authorized(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		if r.Header.Get("Authorization") != "JWT "+JWT {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) listDevices(w http.ResponseWriter, r *http.Request) {
	if s.DevicesStatus != 0 {
		http.Error(w, "devices unavailable", s.DevicesStatus)
		return
	}
	writeJSON(w, s.Devices)
}

func (s *Server) listRoutes(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if status := s.RoutesStatus[id]; status != 0 {
		http.Error(w, "routes unavailable", status)
		return
	}

	start, err1 := strconv.ParseInt(r.URL.Query().Get("start"), 10, 64)
	end, err2 := strconv.ParseInt(r.URL.Query().Get("end"), 10, 64)
	if err1 != nil || err2 != nil {
		http.Error(w, "bad window", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.windows[id] = Window{Start: time.UnixMilli(start), End: time.UnixMilli(end)}
	s.mu.Unlock()

	routes := s.Routes[id]
	if routes == nil {
		routes = []model.Route{}
	}
	writeJSON(w, routes)
}

func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	files, ok := s.Files[r.PathValue("fullname")]
	if !ok {
		http.Error(w, "route not found", http.StatusNotFound)
		return
	}
	writeJSON(w, files)
}

func (s *Server) uploadURLs(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		Paths []string `json:"paths"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.urlRequests[id] = append(s.urlRequests[id], req.Paths)
	s.mu.Unlock()

	urls := make([]model.UploadURL, len(req.Paths))
	for i, p := range req.Paths {
		urls[i] = model.UploadURL{
			URL:     s.URL + "/upload/" + id + "/" + p,
			Headers: map[string]string{"x-ms-blob-type": "BlockBlob"},
		}
	}
	writeJSON(w, urls)
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      string          `json:"id"`
}

func (s *Server) rpc(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.JSONRPC != "2.0" || req.ID == "" {
		http.Error(w, "bad rpc envelope", http.StatusBadRequest)
		return
	}

	reply := func(result any, rpcErr map[string]any) {
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		writeJSON(w, resp)
	}

	switch req.Method {
	case "listDataDirectory":
		if d := s.LiveDelay[id]; d > 0 {
			select {
			case <-time.After(d):
			case <-r.Context().Done():
				return
			}
		}
		if s.LiveError[id] {
			reply(nil, map[string]any{"code": -32000, "message": "device not connected"})
			return
		}
		files := s.LiveFiles[id]
		if files == nil {
			files = []string{}
		}
		reply(files, nil)

	case "uploadFileToUrl":
		var p struct {
			Fn      string            `json:"fn"`
			URL     string            `json:"url"`
			Headers map[string]string `json:"headers"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil || p.Fn == "" || p.URL == "" || p.Headers == nil {
			reply(nil, map[string]any{"code": -32602, "message": "invalid params"})
			return
		}

		s.mu.Lock()
		s.uploadCalls[id]++
		n := s.uploadCalls[id]
		if n != s.FailUploadAt[id] {
			s.uploaded[id] = append(s.uploaded[id], p.Fn)
		}
		s.mu.Unlock()

		if n == s.FailUploadAt[id] {
			http.Error(w, "device timeout", http.StatusGatewayTimeout)
			return
		}
		reply(map[string]any{"enqueued": 1}, nil)

	default:
		reply(nil, map[string]any{"code": -32601, "message": "method not found"})
	}
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.downloads[r.URL.Path]++
	s.mu.Unlock()

	if strings.Contains(r.URL.Path, "missing") {
		http.NotFound(w, r)
		return
	}
	fmt.Fprintf(w, "data of %s", r.URL.Path)
}

// Requests возвращает "METHOD /path" всех запросов к API в порядке поступления.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Uploaded - файлы, которые устройство успешно поставило в очередь выгрузки.
func (s *Server) Uploaded(dongleID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.uploaded[dongleID]...)
}

// UploadCalls - число вызовов uploadFileToUrl, включая неуспешные.
func (s *Server) UploadCalls(dongleID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploadCalls[dongleID]
}

func (s *Server) UploadURLRequests(dongleID string) [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.urlRequests[dongleID]...)
}

func (s *Server) Window(dongleID string) (Window, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[dongleID]
	return w, ok
}

// Downloads - число GET запросов к файлу хранилища по пути URL.
func (s *Server) Downloads(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downloads[path]
}
