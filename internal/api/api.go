package api

import (
	"net/http"

	"routeget/internal/model"
)

type Store interface {
	Get(id int64) (model.Report, error)
	Latest() (model.Report, error)
	List() []model.Report
}

func New(store Store, apiBasePath string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET " /**/ +apiBasePath+"/passes", ListPasses(store))
	mux.HandleFunc("GET " /**/ +apiBasePath+"/passes/latest", GetLatestPass(store))
	mux.HandleFunc("GET " /**/ +apiBasePath+"/passes/{id}", GetPass(store))
	return mux
}

type listPassesResponse struct {
	Passes []model.Report `json:"passes"`
}

func ListPasses(s Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := newHelper(w, r, "ListPasses")

		resp := listPassesResponse{Passes: s.List()}
		if resp.Passes == nil {
			resp.Passes = []model.Report{}
		}
		h.WriteResponse(resp, http.StatusOK)
	}
}

func GetLatestPass(s Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := newHelper(w, r, "GetLatestPass")

		report, err := s.Latest()
		if err != nil {
			h.WriteError(err)
			return
		}

		h.WriteResponse(report, http.StatusOK)
	}
}

func GetPass(s Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := newHelper(w, r, "GetPass")

		id, err := h.GetID()
		if err != nil {
			h.WriteError(err)
			return
		}

		report, err := s.Get(id)
		if err != nil {
			h.WriteError(err)
			return
		}

		h.WriteResponse(report, http.StatusOK)
	}
}
