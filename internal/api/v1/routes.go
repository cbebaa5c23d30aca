// Package v1 provides the dataset sync endpoints.
package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/urbanmap/tilesync/internal/api/common"
	"github.com/urbanmap/tilesync/internal/status"
	pkgsync "github.com/urbanmap/tilesync/internal/sync"
)

// DatasetSummary is one entry of GET /v1/datasets
type DatasetSummary struct {
	Name    string                `json:"name"`
	Running bool                  `json:"running"`
	Run     *status.SyncRunStatus `json:"run,omitempty"`
}

// DatasetList is the body of GET /v1/datasets
type DatasetList struct {
	Datasets []DatasetSummary `json:"datasets"`
}

// StatusResponse is the body of GET /v1/datasets/{dataset}/sync/status
type StatusResponse struct {
	Dataset  string                `json:"dataset"`
	Running  bool                  `json:"running"`
	Run      *status.SyncRunStatus `json:"run,omitempty"`
	Progress float64               `json:"progress"`
}

// Routes holds the dataset services behind the router
type Routes struct {
	services map[string]pkgsync.Service
	names    []string
}

// NewRoutes creates Routes for the given services
func NewRoutes(services []pkgsync.Service) *Routes {
	rr := &Routes{services: make(map[string]pkgsync.Service, len(services))}
	for _, svc := range services {
		rr.services[svc.Name()] = svc
		rr.names = append(rr.names, svc.Name())
	}
	sort.Strings(rr.names)
	return rr
}

// Router creates the /v1 router
func Router(services []pkgsync.Service) http.Handler {
	routes := NewRoutes(services)

	r := chi.NewRouter()
	r.Get("/datasets", routes.listDatasets)
	r.Route("/datasets/{dataset}", func(r chi.Router) {
		r.Post("/sync", routes.startSync)
		r.Post("/sync/stop", routes.stopSync)
		r.Get("/sync/status", routes.getStatus)
		r.Get("/sync/logs", routes.getLogs)
		r.Get("/statistics", routes.getStatistics)
	})
	return r
}

func (rr *Routes) service(w http.ResponseWriter, r *http.Request) (pkgsync.Service, bool) {
	name := chi.URLParam(r, "dataset")
	svc, ok := rr.services[name]
	if !ok {
		common.WriteErrorResponse(w, "dataset not found: "+name, http.StatusNotFound)
	}
	return svc, ok
}

// listDatasets handles GET /v1/datasets
func (rr *Routes) listDatasets(w http.ResponseWriter, _ *http.Request) {
	list := DatasetList{Datasets: make([]DatasetSummary, 0, len(rr.names))}
	for _, name := range rr.names {
		run := rr.services[name].GetStatus()
		list.Datasets = append(list.Datasets, DatasetSummary{Name: name, Running: run != nil, Run: run})
	}
	common.WriteJSONResponse(w, list, http.StatusOK)
}

// startSync handles POST /v1/datasets/{dataset}/sync?resume=bool
func (rr *Routes) startSync(w http.ResponseWriter, r *http.Request) {
	svc, ok := rr.service(w, r)
	if !ok {
		return
	}

	resume := false
	if v := r.URL.Query().Get("resume"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			common.WriteErrorResponse(w, "resume must be a boolean", http.StatusBadRequest)
			return
		}
		resume = parsed
	}

	run, err := svc.StartSync(r.Context(), resume)
	if err != nil {
		slog.Error("Failed to start sync", "dataset", svc.Name(), "error", err)
		common.WriteErrorResponse(w, "failed to start sync", http.StatusInternalServerError)
		return
	}
	common.WriteJSONResponse(w, run, http.StatusAccepted)
}

// stopSync handles POST /v1/datasets/{dataset}/sync/stop
func (rr *Routes) stopSync(w http.ResponseWriter, r *http.Request) {
	svc, ok := rr.service(w, r)
	if !ok {
		return
	}

	run, err := svc.StopSync(r.Context())
	if err != nil {
		if errors.Is(err, pkgsync.ErrNotRunning) {
			common.WriteErrorResponse(w, err.Error(), http.StatusConflict)
			return
		}
		slog.Error("Failed to stop sync", "dataset", svc.Name(), "error", err)
		common.WriteErrorResponse(w, "failed to stop sync", http.StatusInternalServerError)
		return
	}
	common.WriteJSONResponse(w, run, http.StatusAccepted)
}

// getStatus handles GET /v1/datasets/{dataset}/sync/status
func (rr *Routes) getStatus(w http.ResponseWriter, r *http.Request) {
	svc, ok := rr.service(w, r)
	if !ok {
		return
	}

	resp := StatusResponse{Dataset: svc.Name()}
	if run := svc.GetStatus(); run != nil {
		resp.Running = true
		resp.Run = run
		resp.Progress = run.Progress()
	}
	common.WriteJSONResponse(w, resp, http.StatusOK)
}

// getLogs handles GET /v1/datasets/{dataset}/sync/logs?limit&offset
func (rr *Routes) getLogs(w http.ResponseWriter, r *http.Request) {
	svc, ok := rr.service(w, r)
	if !ok {
		return
	}

	limit, err := intParam(r, "limit")
	if err != nil {
		common.WriteErrorResponse(w, "limit must be an integer", http.StatusBadRequest)
		return
	}
	offset, err := intParam(r, "offset")
	if err != nil || offset < 0 {
		common.WriteErrorResponse(w, "offset must be a non-negative integer", http.StatusBadRequest)
		return
	}

	page, err := svc.GetLogs(r.Context(), limit, offset)
	if err != nil {
		slog.Error("Failed to list sync runs", "dataset", svc.Name(), "error", err)
		common.WriteErrorResponse(w, "failed to list sync runs", http.StatusInternalServerError)
		return
	}
	common.WriteJSONResponse(w, page, http.StatusOK)
}

// getStatistics handles GET /v1/datasets/{dataset}/statistics
func (rr *Routes) getStatistics(w http.ResponseWriter, r *http.Request) {
	svc, ok := rr.service(w, r)
	if !ok {
		return
	}

	stats, err := svc.GetStatistics(r.Context())
	if err != nil {
		slog.Error("Failed to compute statistics", "dataset", svc.Name(), "error", err)
		common.WriteErrorResponse(w, "failed to compute statistics", http.StatusInternalServerError)
		return
	}
	common.WriteJSONResponse(w, stats, http.StatusOK)
}

func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
