package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
}

func registerSnapshotRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/snapshot", handler.GetSnapshot)
	mux.HandleFunc("POST /v1/refresh", handler.Refresh)
	mux.HandleFunc("GET /v1/stream", handler.Stream)
}

func registerStatsRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/standings", handler.GetStandings)
	mux.HandleFunc("GET /v1/standings/tables", handler.ListLeagueTables)
	mux.HandleFunc("GET /v1/leaders/{category}", handler.GetLeaders)
	mux.HandleFunc("GET /v1/match-centre", handler.GetMatchCentre)
}

func registerLiveRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/live", handler.ListLiveEvents)
	mux.HandleFunc("GET /v1/live/{matchID}", handler.GetLiveEvent)
}
