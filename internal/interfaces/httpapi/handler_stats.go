package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/riskibarqy/matchday-sync/internal/usecase"
)

func (h *Handler) GetStandings(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetStandings")
	defer span.End()

	req := standingsQuery{League: strings.TrimSpace(r.URL.Query().Get("league"))}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	rows := h.statsService.ComputeStandings(ctx, h.store.Snapshot(), req.League)
	writeSuccess(ctx, w, http.StatusOK, standingsToDTO(rows))
}

func (h *Handler) ListLeagueTables(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListLeagueTables")
	defer span.End()

	tables := h.statsService.LeagueTables(ctx, h.store.Snapshot())
	writeSuccess(ctx, w, http.StatusOK, leagueTablesToDTO(tables))
}

// GetLeaders answers an unknown category with an empty list. ?limit= caps the
// list; zero or absent means no cap.
func (h *Handler) GetLeaders(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetLeaders")
	defer span.End()

	req := leadersRequest{Category: strings.TrimSpace(r.PathValue("category"))}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(ctx, w, fmt.Errorf("%w: limit must be an integer", usecase.ErrInvalidInput))
			return
		}
		req.Limit = limit
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	leaders := h.statsService.TopLeaders(ctx, h.store.Snapshot(), req.Category, req.Limit)
	writeSuccess(ctx, w, http.StatusOK, leadersToDTO(leaders))
}

func (h *Handler) GetMatchCentre(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetMatchCentre")
	defer span.End()

	entries := h.statsService.MatchCentre(ctx, h.store.Snapshot())
	writeSuccess(ctx, w, http.StatusOK, matchCentreToDTO(entries))
}
