package httpapi

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/riskibarqy/matchday-sync/internal/usecase"
)

func (h *Handler) ListLiveEvents(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListLiveEvents")
	defer span.End()

	events := h.store.Snapshot().LiveEvents
	matchIDs := make([]string, 0, len(events))
	for matchID := range events {
		matchIDs = append(matchIDs, matchID)
	}
	sort.Strings(matchIDs)

	items := make([]liveEventDTO, 0, len(matchIDs))
	for _, matchID := range matchIDs {
		items = append(items, liveEventDTO{MatchID: matchID, Record: map[string]any(events[matchID])})
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) GetLiveEvent(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetLiveEvent")
	defer span.End()

	req := liveEventPath{MatchID: strings.TrimSpace(r.PathValue("matchID"))}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	record, ok := h.store.Snapshot().LiveEvents[req.MatchID]
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: no live state for match %s", usecase.ErrNotFound, req.MatchID))
		return
	}

	writeSuccess(ctx, w, http.StatusOK, liveEventDTO{MatchID: req.MatchID, Record: map[string]any(record)})
}
