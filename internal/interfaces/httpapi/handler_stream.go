package httpapi

import (
	"fmt"
	"net/http"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/riskibarqy/matchday-sync/internal/domain/snapshot"
)

// Stream sends a server-sent event for every published snapshot version,
// starting with the current one. A slow client only ever sees the newest
// pending snapshot.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Stream")
	defer span.End()

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.ErrorContext(ctx, "response writer does not support streaming")
		writeInternalError(ctx, w)
		return
	}

	sessionID := uuid.NewString()
	logger := h.logger.With("stream_session", sessionID)

	updates := make(chan *snapshot.Snapshot, 1)
	unsubscribe := h.store.Subscribe(func(snap *snapshot.Snapshot) {
		// Shares the delivery goroutine with every other subscriber: never block.
		select {
		case updates <- snap:
			return
		default:
		}
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- snap:
		default:
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Stream-Session", sessionID)
	w.WriteHeader(http.StatusOK)

	logger.InfoContext(ctx, "snapshot stream opened")
	defer logger.InfoContext(ctx, "snapshot stream closed")

	current := h.store.Snapshot()
	if err := writeSnapshotEvent(w, current); err != nil {
		return
	}
	flusher.Flush()
	lastVersion := current.Version

	keepAlive := time.NewTicker(h.streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-updates:
			if snap.Version <= lastVersion {
				continue
			}
			if err := writeSnapshotEvent(w, snap); err != nil {
				logger.WarnContext(ctx, "write snapshot event failed", "error", err)
				return
			}
			flusher.Flush()
			lastVersion = snap.Version
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSnapshotEvent(w http.ResponseWriter, snap *snapshot.Snapshot) error {
	payload, err := sonic.Marshal(snapshotToMetaDTO(snap))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: snapshot\ndata: %s\n\n", snap.Version, payload)
	return err
}
