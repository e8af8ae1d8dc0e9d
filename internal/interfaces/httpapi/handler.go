package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/riskibarqy/matchday-sync/internal/platform/logging"
	"github.com/riskibarqy/matchday-sync/internal/usecase"
)

const defaultStreamKeepAlive = 15 * time.Second

type Handler struct {
	store           *usecase.Store
	statsService    *usecase.StatsService
	logger          *logging.Logger
	validator       *validator.Validate
	streamKeepAlive time.Duration
}

func NewHandler(store *usecase.Store, statsService *usecase.StatsService, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		store:           store,
		statsService:    statsService,
		logger:          logger,
		validator:       validator.New(),
		streamKeepAlive: defaultStreamKeepAlive,
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetSnapshot")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, snapshotToDTO(ctx, h.store.Snapshot()))
}

// Refresh schedules a background reload and answers before it completes.
// The outcome shows up in the snapshot's loading and error fields.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Refresh")
	defer span.End()

	current := h.store.Snapshot()
	h.store.Refresh()

	writeSuccess(ctx, w, http.StatusAccepted, refreshAcceptedDTO{
		Accepted:       true,
		CurrentVersion: current.Version,
	})
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}

type standingsQuery struct {
	League string `validate:"omitempty,max=64,printascii"`
}

type leadersRequest struct {
	Category string `validate:"required,max=32,alphanum"`
	Limit    int    `validate:"gte=0,lte=100"`
}

type liveEventPath struct {
	MatchID string `validate:"required,max=64,printascii"`
}
