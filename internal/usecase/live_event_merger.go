package usecase

import (
	"strconv"
	"strings"
	"sync"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/matchday-sync/internal/domain/liveevent"
	"github.com/riskibarqy/matchday-sync/internal/platform/logging"
)

// LiveEventApplier receives one merged patch per inbound live event.
type LiveEventApplier interface {
	ApplyLiveEvent(matchID string, patch map[string]any)
}

// LiveEventMerger turns push channel frames into live-state patches.
type LiveEventMerger struct {
	target LiveEventApplier
	logger *logging.Logger
}

type liveEventFrame struct {
	MatchID any `json:"matchId"`
	Payload any `json:"payload"`
}

func NewLiveEventMerger(target LiveEventApplier, logger *logging.Logger) *LiveEventMerger {
	if logger == nil {
		logger = logging.Default()
	}
	return &LiveEventMerger{
		target: target,
		logger: logger,
	}
}

// Attach registers the update handler and a readiness log on channel. The
// returned detach func removes both and is safe to call more than once.
func (m *LiveEventMerger) Attach(channel PushChannel) (detach func()) {
	if channel == nil {
		return func() {}
	}

	unsubscribe := channel.Subscribe(liveevent.UpdateEvent, m.HandleFrame)
	offConnect := channel.OnConnect(func() {
		m.logger.Info("live event channel connected", "event", liveevent.UpdateEvent)
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			offConnect()
		})
	}
}

// HandleFrame applies one `{matchId, payload}` frame. It never panics; frames
// without a match id are dropped and a missing or non-object payload counts as
// an empty patch.
func (m *LiveEventMerger) HandleFrame(data []byte) {
	defer func() {
		if recovered := recover(); recovered != nil {
			m.logger.Error("live event handler panicked", "panic", recovered)
		}
	}()

	var frame liveEventFrame
	if err := sonic.Unmarshal(data, &frame); err != nil {
		m.logger.Warn("drop malformed live event frame", "error", err)
		return
	}

	matchID := normalizeMatchID(frame.MatchID)
	if matchID == "" {
		m.logger.Warn("drop live event without match id")
		return
	}

	patch, ok := frame.Payload.(map[string]any)
	if !ok || patch == nil {
		patch = map[string]any{}
	}

	m.target.ApplyLiveEvent(matchID, patch)
}

func normalizeMatchID(raw any) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}
