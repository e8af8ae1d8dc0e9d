package usecase

import (
	"reflect"
	"sync"
	"testing"

	"github.com/riskibarqy/matchday-sync/internal/domain/liveevent"
	"github.com/riskibarqy/matchday-sync/internal/platform/logging"
)

type stubPushChannel struct {
	mu            sync.Mutex
	handlers      map[string]func([]byte)
	connects      []func()
	unsubscribes  int
	offConnects   int
	subscriptions int
}

func newStubPushChannel() *stubPushChannel {
	return &stubPushChannel{handlers: make(map[string]func([]byte))}
}

func (s *stubPushChannel) Subscribe(event string, handler func(data []byte)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions++
	s.handlers[event] = handler
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.unsubscribes++
		delete(s.handlers, event)
	}
}

func (s *stubPushChannel) OnConnect(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects = append(s.connects, fn)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.offConnects++
	}
}

func (s *stubPushChannel) emit(event string, data string) bool {
	s.mu.Lock()
	handler, ok := s.handlers[event]
	s.mu.Unlock()
	if !ok {
		return false
	}
	handler([]byte(data))
	return true
}

func (s *stubPushChannel) connect() {
	s.mu.Lock()
	connects := append([]func(){}, s.connects...)
	s.mu.Unlock()
	for _, fn := range connects {
		fn()
	}
}

type appliedEvent struct {
	matchID string
	patch   map[string]any
}

type recordingApplier struct {
	mu     sync.Mutex
	events []appliedEvent
}

func (r *recordingApplier) ApplyLiveEvent(matchID string, patch map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, appliedEvent{matchID: matchID, patch: patch})
}

type panickingApplier struct{}

func (panickingApplier) ApplyLiveEvent(string, map[string]any) {
	panic("applier exploded")
}

func TestLiveEventMerger_HandleFrame_NormalizesMatchIDAndPayload(t *testing.T) {
	t.Parallel()

	applier := &recordingApplier{}
	merger := NewLiveEventMerger(applier, logging.NewNop())

	merger.HandleFrame([]byte(`{"matchId":42,"payload":{"status":"LIVE","home_score":1}}`))
	merger.HandleFrame([]byte(`{"matchId":" m-7 ","payload":"not an object"}`))
	merger.HandleFrame([]byte(`{"matchId":"m-8"}`))

	if len(applier.events) != 3 {
		t.Fatalf("expected 3 applied events, got=%d", len(applier.events))
	}
	first := applier.events[0]
	if first.matchID != "42" || first.patch["status"] != "LIVE" {
		t.Fatalf("unexpected first event: %+v", first)
	}
	if applier.events[1].matchID != "m-7" || len(applier.events[1].patch) != 0 {
		t.Fatalf("expected non-object payload to default to empty patch: %+v", applier.events[1])
	}
	if applier.events[2].patch == nil || len(applier.events[2].patch) != 0 {
		t.Fatalf("expected missing payload to default to empty patch: %+v", applier.events[2])
	}
}

func TestLiveEventMerger_HandleFrame_DropsInvalidFrames(t *testing.T) {
	t.Parallel()

	applier := &recordingApplier{}
	merger := NewLiveEventMerger(applier, logging.NewNop())

	merger.HandleFrame([]byte(`{"payload":{"status":"LIVE"}}`))
	merger.HandleFrame([]byte(`{not json`))
	merger.HandleFrame([]byte(`null`))
	merger.HandleFrame([]byte(`{"matchId":"   ","payload":{}}`))

	if len(applier.events) != 0 {
		t.Fatalf("expected every frame to be dropped, got=%+v", applier.events)
	}
}

func TestLiveEventMerger_HandleFrame_NeverPanics(t *testing.T) {
	t.Parallel()

	merger := NewLiveEventMerger(panickingApplier{}, logging.NewNop())
	merger.HandleFrame([]byte(`{"matchId":"1","payload":{}}`))
}

func TestLiveEventMerger_AttachAndDetachOnce(t *testing.T) {
	t.Parallel()

	applier := &recordingApplier{}
	channel := newStubPushChannel()
	merger := NewLiveEventMerger(applier, logging.NewNop())

	detach := merger.Attach(channel)
	channel.connect()
	if !channel.emit(liveevent.UpdateEvent, `{"matchId":"1","payload":{"minute":12}}`) {
		t.Fatalf("expected handler to be registered for %s", liveevent.UpdateEvent)
	}
	if channel.subscriptions != 1 {
		t.Fatalf("expected exactly one subscription, got=%d", channel.subscriptions)
	}

	detach()
	detach()
	if channel.unsubscribes != 1 || channel.offConnects != 1 {
		t.Fatalf("expected one teardown, unsubscribes=%d offConnects=%d", channel.unsubscribes, channel.offConnects)
	}
	if channel.emit(liveevent.UpdateEvent, `{"matchId":"1","payload":{}}`) {
		t.Fatalf("expected handler to be removed after detach")
	}

	want := []appliedEvent{{matchID: "1", patch: map[string]any{"minute": float64(12)}}}
	if !reflect.DeepEqual(applier.events, want) {
		t.Fatalf("unexpected applied events: %+v", applier.events)
	}
}

func TestLiveEventMerger_AttachNilChannel(t *testing.T) {
	t.Parallel()

	detach := NewLiveEventMerger(&recordingApplier{}, logging.NewNop()).Attach(nil)
	detach()
}
