package mqttbridge

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfryman/vestaboard-mqtt/internal/board"
	"github.com/jfryman/vestaboard-mqtt/internal/scheduler"
	"github.com/jfryman/vestaboard-mqtt/internal/store"
)

// stubBoard is an in-memory DisplayPort for handler tests.
type stubBoard struct {
	mu     sync.Mutex
	layout [][]int
	seq    int
}

func (s *stubBoard) Show(_ context.Context, msg board.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.IsLayout() {
		s.layout = msg.Layout
	} else {
		s.layout = board.TextToLayout(msg.Text, board.Standard)
	}
	s.seq++
	return fmt.Sprintf("msg-%d", s.seq), nil
}

func (s *stubBoard) Read(_ context.Context) (board.Message, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return board.LayoutMessage(s.layout), fmt.Sprintf("msg-%d", s.seq), nil
}

func (s *stubBoard) current() [][]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layout
}

func newTestBridge(t *testing.T) (*Bridge, *stubBoard) {
	t.Helper()
	disp := &stubBoard{}
	states := store.NewManager(store.NewMemoryStore(), zerolog.Nop())
	sched := scheduler.New(scheduler.Config{
		Display: disp,
		States:  states,
		Logger:  zerolog.Nop(),
	})
	t.Cleanup(sched.CancelAll)
	return &Bridge{
		prefix: "vestaboard",
		board:  disp,
		states: states,
		sched:  sched,
		log:    zerolog.Nop(),
	}, disp
}

func TestParseMessagePayload(t *testing.T) {
	m := parseMessagePayload([]byte(`[[1,2],[3,4]]`))
	if !m.IsLayout() || !reflect.DeepEqual(m.Layout, [][]int{{1, 2}, {3, 4}}) {
		t.Fatalf("layout payload = %+v", m)
	}

	m = parseMessagePayload([]byte(`{"text":"HELLO"}`))
	if m.IsLayout() || m.Text != "HELLO" {
		t.Fatalf("text object payload = %+v", m)
	}

	m = parseMessagePayload([]byte(`"QUOTED"`))
	if m.Text != "QUOTED" {
		t.Fatalf("json string payload = %+v", m)
	}

	m = parseMessagePayload([]byte(`PLAIN TEXT`))
	if m.Text != "PLAIN TEXT" {
		t.Fatalf("plain payload = %+v", m)
	}

	m = parseMessagePayload([]byte(`{broken`))
	if m.Text != `{broken` {
		t.Fatalf("malformed payload = %+v", m)
	}
}

func TestParseListTimersPayload(t *testing.T) {
	b, _ := newTestBridge(t)

	if got := b.parseListTimersPayload(nil); got != "vestaboard/timers-response" {
		t.Fatalf("empty payload = %q", got)
	}
	if got := b.parseListTimersPayload([]byte(`{"response_topic":"custom/reply"}`)); got != "custom/reply" {
		t.Fatalf("json payload = %q", got)
	}
	if got := b.parseListTimersPayload([]byte(`{"other":1}`)); got != "vestaboard/timers-response" {
		t.Fatalf("json without topic = %q", got)
	}
	if got := b.parseListTimersPayload([]byte(`  custom/topic  `)); got != "custom/topic" {
		t.Fatalf("plain payload = %q", got)
	}
}

func TestRouteMessage(t *testing.T) {
	b, disp := newTestBridge(t)
	b.route(context.Background(), topicMessage, []byte("HELLO"))
	if !reflect.DeepEqual(disp.current(), board.TextToLayout("HELLO", board.Standard)) {
		t.Fatal("message was not written to the board")
	}
}

func TestSaveRestoreDeleteFlow(t *testing.T) {
	b, disp := newTestBridge(t)
	ctx := context.Background()

	home := board.TextToLayout("HOME", board.Standard)
	if _, err := disp.Show(ctx, board.LayoutMessage(home)); err != nil {
		t.Fatalf("seed board: %v", err)
	}

	b.route(ctx, "save/home", nil)

	b.route(ctx, topicMessage, []byte("OTHER"))
	if reflect.DeepEqual(disp.current(), home) {
		t.Fatal("board unchanged after message")
	}

	b.route(ctx, "restore/home", nil)
	if !reflect.DeepEqual(disp.current(), home) {
		t.Fatal("board not restored from slot")
	}

	b.route(ctx, "delete/home", nil)
	if err := b.handleRestore(ctx, "home"); err == nil {
		t.Fatal("restore of deleted slot succeeded")
	}
}

func TestTimedMessageLifecycle(t *testing.T) {
	b, disp := newTestBridge(t)
	ctx := context.Background()

	b.route(ctx, topicTimedMessage, []byte(`{"message":"ALERT","duration_seconds":3600}`))
	if !reflect.DeepEqual(disp.current(), board.TextToLayout("ALERT", board.Standard)) {
		t.Fatal("timed message not shown")
	}
	timers := b.sched.List()
	if len(timers) != 1 {
		t.Fatalf("active timers = %d, want 1", len(timers))
	}
	if timers[0].Duration != time.Hour {
		t.Fatalf("duration = %v, want 1h", timers[0].Duration)
	}

	b.route(ctx, "cancel-timer/"+timers[0].ID, nil)
	if n := b.sched.ActiveCount(); n != 0 {
		t.Fatalf("active timers = %d after cancel, want 0", n)
	}
}

func TestTimedMessageDefaultDuration(t *testing.T) {
	b, _ := newTestBridge(t)

	b.route(context.Background(), topicTimedMessage, []byte(`{"message":"X"}`))
	timers := b.sched.List()
	if len(timers) != 1 {
		t.Fatalf("active timers = %d, want 1", len(timers))
	}
	if timers[0].Duration != defaultTimedDuration {
		t.Fatalf("duration = %v, want %v", timers[0].Duration, defaultTimedDuration)
	}
}

func TestTimedMessageRejectsBadRequests(t *testing.T) {
	b, _ := newTestBridge(t)
	ctx := context.Background()

	if err := b.handleTimedMessage(ctx, []byte(`not json`)); err == nil {
		t.Fatal("malformed request accepted")
	}
	if err := b.handleTimedMessage(ctx, []byte(`{"duration_seconds":5}`)); err == nil {
		t.Fatal("request without message accepted")
	}
	if err := b.handleTimedMessage(ctx, []byte(`{"message":"X","duration_seconds":-1}`)); err == nil {
		t.Fatal("negative duration accepted")
	}
	if n := b.sched.ActiveCount(); n != 0 {
		t.Fatalf("active timers = %d, want 0", n)
	}
}

func TestHandleCancelUnknownTimer(t *testing.T) {
	b, _ := newTestBridge(t)
	if err := b.handleCancelTimer("timer_404"); err != nil {
		t.Fatalf("cancel of unknown timer errored: %v", err)
	}
}
