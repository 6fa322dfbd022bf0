package client

import (
	"context"
	"image"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-eyeguide/pkg/command"
	"github.com/teslashibe/go-eyeguide/pkg/detection"
	"github.com/teslashibe/go-eyeguide/pkg/feedback"
	"github.com/teslashibe/go-eyeguide/pkg/framebuf"
	"github.com/teslashibe/go-eyeguide/pkg/navigation"
	"github.com/teslashibe/go-eyeguide/pkg/navigator"
	"github.com/teslashibe/go-eyeguide/pkg/speech"
	"github.com/teslashibe/go-eyeguide/pkg/tts"
)

type silentPlayer struct{}

func (silentPlayer) PlayAudio(ctx context.Context, res *tts.AudioResult) error { return nil }
func (silentPlayer) PlayFile(ctx context.Context, path string) error          { return nil }

type fakeDisplay struct {
	mu     sync.Mutex
	shown  int
	closed bool
}

func (d *fakeDisplay) Show(jpeg []byte, mode navigator.Mode) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shown++
	return false
}

func (d *fakeDisplay) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func newApp(t *testing.T, speaker tts.Provider) *App {
	t.Helper()
	phrases := navigation.PortugueseBR()
	state := navigator.NewState(navigator.ModeLocal)

	frames := framebuf.NewRing(10)
	frames.Push([]byte{0xFF, 0xD8, 0xFF, 0xD9})

	queue := feedback.NewQueue(feedback.DefaultConfig(), speaker, silentPlayer{}, phrases, nil)

	cfg := command.DefaultConfig()
	cfg.Cooldown = 0
	cfg.ExitDelay = 0
	cfg.AudioDir = ""

	det := detection.NewMock(image.Pt(640, 480), detection.Detection{Label: "person", Box: image.Rect(0, 0, 100, 480)})
	return &App{
		State:      state,
		Frames:     frames,
		Commands:   command.NewChannel(cfg, state, phrases, queue, nil),
		Dispatcher: navigator.NewDispatcher(state, frames, queue, phrases, navigator.WithLocal(det)),
		Feedback:   queue,
	}
}

func runApp(t *testing.T, app *App) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- app.Run(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestApp_VoiceSession(t *testing.T) {
	speaker := tts.NewMock()
	app := newApp(t, speaker)
	app.Listener = speech.NewMockListener(nil, nil)
	app.Recognizer = speech.NewMockRecognizer(
		speech.MockResult{Text: "olhe para frente"},
		speech.MockResult{Text: "sair"},
	)

	runApp(t, app)

	got := speaker.Texts()
	sort.Strings(got)
	want := []string{
		"Sistema encerrando",
		"Sistema iniciado",
		"pessoa a 5 passos, à sua esquerda. Vire levemente à direita.",
	}
	if len(got) != len(want) {
		t.Fatalf("spoke %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("spoke %q, want %q", got, want)
			break
		}
	}
	if app.State.Running() {
		t.Error("state should be stopped")
	}
}

func TestApp_DisplayQuit(t *testing.T) {
	app := newApp(t, tts.NewMock())
	display := &fakeDisplay{}
	app.Display = display

	runApp(t, app)

	if display.shown != 1 || !display.closed {
		t.Errorf("shown=%d closed=%v", display.shown, display.closed)
	}
	if !app.State.Active() {
		t.Error("without voice input the system starts active")
	}
}

func TestApp_ContextCancel(t *testing.T) {
	app := newApp(t, tts.NewMock())
	app.Listener = speech.NewMockListener()
	app.Recognizer = speech.NewMockRecognizer()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("app did not stop")
	}
}
