package command

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-eyeguide/pkg/navigation"
	"github.com/teslashibe/go-eyeguide/pkg/navigator"
	"github.com/teslashibe/go-eyeguide/pkg/speech"
)

type announcer struct {
	mu     sync.Mutex
	events []string
}

func (a *announcer) Say(text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, "say:"+text)
	return nil
}

func (a *announcer) Play(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, "play:"+filepath.Base(path))
	return nil
}

func (a *announcer) Events() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.events...)
}

// fakeClock advances by step on every reading.
type fakeClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
	return c.t
}

func immediately(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

func newTestChannel(t *testing.T, audioDir string, step time.Duration) (*Channel, *navigator.State, *announcer) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.AudioDir = audioDir
	state := navigator.NewState(navigator.ModeLocal)
	out := &announcer{}
	c := NewChannel(cfg, state, navigation.PortugueseBR(), out, nil)
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0), step: step}
	c.now = clock.Now
	c.after = immediately
	return c, state, out
}

func nextCommand(t *testing.T, c *Channel) Command {
	t.Helper()
	select {
	case cmd := <-c.Commands():
		return cmd
	case <-time.After(2 * time.Second):
		t.Fatal("no command queued")
		return Command{}
	}
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name      string
		active    bool
		utterance string
		want      Command
		ok        bool
		said      []string
	}{
		{"activate", false, "ativar", Command{Kind: Activate}, true, []string{"say:Sistema iniciado"}},
		{"start synonym", false, "Iniciar o sistema", Command{Kind: Activate}, true, []string{"say:Sistema iniciado"}},
		{"cloud mode", true, "modo nuvem", Command{Kind: SetMode, Mode: navigator.ModeCloud}, true, []string{"say:Ativando modo nuvem"}},
		{"aws alias", true, "MODO AWS por favor", Command{Kind: SetMode, Mode: navigator.ModeCloud}, true, []string{"say:Ativando modo nuvem"}},
		{"local mode", true, "modo pc", Command{Kind: SetMode, Mode: navigator.ModeLocal}, true, []string{"say:Ativando modo local"}},
		{"detect when active", true, "o que tem na frente", Command{Kind: Detect}, true, nil},
		{"detect when inactive", false, "o que tem na frente", Command{}, false, nil},
		{"activation wins over mode", false, "ativar modo nuvem", Command{Kind: Activate}, true, []string{"say:Sistema iniciado"}},
		{"unrelated", true, "bom dia", Command{}, false, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, state, out := newTestChannel(t, "", 5*time.Second)
			state.SetActive(tc.active)

			cmd, ok := c.Handle(tc.utterance)
			if ok != tc.ok || cmd != tc.want {
				t.Fatalf("got (%v, %v), want (%v, %v)", cmd, ok, tc.want, tc.ok)
			}
			if got := out.Events(); !reflect.DeepEqual(got, tc.said) {
				t.Errorf("announced %q, want %q", got, tc.said)
			}
			if tc.want.Kind == SetMode && state.Mode() != tc.want.Mode {
				t.Errorf("mode %v, want %v", state.Mode(), tc.want.Mode)
			}
			if tc.want.Kind == Detect && ok {
				if got := nextCommand(t, c); got.Kind != Detect {
					t.Errorf("queued %v", got)
				}
			}
			if tc.want.Kind == Activate && !state.Active() {
				t.Error("system should be active")
			}
		})
	}
}

func TestHandle_Exit(t *testing.T) {
	c, state, out := newTestChannel(t, "", 5*time.Second)
	state.SetActive(true)

	cmd, ok := c.Handle("sair")
	if !ok || cmd.Kind != Exit {
		t.Fatalf("got (%v, %v)", cmd, ok)
	}
	if state.Active() {
		t.Error("exit should deactivate")
	}
	if got := out.Events(); !reflect.DeepEqual(got, []string{"say:Sistema encerrando"}) {
		t.Errorf("announced %q", got)
	}
	if got := nextCommand(t, c); got.Kind != Exit {
		t.Errorf("queued %v, want exit", got)
	}
}

func TestHandle_ExitWaitsForDelay(t *testing.T) {
	c, _, _ := newTestChannel(t, "", 5*time.Second)
	release := make(chan time.Time)
	c.after = func(d time.Duration) <-chan time.Time {
		if d != 3*time.Second {
			t.Errorf("exit delay %v", d)
		}
		return release
	}

	c.Handle("encerrar")
	select {
	case cmd := <-c.Commands():
		t.Fatalf("%v queued before the delay", cmd)
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	if got := nextCommand(t, c); got.Kind != Exit {
		t.Errorf("queued %v", got)
	}
}

func TestHandle_Cooldown(t *testing.T) {
	tests := []struct {
		name string
		step time.Duration
		ok   bool
	}{
		{"within cooldown", time.Second, false},
		{"at cooldown", 2 * time.Second, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, state, _ := newTestChannel(t, "", tc.step)
			state.SetActive(true)

			// an unrelated utterance still starts the cooldown
			if _, ok := c.Handle("bom dia"); ok {
				t.Fatal("unrelated utterance handled")
			}
			if _, ok := c.Handle("modo nuvem"); ok != tc.ok {
				t.Errorf("got %v, want %v", ok, tc.ok)
			}
		})
	}
}

func TestHandle_PromptFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, PromptStart), []byte("ID3"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, _, out := newTestChannel(t, dir, 5*time.Second)

	c.Handle("ativar")
	c.Handle("sair")
	want := []string{"play:inicio.mp3", "say:Sistema encerrando"}
	if got := out.Events(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRun(t *testing.T) {
	c, state, out := newTestChannel(t, "", 5*time.Second)
	listener := speech.NewMockListener(nil, speech.ErrWaitTimeout, nil, nil)
	recognizer := speech.NewMockRecognizer(
		speech.MockResult{Text: "O que tem na frente"},
		speech.MockResult{Err: speech.ErrUnintelligible},
		speech.MockResult{Text: "sair"},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Run(ctx, listener, recognizer); err != nil {
		t.Fatal(err)
	}
	if ctx.Err() != nil {
		t.Fatal("Run should end on the exit phrase")
	}

	if got := nextCommand(t, c); got.Kind != Detect {
		t.Errorf("first command %v, want detect", got)
	}
	if got := nextCommand(t, c); got.Kind != Exit {
		t.Errorf("second command %v, want exit", got)
	}
	want := []string{"say:Sistema iniciado", "say:Sistema encerrando"}
	if got := out.Events(); !reflect.DeepEqual(got, want) {
		t.Errorf("announced %q, want %q", got, want)
	}
	if state.Active() {
		t.Error("exit should leave the system inactive")
	}
	if got := recognizer.Languages(); len(got) != 3 || got[0] != "pt-BR" {
		t.Errorf("languages %v", got)
	}
	if listener.Calls() != 4 {
		t.Errorf("listened %d times, want 4", listener.Calls())
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	c, _, _ := newTestChannel(t, "", 5*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, speech.NewMockListener(), speech.NewMockRecognizer()) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
