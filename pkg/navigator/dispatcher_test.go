package navigator

import (
	"context"
	"errors"
	"image"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-eyeguide/pkg/cloud"
	"github.com/teslashibe/go-eyeguide/pkg/detection"
	"github.com/teslashibe/go-eyeguide/pkg/framebuf"
	"github.com/teslashibe/go-eyeguide/pkg/navigation"
)

var jpeg = []byte{0xFF, 0xD8, 0x01, 0xFF, 0xD9}

type recorder struct {
	mu    sync.Mutex
	texts []string
}

func (r *recorder) Say(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return nil
}

func (r *recorder) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

type fakeCloud struct {
	msg   string
	err   error
	calls int
}

func (f *fakeCloud) Detect(ctx context.Context, data []byte) (string, error) {
	f.calls++
	return f.msg, f.err
}

func box(label string, x, w, h int) detection.Detection {
	return detection.Detection{Label: label, Box: image.Rect(x, 0, x+w, h), Confidence: 0.9}
}

func withFrame() *framebuf.Ring {
	r := framebuf.NewRing(10)
	r.Push([]byte{0xFF, 0xD8, 0x00, 0xFF, 0xD9})
	r.Push(jpeg)
	return r
}

func TestDispatcher_Local(t *testing.T) {
	size := image.Pt(640, 480)
	tests := []struct {
		name     string
		detector detection.Detector
		want     string
	}{
		{
			name:     "tallest box wins",
			detector: detection.NewMock(size, box("chair", 300, 50, 96), box("person", 0, 100, 480)),
			want:     "pessoa a 5 passos, à sua esquerda. Vire levemente à direita.",
		},
		{
			name:     "ties keep the first",
			detector: detection.NewMock(size, box("bottle", 600, 20, 96), box("cup", 0, 20, 96)),
			want:     "garrafa a 28 passos, à sua direita. Vire levemente à esquerda.",
		},
		{
			name:     "center",
			detector: detection.NewMock(size, box("dog", 280, 80, 240)),
			want:     "cachorro a 11 passos, na sua frente. Desvie para a direita ou esquerda.",
		},
		{
			name:     "nothing found",
			detector: detection.NewMock(size),
			want:     "Caminho livre.",
		},
		{
			name:     "flat box is unusable",
			detector: detection.NewMock(size, box("person", 0, 100, 0)),
			want:     "Caminho livre.",
		},
		{
			name:     "no detector",
			detector: nil,
			want:     "Detector local indisponível.",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := &recorder{}
			var opts []DispatcherOption
			if tc.detector != nil {
				opts = append(opts, WithLocal(tc.detector))
			}
			d := NewDispatcher(NewState(ModeLocal), withFrame(), out, navigation.PortugueseBR(), opts...)

			if got := d.Handle(context.Background()); got != tc.want {
				t.Errorf("got %q\nwant %q", got, tc.want)
			}
			if got := out.Texts(); !reflect.DeepEqual(got, []string{tc.want}) {
				t.Errorf("announced %q", got)
			}
		})
	}
}

func TestDispatcher_LocalUsesNewestFrame(t *testing.T) {
	det := detection.NewMock(image.Pt(640, 480))
	d := NewDispatcher(NewState(ModeLocal), withFrame(), &recorder{}, navigation.PortugueseBR(), WithLocal(det))
	d.Handle(context.Background())

	calls := det.Calls()
	if len(calls) != 1 || !reflect.DeepEqual(calls[0], jpeg) {
		t.Errorf("detector got %v", calls)
	}
}

func TestDispatcher_LocalErrors(t *testing.T) {
	for _, err := range []error{detection.ErrUnavailable, errors.New("forward failed")} {
		det := detection.NewMock(image.Pt(640, 480))
		det.SetError(err)
		d := NewDispatcher(NewState(ModeLocal), withFrame(), &recorder{}, navigation.PortugueseBR(), WithLocal(det))
		if got := d.Handle(context.Background()); got != "Detector local indisponível." {
			t.Errorf("%v: got %q", err, got)
		}
	}
}

func TestDispatcher_NoSignal(t *testing.T) {
	for _, mode := range []Mode{ModeLocal, ModeCloud} {
		out := &recorder{}
		fc := &fakeCloud{msg: "x"}
		d := NewDispatcher(NewState(mode), framebuf.NewRing(10), out, navigation.PortugueseBR(), WithCloud(fc))

		d.Handle(context.Background())
		if got := out.Texts(); !reflect.DeepEqual(got, []string{"Câmera sem sinal"}) {
			t.Errorf("%s: got %q", mode, got)
		}
		if fc.calls != 0 {
			t.Errorf("%s: cloud should not be called without a frame", mode)
		}
	}
}

type fixedFrames struct {
	frame framebuf.Frame
}

func (f fixedFrames) Latest() (framebuf.Frame, bool) { return f.frame, true }

func TestDispatcher_StaleFrame(t *testing.T) {
	tests := []struct {
		name   string
		mode   Mode
		age    time.Duration
		maxAge time.Duration
		stale  bool
	}{
		{name: "local old frame", mode: ModeLocal, age: 30 * time.Second, maxAge: DefaultMaxFrameAge, stale: true},
		{name: "cloud old frame", mode: ModeCloud, age: 30 * time.Second, maxAge: DefaultMaxFrameAge, stale: true},
		{name: "fresh frame", mode: ModeLocal, age: 0, maxAge: DefaultMaxFrameAge, stale: false},
		{name: "age check disabled", mode: ModeLocal, age: time.Hour, maxAge: 0, stale: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			frames := fixedFrames{framebuf.Frame{Data: jpeg, Seq: 7, CapturedAt: time.Now().Add(-tc.age)}}
			det := detection.NewMock(image.Pt(640, 480))
			fc := &fakeCloud{msg: "pessoa a 3 passos, à sua frente"}
			out := &recorder{}
			d := NewDispatcher(NewState(tc.mode), frames, out, navigation.PortugueseBR(),
				WithLocal(det), WithCloud(fc), WithMaxFrameAge(tc.maxAge))

			d.Handle(context.Background())

			detections := len(det.Calls()) + fc.calls
			if tc.stale {
				if got := out.Texts(); !reflect.DeepEqual(got, []string{"Câmera sem sinal"}) {
					t.Errorf("announced %q", got)
				}
				if detections != 0 {
					t.Errorf("stale frame reached a detector %d times", detections)
				}
				return
			}
			if detections != 1 {
				t.Errorf("got %d detections, want 1", detections)
			}
		})
	}
}

func TestDispatcher_Cloud(t *testing.T) {
	tests := []struct {
		name string
		fc   *fakeCloud
		want string
	}{
		{
			name: "reply is enriched",
			fc:   &fakeCloud{msg: "pessoa a 4 passos, direção esquerda."},
			want: "pessoa a 4 passos, direção esquerda. Vire levemente à direita.",
		},
		{
			name: "reply already has an instruction",
			fc:   &fakeCloud{msg: "Caminho livre, nenhum obstáculo detectado."},
			want: "Caminho livre, nenhum obstáculo detectado.",
		},
		{
			name: "status error",
			fc:   &fakeCloud{err: &cloud.APIError{StatusCode: 503, Message: "no detector"}},
			want: "Erro nuvem: 503",
		},
		{
			name: "bad reply",
			fc:   &fakeCloud{err: cloud.ErrBadResponse},
			want: "Erro na resposta",
		},
		{
			name: "connection error",
			fc:   &fakeCloud{err: errors.New("dial tcp: connection refused")},
			want: "Erro de conexão com a nuvem.",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := &recorder{}
			local := detection.NewMock(image.Pt(640, 480), box("person", 0, 10, 480))
			d := NewDispatcher(NewState(ModeCloud), withFrame(), out, navigation.PortugueseBR(),
				WithCloud(tc.fc), WithLocal(local))

			d.Handle(context.Background())
			want := []string{"Consultando nuvem...", tc.want}
			if got := out.Texts(); !reflect.DeepEqual(got, want) {
				t.Errorf("got %q\nwant %q", got, want)
			}
			if len(local.Calls()) != 0 {
				t.Error("local detection must not run in cloud mode")
			}
			if tc.fc.calls != 1 {
				t.Errorf("cloud called %d times, want 1", tc.fc.calls)
			}
		})
	}
}

func TestState(t *testing.T) {
	s := NewState(ModeLocal)
	if !s.Running() || s.Active() || s.Mode() != ModeLocal {
		t.Fatalf("initial state: running=%v active=%v mode=%v", s.Running(), s.Active(), s.Mode())
	}
	s.SetMode(ModeCloud)
	s.SetActive(true)
	s.Stop()
	if s.Running() || !s.Active() || s.Mode() != ModeCloud {
		t.Errorf("after updates: running=%v active=%v mode=%v", s.Running(), s.Active(), s.Mode())
	}
	if OverlayText(ModeCloud) != "MODO: AWS (NUVEM)" || OverlayText(ModeLocal) != "MODO: LOCAL (PC)" {
		t.Error("overlay text")
	}
}
