package detection

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
)

func TestDetection_Geometry(t *testing.T) {
	d := Detection{Box: image.Rect(100, 40, 160, 340)}
	if d.Height() != 300 {
		t.Errorf("height: got %d, want 300", d.Height())
	}
	if d.CenterX() != 130 {
		t.Errorf("center x: got %.1f, want 130", d.CenterX())
	}
}

func TestClosest(t *testing.T) {
	tests := []struct {
		name   string
		dets   []Detection
		want   string
		wantOK bool
	}{
		{name: "none", dets: nil, wantOK: false},
		{
			name:   "single",
			dets:   []Detection{{Label: "chair", Box: image.Rect(0, 0, 10, 10)}},
			want:   "chair",
			wantOK: true,
		},
		{
			name: "tallest wins",
			dets: []Detection{
				{Label: "bottle", Box: image.Rect(0, 0, 50, 40)},
				{Label: "person", Box: image.Rect(0, 0, 20, 300)},
				{Label: "chair", Box: image.Rect(0, 0, 90, 120)},
			},
			want:   "person",
			wantOK: true,
		},
		{
			name: "tie keeps first",
			dets: []Detection{
				{Label: "first", Box: image.Rect(0, 0, 10, 200)},
				{Label: "second", Box: image.Rect(0, 100, 10, 300)},
			},
			want:   "first",
			wantOK: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Closest(tc.dets)
			if ok != tc.wantOK {
				t.Fatalf("ok: got %v, want %v", ok, tc.wantOK)
			}
			if got.Label != tc.want {
				t.Errorf("got %q, want %q", got.Label, tc.want)
			}
		})
	}
}

func TestDecodeV8(t *testing.T) {
	// two boxes, two classes: attrs = 4 + 2
	const n = 2
	data := []float32{
		320, 100, // cx
		320, 100, // cy
		64, 10, // w
		128, 10, // h
		0.1, 0.2, // class 0 scores
		0.9, 0.3, // class 1 scores
	}
	cands := decodeV8(data, 6, n, 0.5, 1, 0.75)
	if len(cands) != 1 {
		t.Fatalf("got %d candidates, want 1", len(cands))
	}
	c := cands[0]
	if c.class != 1 || c.score != 0.9 {
		t.Errorf("class %d score %.2f", c.class, c.score)
	}
	want := image.Rect(288, 192, 352, 288)
	if c.box != want {
		t.Errorf("box: got %v, want %v", c.box, want)
	}
}

func TestDecodeDarknet(t *testing.T) {
	// rows of cx, cy, w, h, obj, 3 class scores
	data := []float32{
		0.5, 0.5, 0.25, 0.5, 0.9, 0.1, 0.8, 0.0,
		0.1, 0.1, 0.1, 0.1, 0.9, 0.5, 0.0, 0.0, // exactly at threshold: dropped
	}
	cands := decodeDarknet(data, 2, 8, 0.5, image.Pt(640, 480))
	if len(cands) != 1 {
		t.Fatalf("got %d candidates, want 1", len(cands))
	}
	want := image.Rect(240, 120, 400, 360)
	if cands[0].box != want || cands[0].class != 1 {
		t.Errorf("got %v class %d, want %v class 1", cands[0].box, cands[0].class, want)
	}
}

func TestLoadLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coco.names")
	if err := os.WriteFile(path, []byte("person\n\nchair\n  bottle  \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	labels, err := LoadLabels(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(labels) != 3 || labels[2] != "bottle" {
		t.Errorf("got %q", labels)
	}
	if labelFor(labels, 7) != "class 7" {
		t.Errorf("out of range label: got %q", labelFor(labels, 7))
	}
}

func TestNewYOLO_MissingModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelPath = "/nonexistent/path/model.onnx"
	if _, err := NewYOLO(cfg); err == nil {
		t.Error("expected error for missing model")
	}
}

func TestMock(t *testing.T) {
	m := NewMock(image.Pt(640, 480), Detection{Label: "person"})
	res, err := m.Detect(context.Background(), []byte{1})
	if err != nil || len(res.Detections) != 1 || res.Size.X != 640 {
		t.Fatalf("got %+v, %v", res, err)
	}

	boom := errors.New("boom")
	m.SetError(boom)
	if _, err := m.Detect(context.Background(), []byte{2}); !errors.Is(err, boom) {
		t.Errorf("got %v", err)
	}
	if len(m.Calls()) != 2 {
		t.Errorf("calls: got %d", len(m.Calls()))
	}
	m.Close()
	if !m.Closed() {
		t.Error("expected closed")
	}
}
