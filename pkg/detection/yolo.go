package detection

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-eyeguide/pkg/debug"
)

// Config holds YOLO detector configuration
type Config struct {
	// ModelPath is a YOLOv8 .onnx export, or Darknet .weights when ConfigPath is set.
	ModelPath string
	// ConfigPath is the Darknet .cfg for YOLOv3-style models.
	ConfigPath string
	// LabelsPath optionally overrides the COCO class names.
	LabelsPath string

	ConfidenceThresh float32
	NMSThresh        float32
	InputSize        int
}

// DefaultConfig returns the thresholds the navigation messages were tuned with.
func DefaultConfig() Config {
	return Config{
		ModelPath:        "models/yolov8s.onnx",
		ConfidenceThresh: 0.5,
		NMSThresh:        0.3,
		InputSize:        640,
	}
}

// candidate is a box above the confidence threshold, before NMS.
type candidate struct {
	box   image.Rectangle
	score float32
	class int
}

// YOLO runs a YOLO network through OpenCV's DNN module.
type YOLO struct {
	net      gocv.Net
	config   Config
	labels   []string
	darknet  bool
	outNames []string
	mu       sync.Mutex
}

// NewYOLO loads the model described by cfg.
func NewYOLO(cfg Config) (*YOLO, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}
	if cfg.InputSize <= 0 {
		cfg.InputSize = DefaultConfig().InputSize
	}

	labels := COCOClasses
	if cfg.LabelsPath != "" {
		l, err := LoadLabels(cfg.LabelsPath)
		if err != nil {
			return nil, fmt.Errorf("load labels: %w", err)
		}
		labels = l
	}

	var net gocv.Net
	darknet := cfg.ConfigPath != ""
	if darknet {
		net = gocv.ReadNet(cfg.ModelPath, cfg.ConfigPath)
	} else {
		net = gocv.ReadNetFromONNX(cfg.ModelPath)
	}
	if net.Empty() {
		return nil, fmt.Errorf("failed to load YOLO model from %s", cfg.ModelPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	d := &YOLO{net: net, config: cfg, labels: labels, darknet: darknet}
	if darknet {
		names := net.GetLayerNames()
		for _, id := range net.GetUnconnectedOutLayers() {
			d.outNames = append(d.outNames, names[id-1])
		}
	}
	return d, nil
}

// Detect finds objects in the JPEG image. Inference itself cannot be
// interrupted; ctx is only checked before it starts.
func (d *YOLO) Detect(ctx context.Context, jpeg []byte) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	defer img.Close()
	if img.Empty() {
		return Result{}, ErrInvalidImage
	}

	size := image.Pt(img.Cols(), img.Rows())
	in := image.Pt(d.config.InputSize, d.config.InputSize)

	blob := gocv.BlobFromImage(img, 1.0/255.0, in, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()
	d.net.SetInput(blob, "")

	var cands []candidate
	if d.darknet {
		cands, err = d.forwardDarknet(size)
	} else {
		cands, err = d.forwardV8(size)
	}
	if err != nil {
		return Result{}, err
	}

	res := Result{Size: size, Detections: d.suppress(cands)}
	if len(res.Detections) > 0 {
		debug.Log("yolo detections", "count", len(res.Detections))
	}
	return res, nil
}

func (d *YOLO) forwardV8(size image.Point) ([]candidate, error) {
	output := d.net.Forward("")
	defer output.Close()

	// [1, 4+classes, boxes]
	dims := output.Size()
	if len(dims) != 3 {
		return nil, fmt.Errorf("unexpected YOLOv8 output shape %v", dims)
	}
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, err
	}
	sx := float32(size.X) / float32(d.config.InputSize)
	sy := float32(size.Y) / float32(d.config.InputSize)
	return decodeV8(data, dims[1], dims[2], d.config.ConfidenceThresh, sx, sy), nil
}

func (d *YOLO) forwardDarknet(size image.Point) ([]candidate, error) {
	outs := d.net.ForwardLayers(d.outNames)
	defer func() {
		for _, m := range outs {
			m.Close()
		}
	}()

	var cands []candidate
	for _, out := range outs {
		data, err := out.DataPtrFloat32()
		if err != nil {
			return nil, err
		}
		cands = append(cands, decodeDarknet(data, out.Rows(), out.Cols(), d.config.ConfidenceThresh, size)...)
	}
	return cands, nil
}

func (d *YOLO) suppress(cands []candidate) []Detection {
	if len(cands) == 0 {
		return nil
	}
	boxes := make([]image.Rectangle, len(cands))
	scores := make([]float32, len(cands))
	for i, c := range cands {
		boxes[i] = c.box
		scores[i] = c.score
	}

	indices := gocv.NMSBoxes(boxes, scores, d.config.ConfidenceThresh, d.config.NMSThresh)
	dets := make([]Detection, 0, len(indices))
	for _, idx := range indices {
		c := cands[idx]
		dets = append(dets, Detection{
			Label:      labelFor(d.labels, c.class),
			ClassID:    c.class,
			Box:        c.box,
			Confidence: float64(c.score),
		})
	}
	return dets
}

// decodeV8 reads a channel-major YOLOv8 tensor: for box i, attribute a is at
// data[a*n+i]; attributes are cx, cy, w, h then one score per class, in
// input-image pixels. sx, sy scale back to the frame.
func decodeV8(data []float32, attrs, n int, thresh, sx, sy float32) []candidate {
	var out []candidate
	for i := 0; i < n; i++ {
		best, class := float32(0), 0
		for a := 4; a < attrs; a++ {
			if s := data[a*n+i]; s > best {
				best, class = s, a-4
			}
		}
		if best < thresh {
			continue
		}
		cx, cy := data[i], data[n+i]
		w, h := data[2*n+i], data[3*n+i]
		out = append(out, candidate{
			box: image.Rect(
				int((cx-w/2)*sx), int((cy-h/2)*sy),
				int((cx+w/2)*sx), int((cy+h/2)*sy),
			),
			score: best,
			class: class,
		})
	}
	return out
}

// decodeDarknet reads a row-major YOLOv3 output: each row is cx, cy, w, h,
// objectness then class scores, all normalized to the frame.
func decodeDarknet(data []float32, rows, cols int, thresh float32, size image.Point) []candidate {
	var out []candidate
	fw, fh := float32(size.X), float32(size.Y)
	for r := 0; r < rows; r++ {
		row := data[r*cols : (r+1)*cols]
		best, class := float32(0), 0
		for c := 5; c < cols; c++ {
			if row[c] > best {
				best, class = row[c], c-5
			}
		}
		if best <= thresh {
			continue
		}
		w, h := int(row[2]*fw), int(row[3]*fh)
		x := int(row[0]*fw) - w/2
		y := int(row[1]*fh) - h/2
		out = append(out, candidate{
			box:   image.Rect(x, y, x+w, y+h),
			score: best,
			class: class,
		})
	}
	return out
}

// Close releases the detector resources
func (d *YOLO) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

var _ Detector = (*YOLO)(nil)
