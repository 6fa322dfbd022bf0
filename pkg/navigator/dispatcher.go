package navigator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/teslashibe/go-eyeguide/internal/metrics"
	"github.com/teslashibe/go-eyeguide/pkg/cloud"
	"github.com/teslashibe/go-eyeguide/pkg/detection"
	"github.com/teslashibe/go-eyeguide/pkg/framebuf"
	"github.com/teslashibe/go-eyeguide/pkg/navigation"
)

// Frames holds the recent camera frames.
type Frames interface {
	Latest() (framebuf.Frame, bool)
}

// CloudDetector asks the remote service to describe a frame.
type CloudDetector interface {
	Detect(ctx context.Context, jpeg []byte) (string, error)
}

// Announcer speaks a message to the user.
type Announcer interface {
	Say(text string) error
}

// DefaultMaxFrameAge is how old the newest frame may be before the camera
// counts as lost.
const DefaultMaxFrameAge = 2 * time.Second

// Dispatcher answers detection requests with the newest frame.
type Dispatcher struct {
	state     *State
	frames    Frames
	out       Announcer
	phrases   navigation.Phrasebook
	estimator navigation.Estimator
	local     detection.Detector
	cloud     CloudDetector
	maxAge    time.Duration
	logger    *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLocal sets the on-device detector. Without one, local requests are
// answered with the phrasebook's Unavailable text.
func WithLocal(d detection.Detector) DispatcherOption {
	return func(x *Dispatcher) { x.local = d }
}

// WithCloud sets the remote detection client.
func WithCloud(c CloudDetector) DispatcherOption {
	return func(x *Dispatcher) { x.cloud = c }
}

// WithEstimator replaces the default distance estimator.
func WithEstimator(e navigation.Estimator) DispatcherOption {
	return func(x *Dispatcher) { x.estimator = e }
}

// WithMaxFrameAge sets how stale the newest frame may be. Older frames are
// answered like an empty buffer. Zero accepts frames of any age.
func WithMaxFrameAge(age time.Duration) DispatcherOption {
	return func(x *Dispatcher) { x.maxAge = age }
}

// WithLogger sets the dispatcher's logger.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(x *Dispatcher) { x.logger = l }
}

// NewDispatcher creates a dispatcher announcing through out.
func NewDispatcher(state *State, frames Frames, out Announcer, phrases navigation.Phrasebook, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		state:     state,
		frames:    frames,
		out:       out,
		phrases:   phrases,
		estimator: navigation.DefaultEstimator(),
		maxAge:    DefaultMaxFrameAge,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "dispatcher")
	return d
}

// Handle runs one detection on the newest frame and announces the result,
// which it also returns.
func (d *Dispatcher) Handle(ctx context.Context) string {
	frame, ok := d.frames.Latest()
	if ok && d.maxAge > 0 && frame.Age() > d.maxAge {
		d.logger.Warn("newest frame is stale", "seq", frame.Seq, "age", frame.Age())
		ok = false
	}
	if !ok {
		d.say(d.phrases.NoSignal)
		return d.phrases.NoSignal
	}

	mode := d.state.Mode()
	start := time.Now()
	var msg, outcome string
	if mode == ModeCloud {
		d.say(d.phrases.Consulting)
		msg, outcome = d.viaCloud(ctx, frame.Data)
	} else {
		msg, outcome = d.viaLocal(ctx, frame.Data)
	}
	metrics.Detections.WithLabelValues(mode.String(), outcome).Observe(time.Since(start).Seconds())

	d.logger.Info("detection", "mode", mode, "outcome", outcome, "seq", frame.Seq, "age", frame.Age(), "message", msg)
	d.say(msg)
	return msg
}

func (d *Dispatcher) viaLocal(ctx context.Context, jpeg []byte) (string, string) {
	if d.local == nil {
		return d.phrases.Unavailable, "unavailable"
	}

	res, err := d.local.Detect(ctx, jpeg)
	if err != nil {
		if errors.Is(err, detection.ErrUnavailable) {
			return d.phrases.Unavailable, "unavailable"
		}
		d.logger.Error("local detection failed", "error", err)
		return d.phrases.Unavailable, "error"
	}

	best, ok := detection.Closest(res.Detections)
	if !ok {
		return d.phrases.PathClear, "clear"
	}
	h := float64(best.Height())
	if !d.estimator.Usable(h) {
		return d.phrases.PathClear, "clear"
	}
	dir := navigation.Classify(best.CenterX(), float64(res.Size.X))
	return d.phrases.Navigation(best.Label, d.estimator.StepCount(h), dir), "obstacle"
}

func (d *Dispatcher) viaCloud(ctx context.Context, jpeg []byte) (string, string) {
	if d.cloud == nil {
		return d.phrases.CloudConnection, "unavailable"
	}

	msg, err := d.cloud.Detect(ctx, jpeg)
	if err == nil {
		return d.phrases.Enrich(msg), "ok"
	}

	var apiErr *cloud.APIError
	switch {
	case errors.As(err, &apiErr):
		d.logger.Warn("cloud detection rejected", "status", apiErr.StatusCode, "message", apiErr.Message)
		return d.phrases.CloudError(apiErr.StatusCode), "rejected"
	case errors.Is(err, cloud.ErrBadResponse):
		return d.phrases.CloudBadReply, "bad_reply"
	default:
		d.logger.Warn("cloud unreachable", "error", err)
		return d.phrases.CloudConnection, "error"
	}
}

func (d *Dispatcher) say(text string) {
	if err := d.out.Say(text); err != nil {
		d.logger.Warn("feedback dropped", "text", text, "error", err)
	}
}
