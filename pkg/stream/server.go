// Package stream serves the camera's latest frame to any number of viewers,
// as an endless multipart/x-mixed-replace response or over a websocket.
package stream

import (
	"bufio"
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-eyeguide/internal/log"
	"github.com/teslashibe/go-eyeguide/internal/metrics"
	"github.com/teslashibe/go-eyeguide/pkg/debug"
	"github.com/teslashibe/go-eyeguide/pkg/framebuf"
	"github.com/teslashibe/go-eyeguide/pkg/hub"
	"github.com/teslashibe/go-eyeguide/pkg/mjpeg"
)

const shutdownTimeout = 5 * time.Second

// Health is the /healthz payload.
type Health struct {
	Status     string `json:"status"`
	HasFrame   bool   `json:"has_frame"`
	Seq        uint64 `json:"seq"`
	FrameAgeMS int64  `json:"frame_age_ms"`
	Capturing  bool   `json:"capturing"`
	MJPEG      int64  `json:"mjpeg_clients"`
	Websocket  int    `json:"ws_clients"`
}

// Status is pushed to websocket viewers as a JSON text message when the
// capture process starts or stops.
type Status struct {
	Type      string `json:"type"`
	Capturing bool   `json:"capturing"`
	Binary    string `json:"binary,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Server is the frame distribution server.
type Server struct {
	app    *fiber.App
	addr   string
	latest *framebuf.Latest
	video  *hub.Hub
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mjpegClients atomic.Int64
	capturing    atomic.Bool
}

// NewServer creates a server publishing frames from latest.
func NewServer(addr string, latest *framebuf.Latest, logger *slog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		addr:   addr,
		latest: latest,
		logger: log.Or(logger, "stream"),
		ctx:    ctx,
		cancel: cancel,
	}
	s.video = hub.New("video", s.logger)

	app := fiber.New(fiber.Config{
		AppName:               "eyeguide camera",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	app.Get("/", s.handleMJPEG)
	app.Get("/video_feed", s.handleMJPEG)
	app.Get("/healthz", s.handleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/video", websocket.New(s.handleVideoWS))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	go s.video.Run(s.ctx)
	go s.broadcastFrames()

	go func() {
		select {
		case <-ctx.Done():
			if err := s.Shutdown(); err != nil {
				s.logger.Warn("shutdown", "error", err)
			}
		case <-s.ctx.Done():
		}
	}()

	s.logger.Info("serving frames", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// Shutdown ends every open stream and stops the listener.
func (s *Server) Shutdown() error {
	s.cancel()
	return s.app.ShutdownWithTimeout(shutdownTimeout)
}

// SetCapturing records the capture process state and tells websocket viewers.
func (s *Server) SetCapturing(capturing bool, binary string, err error) {
	s.capturing.Store(capturing)
	st := Status{Type: "status", Capturing: capturing, Binary: binary}
	if err != nil {
		st.Error = err.Error()
	}
	if err := s.video.BroadcastJSON(st); err != nil {
		s.logger.Warn("status not broadcast", "error", err)
	}
}

// broadcastFrames feeds the websocket hub from the latest-frame slot.
func (s *Server) broadcastFrames() {
	sub := s.latest.Subscribe()
	for {
		f, err := sub.Next(s.ctx)
		if err != nil {
			return
		}
		n := s.video.ClientCount()
		if n == 0 {
			continue
		}
		if s.video.BroadcastFrame(f.Data) {
			metrics.FramesServed.WithLabelValues("ws").Add(float64(n))
		}
	}
}

func (s *Server) handleMJPEG(c *fiber.Ctx) error {
	id := uuid.NewString()
	logger := s.logger.With("client", id, "remote", c.IP(), "path", c.Path())
	sub := s.latest.Subscribe()

	c.Set(fiber.HeaderContentType, mjpeg.ContentType)
	c.Set(fiber.HeaderCacheControl, "no-cache, no-store, must-revalidate")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		s.mjpegClients.Add(1)
		metrics.StreamClients.WithLabelValues("mjpeg").Inc()
		logger.Info("stream client connected")
		defer func() {
			s.mjpegClients.Add(-1)
			metrics.StreamClients.WithLabelValues("mjpeg").Dec()
			logger.Info("stream client disconnected", "last_seq", sub.LastSeq())
		}()

		for {
			f, err := sub.Next(s.ctx)
			if err != nil {
				return
			}
			if err := mjpeg.WritePart(w, f.Data); err != nil {
				return
			}
			// Flush fails once the viewer has gone away
			if err := w.Flush(); err != nil {
				return
			}
			metrics.FramesServed.WithLabelValues("mjpeg").Inc()
			debug.FrameLog("frame served", "client", id, "seq", f.Seq, "bytes", len(f.Data))
		}
	})
	return nil
}

func (s *Server) handleVideoWS(conn *websocket.Conn) {
	id := uuid.NewString()
	metrics.StreamClients.WithLabelValues("ws").Inc()
	defer metrics.StreamClients.WithLabelValues("ws").Dec()

	hub.NewClient(s.video, conn, id).Run()
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	f, ok := s.latest.Get()
	h := Health{
		Status:    "ok",
		HasFrame:  ok,
		Seq:       f.Seq,
		Capturing: s.capturing.Load(),
		MJPEG:     s.mjpegClients.Load(),
		Websocket: s.video.ClientCount(),
	}
	if !ok {
		h.Status = "waiting"
		return c.Status(fiber.StatusServiceUnavailable).JSON(h)
	}
	h.FrameAgeMS = f.Age().Milliseconds()
	return c.JSON(h)
}
