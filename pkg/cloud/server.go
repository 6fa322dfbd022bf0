package cloud

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-eyeguide/internal/log"
	"github.com/teslashibe/go-eyeguide/internal/metrics"
	"github.com/teslashibe/go-eyeguide/pkg/detection"
	"github.com/teslashibe/go-eyeguide/pkg/navigation"
)

// maxUpload bounds the request body; a VGA JPEG is well under 1 MiB.
const maxUpload = 10 << 20

// Server runs a detector behind POST /detect.
type Server struct {
	app       *fiber.App
	addr      string
	detector  detection.Detector
	estimator navigation.Estimator
	phrases   navigation.Phrasebook
	logger    *slog.Logger
}

// NewServer creates the detection service. detector may be nil, in which
// case every request is answered with 503.
func NewServer(addr string, detector detection.Detector, phrases navigation.Phrasebook, logger *slog.Logger) *Server {
	s := &Server{
		addr:      addr,
		detector:  detector,
		estimator: navigation.DefaultEstimator(),
		phrases:   phrases,
		logger:    log.Or(logger, "detector"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "eyeguide detector",
		DisableStartupMessage: true,
		BodyLimit:             maxUpload,
	})
	app.Use(cors.New())

	app.Post("/detect", s.handleDetect)
	app.Post("/detectar", s.handleDetect)
	app.Get("/healthz", s.handleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			s.logger.Warn("shutdown", "error", err)
		}
	}()
	s.logger.Info("serving detection", "addr", s.addr, "loaded", s.detector != nil)
	return s.app.Listen(s.addr)
}

func (s *Server) reply(c *fiber.Ctx, status int, r Reply) error {
	metrics.DetectRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	return c.Status(status).JSON(r)
}

func (s *Server) handleDetect(c *fiber.Ctx) error {
	logger := s.logger.With("request", requestID(c), "remote", c.IP())

	if s.detector == nil {
		return s.reply(c, fiber.StatusServiceUnavailable, Reply{Error: "detector not loaded"})
	}

	fh, err := c.FormFile(ImageField)
	if err != nil {
		return s.reply(c, fiber.StatusBadRequest, Reply{Error: "no image uploaded"})
	}
	f, err := fh.Open()
	if err != nil {
		return s.reply(c, fiber.StatusBadRequest, Reply{Error: "unreadable image"})
	}
	jpeg, err := io.ReadAll(f)
	f.Close()
	if err != nil || len(jpeg) == 0 {
		return s.reply(c, fiber.StatusBadRequest, Reply{Error: "empty image"})
	}

	start := time.Now()
	res, err := s.detector.Detect(c.UserContext(), jpeg)
	switch {
	case errors.Is(err, detection.ErrInvalidImage):
		return s.reply(c, fiber.StatusBadRequest, Reply{Error: "invalid image"})
	case err != nil:
		logger.Error("detection failed", "error", err)
		return s.reply(c, fiber.StatusInternalServerError, Reply{Error: err.Error()})
	}

	msg := s.describe(res)
	logger.Info("detected", "objects", len(res.Detections), "message", msg, "elapsed", time.Since(start))
	return s.reply(c, fiber.StatusOK, Reply{Message: msg})
}

// describe reports the nearest object, or that the path is clear.
func (s *Server) describe(res detection.Result) string {
	best, ok := detection.Closest(res.Detections)
	if !ok || !s.estimator.Usable(float64(best.Height())) {
		return s.phrases.NoObstacle
	}
	steps := s.estimator.StepCount(float64(best.Height()))
	dir := navigation.Classify(best.CenterX(), float64(res.Size.X))
	return s.phrases.Report(best.Label, steps, dir)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	if s.detector == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "no detector"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func requestID(c *fiber.Ctx) string {
	if id := c.Get("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}
