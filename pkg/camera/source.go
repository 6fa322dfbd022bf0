package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-eyeguide/internal/httpc"
	"github.com/teslashibe/go-eyeguide/internal/log"
	"github.com/teslashibe/go-eyeguide/pkg/mjpeg"
)

// Source delivers frames from the camera unit to the client.
type Source interface {
	// Stream pushes frames until the feed ends or ctx is cancelled.
	// Cancellation returns nil.
	Stream(ctx context.Context, push func([]byte)) error

	// Name identifies the transport for logs.
	Name() string
}

// NewSource picks the transport from the URL scheme: ws/wss use the
// websocket feed, http/https the multipart feed.
func NewSource(rawURL string, logger *slog.Logger) (Source, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse camera url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
		return NewWSSource(rawURL, logger), nil
	case "http", "https":
		return NewHTTPSource(rawURL, logger), nil
	default:
		return nil, fmt.Errorf("unsupported camera url scheme %q", u.Scheme)
	}
}

// HTTPSource reads the multipart/x-mixed-replace feed. A response that is
// not multipart is treated as raw MJPEG and demuxed by markers.
type HTTPSource struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewHTTPSource creates a source for the feed at url.
func NewHTTPSource(url string, logger *slog.Logger) *HTTPSource {
	return &HTTPSource{
		url:    url,
		client: httpc.NewStreamClient(),
		logger: log.Or(logger, "camera-http"),
	}
}

func (s *HTTPSource) Name() string { return "http" }

func (s *HTTPSource) Stream(ctx context.Context, push func([]byte)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("connect %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("camera feed returned %s", resp.Status)
	}

	boundary, err := mjpeg.BoundaryFromContentType(resp.Header.Get("Content-Type"))
	if err != nil {
		s.logger.Debug("feed is not multipart, demuxing raw stream", "reason", err)
		err = mjpeg.NewDemuxer(resp.Body).Run(ctx, push)
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	s.logger.Info("connected to camera feed", "url", s.url)
	parts := mjpeg.NewPartReader(resp.Body, boundary)
	for {
		frame, err := parts.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}
		push(frame)
	}
}

// WSSource reads binary JPEG messages from the camera's websocket feed.
type WSSource struct {
	url    string
	dialer *websocket.Dialer
	logger *slog.Logger
}

// NewWSSource creates a source for the websocket feed at url.
func NewWSSource(url string, logger *slog.Logger) *WSSource {
	return &WSSource{
		url: url,
		dialer: &websocket.Dialer{
			HandshakeTimeout: httpc.DefaultConnectTimeout,
		},
		logger: log.Or(logger, "camera-ws"),
	}
}

func (s *WSSource) Name() string { return "websocket" }

func (s *WSSource) Stream(ctx context.Context, push func([]byte)) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer conn.Close()
	s.logger.Info("connected to camera feed", "url", s.url)

	// unblock ReadMessage on cancellation
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}
		switch mt {
		case websocket.BinaryMessage:
			push(data)
		case websocket.TextMessage:
			s.logger.Info("camera status", "status", string(data))
		}
	}
}

// Retry delays used by Follow.
const (
	minRetryDelay = 500 * time.Millisecond
	maxRetryDelay = 10 * time.Second
)

// Follow keeps src streaming into push, reconnecting with exponential backoff
// after failures, until ctx is cancelled.
func Follow(ctx context.Context, src Source, push func([]byte), logger *slog.Logger) {
	logger = log.Or(logger, "camera-follow")
	delay := minRetryDelay

	for ctx.Err() == nil {
		got := false
		err := src.Stream(ctx, func(b []byte) {
			got = true
			push(b)
		})
		if ctx.Err() != nil {
			return
		}
		if got {
			delay = minRetryDelay
		}
		if err == nil {
			err = errors.New("feed ended")
		}
		logger.Warn("camera feed lost, reconnecting", "source", src.Name(), "error", err, "delay", delay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, maxRetryDelay)
	}
}
