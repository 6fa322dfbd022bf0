// Package cloud is the remote detection service and its client. The client
// uploads one JPEG frame and receives a ready-to-speak navigation message.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-eyeguide/internal/httpc"
)

// DefaultTimeout bounds one detection round trip.
const DefaultTimeout = 60 * time.Second

// ImageField is the multipart form field carrying the frame.
const ImageField = "image"

// ErrBadResponse is returned when a 200 reply carries no message.
var ErrBadResponse = errors.New("cloud: malformed response")

// APIError is a non-200 reply from the detection service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("cloud: API error %d", e.StatusCode)
	}
	return fmt.Sprintf("cloud: API error %d: %s", e.StatusCode, e.Message)
}

// Reply is the JSON body of the detection service.
type Reply struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Client calls a remote detection service.
type Client struct {
	url  string
	http *http.Client
}

// NewClient creates a client for the service at url, a full endpoint such
// as http://host:8000/detect. A zero timeout uses DefaultTimeout.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{url: url, http: httpc.NewClient(timeout)}
}

// URL returns the endpoint the client posts to.
func (c *Client) URL() string {
	return c.url
}

// Detect uploads jpeg and returns the service's message. Non-200 replies
// are returned as *APIError; anything else is a transport failure.
func (c *Client) Detect(ctx context.Context, jpeg []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(ImageField, "frame.jpg")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(jpeg); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var reply Reply
	decodeErr := json.Unmarshal(raw, &reply)

	if resp.StatusCode != http.StatusOK {
		msg := reply.Error
		if decodeErr != nil || msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return "", &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("%w: %v", ErrBadResponse, decodeErr)
	}
	if reply.Message == "" {
		return "", ErrBadResponse
	}
	return reply.Message, nil
}
