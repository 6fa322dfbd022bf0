package mjpeg

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
)

// Wire format of the camera feed, shared by the stream server and client sources.
const (
	Boundary        = "frame"
	ContentType     = "multipart/x-mixed-replace; boundary=" + Boundary
	PartContentType = "image/jpeg"
)

// ErrFrameTooLarge is returned by PartReader when a part exceeds its size limit.
var ErrFrameTooLarge = errors.New("mjpeg: frame exceeds size limit")

var partHeader = []byte("--" + Boundary + "\r\nContent-Type: " + PartContentType + "\r\n\r\n")

// WritePart writes one multipart part carrying jpeg.
func WritePart(w io.Writer, jpeg []byte) error {
	if _, err := w.Write(partHeader); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}

// BoundaryFromContentType extracts the boundary parameter of a
// multipart/x-mixed-replace content type.
func BoundaryFromContentType(contentType string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("parse content type: %w", err)
	}
	if mediaType != "multipart/x-mixed-replace" {
		return "", fmt.Errorf("unexpected media type %q", mediaType)
	}
	b := params["boundary"]
	if b == "" {
		return "", errors.New("content type has no boundary")
	}
	return b, nil
}

// PartReader reads JPEG payloads from a multipart/x-mixed-replace body.
type PartReader struct {
	mr      *multipart.Reader
	maxSize int64
}

// NewPartReader reads parts separated by boundary from r.
func NewPartReader(r io.Reader, boundary string) *PartReader {
	return &PartReader{
		mr:      multipart.NewReader(r, boundary),
		maxSize: DefaultMaxBuffer,
	}
}

// Next returns the payload of the next part.
// It returns io.EOF when the stream closes cleanly.
func (p *PartReader) Next() ([]byte, error) {
	part, err := p.mr.NextPart()
	if err != nil {
		return nil, err
	}
	defer part.Close()

	data, err := io.ReadAll(io.LimitReader(part, p.maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > p.maxSize {
		return nil, ErrFrameTooLarge
	}
	return data, nil
}
