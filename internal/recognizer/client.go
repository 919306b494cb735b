// Package recognizer talks to the bubble-sheet recognition service, which
// turns a photographed answer sheet into per-question selections.
package recognizer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/model"
)

// DefaultTemplate is the sheet layout used when none is configured.
const DefaultTemplate = "dxuian"

// DefaultTimeout bounds one recognition request.
const DefaultTimeout = 60 * time.Second

// ErrProcessing is returned when the service rejects or fails to read a sheet.
var ErrProcessing = errors.New("recognition failed")

// Recognition is what the service read from one sheet.
type Recognition struct {
	SessionID        string                  `json:"session_id"`
	FileName         string                  `json:"file_name"`
	Answers          model.RecognizedAnswers `json:"answers"`
	OutputColumns    []string                `json:"output_columns"`
	TotalQuestions   int                     `json:"total_questions"`
	MultiMarkedCount int                     `json:"multi_marked_count"`
	MarkedImage      string                  `json:"marked_image,omitempty"`
}

// Template describes a sheet layout the service can read.
type Template struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	File            string `json:"file"`
	FieldBlockCount int    `json:"fieldBlockCount"`
}

// Health is the service status report.
type Health struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// processResponse mirrors the service envelope; success=false carries error.
type processResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Recognition
}

type templatesResponse struct {
	Success   bool       `json:"success"`
	Error     string     `json:"error"`
	Templates []Template `json:"templates"`
}

// Client wraps the recognition service HTTP API.
type Client struct {
	baseURL  string
	template string
	http     *http.Client
}

// New creates a client for the service at baseURL. An empty template uses
// DefaultTemplate; a non-positive timeout uses DefaultTimeout.
func New(baseURL, template string, timeout time.Duration) *Client {
	if template == "" {
		template = DefaultTemplate
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		template: template,
		http:     &http.Client{Timeout: timeout},
	}
}

// Health checks that the service is up.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.getJSON(ctx, "/api/health", &h); err != nil {
		return nil, err
	}
	if h.Status != "healthy" {
		return &h, fmt.Errorf("recognizer status %q", h.Status)
	}
	return &h, nil
}

// Templates lists the sheet layouts the service knows.
func (c *Client) Templates(ctx context.Context) ([]Template, error) {
	var resp templatesResponse
	if err := c.getJSON(ctx, "/api/templates", &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s", ErrProcessing, resp.Error)
	}
	return resp.Templates, nil
}

// Process sends one sheet image and returns the recognized answers.
// Blank bubbles come back as unanswered selections.
func (c *Client) Process(ctx context.Context, filename string, image []byte) (*Recognition, error) {
	body, err := json.Marshal(map[string]string{
		"image":    base64.StdEncoding.EncodeToString(image),
		"filename": filename,
		"template": c.template,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/process-base64", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recognizer call: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read recognizer response: %w", err)
	}
	slog.Debug("recognizer response", "file", filename, "status", res.StatusCode,
		"bytes", len(raw), "elapsed", time.Since(start))

	var out processResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse recognizer response (status %d): %w", res.StatusCode, err)
	}
	if !out.Success || res.StatusCode != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(res.StatusCode)
		}
		return nil, fmt.Errorf("%w: %s: %s", ErrProcessing, filename, msg)
	}
	if out.Answers == nil {
		out.Answers = model.RecognizedAnswers{}
	}
	return &out.Recognition, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("recognizer call: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("recognizer %s: status %d", path, res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(v); err != nil {
		return fmt.Errorf("parse recognizer %s: %w", path, err)
	}
	return nil
}
