package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/fmc-ops/opsdash/internal/result"
)

// DefaultTimeout bounds one upload including the webhook's reply.
const DefaultTimeout = 5 * time.Minute

const maxReplyBytes = 1 << 20

// Options configures a Client.
type Options struct {
	WebhookURL string
	Timeout    time.Duration
	MaxBytes   int64
	Mock       bool
	// MockStep is the pause between simulated progress steps.
	MockStep   time.Duration
	HTTPClient *http.Client
}

// Client posts documents to the processing webhook.
type Client struct {
	webhook    string
	timeout    time.Duration
	maxBytes   int64
	mock       bool
	mockStep   time.Duration
	httpClient *http.Client
	logger     *slog.Logger
	newID      func() string
}

// NewClient constructs a client. The webhook URL is trimmed and loses any
// trailing slash.
func NewClient(opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		webhook:    strings.TrimSuffix(strings.TrimSpace(opts.WebhookURL), "/"),
		timeout:    opts.Timeout,
		maxBytes:   opts.MaxBytes,
		mock:       opts.Mock,
		mockStep:   opts.MockStep,
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", "upload")),
		newID:      uuid.NewString,
	}
}

// MaxBytes is the configured size ceiling.
func (c *Client) MaxBytes() int64 { return c.maxBytes }

// Configured reports whether uploads can reach a webhook.
func (c *Client) Configured() bool { return c.mock || c.webhook != "" }

// Upload validates f and forwards it. progress receives percentages in
// [0, 100] as the request body is sent.
func (c *Client) Upload(ctx context.Context, f File, progress func(pct float64)) result.Result[Outcome] {
	if progress == nil {
		progress = func(float64) {}
	}
	if verr := Validate(&f, c.maxBytes); verr != nil {
		return result.Fail[Outcome](verr)
	}
	if c.mock {
		return c.simulate(ctx, progress)
	}
	if c.webhook == "" {
		return result.Fail[Outcome](ErrNoWebhook.WithOp("upload.send"))
	}

	body, contentType, err := encodeForm(f)
	if err != nil {
		c.logger.Error("encode upload form", slog.String("file", f.Name), slog.Any("error", err))
		return result.Fail[Outcome](&result.Error{Kind: result.KindUnknown, Message: result.MsgUnexpected, Op: "upload.send", Cause: err})
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	counter := &countingReader{r: bytes.NewReader(body), total: int64(len(body)), progress: progress}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhook, counter)
	if err != nil {
		return result.Fail[Outcome](&result.Error{Kind: result.KindConfig, Message: "Document webhook URL is invalid", Op: "upload.send", Cause: err})
	}
	req.ContentLength = int64(len(body))
	req.Header.Set("Content-Type", contentType)

	c.logger.Info("upload started", slog.String("file", f.Name), slog.Int64("size", f.Size))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.transportFailure(ctx, err, counter.sent()).Result()
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if readErr != nil {
		c.logger.Warn("read webhook reply", slog.Int("status", resp.StatusCode), slog.Any("error", readErr))
		raw = nil
	}
	out := Interpret(resp.StatusCode, raw, c.newID)
	c.logger.Info("upload finished", slog.String("file", f.Name), slog.Int("status", resp.StatusCode), slog.String("state", out.Status))
	return out.Result()
}

// transportFailure resolves an upload that got no HTTP status. A connection
// that drops after the whole body was sent is treated as still processing.
func (c *Client) transportFailure(ctx context.Context, err error, sent bool) Outcome {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		c.logger.Warn("upload timed out", slog.Duration("timeout", c.timeout))
		return Outcome{Status: StateFailed, Message: fmt.Sprintf("Upload timed out after %s", c.timeout)}
	case errors.Is(ctx.Err(), context.Canceled):
		return Outcome{Status: StateFailed, Message: "Upload aborted"}
	case sent && connectionDropped(err):
		c.logger.Warn("webhook closed connection after upload", slog.Any("error", err))
		return Outcome{
			Status:     StateProcessing,
			DocumentID: c.newID(),
			Message:    "Upload sent. The connection closed before a reply, so the document may still be processing.",
		}
	default:
		c.logger.Error("upload transport", slog.Any("error", err))
		return Outcome{Status: StateFailed, Message: "Network error during upload"}
	}
}

func connectionDropped(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}

func (c *Client) simulate(ctx context.Context, progress func(float64)) result.Result[Outcome] {
	for _, pct := range []float64{25, 50, 75, 100} {
		if c.mockStep > 0 {
			select {
			case <-ctx.Done():
				return Outcome{Status: StateFailed, Message: "Upload aborted"}.Result()
			case <-time.After(c.mockStep):
			}
		}
		progress(pct)
	}
	return result.Ok(Outcome{Status: StateProcessed, DocumentID: c.newID(), Message: "Document processed successfully"})
}

// StatusReport is the processing state the webhook reports for a document.
type StatusReport struct {
	DocumentID string `json:"documentId"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	SheetURL   string `json:"sheetUrl,omitempty"`
}

// CheckStatus asks the webhook how far a document got.
func (c *Client) CheckStatus(ctx context.Context, id string) result.Result[StatusReport] {
	if c.mock {
		return result.Ok(StatusReport{DocumentID: id, Status: "completed", Message: "Document processed successfully"})
	}
	if c.webhook == "" {
		return result.Fail[StatusReport](ErrNoWebhook.WithOp("upload.status"))
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.webhook+"/status/"+url.PathEscape(id), nil)
	if err != nil {
		return result.Fail[StatusReport](&result.Error{Kind: result.KindConfig, Message: "Document webhook URL is invalid", Op: "upload.status", Cause: err})
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return result.From("upload.status", StatusReport{}, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return result.Fail[StatusReport](&result.Error{
			Kind:    result.KindNetwork,
			Message: fmt.Sprintf("Status check failed with status %d", resp.StatusCode),
			Op:      "upload.status",
		})
	}
	var payload struct {
		Status   string `json:"status"`
		Message  string `json:"message"`
		SheetURL string `json:"sheetUrl"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReplyBytes)).Decode(&payload); err != nil {
		return result.Fail[StatusReport](&result.Error{Kind: result.KindUnknown, Message: "Status check returned an unreadable reply", Op: "upload.status", Cause: err})
	}
	return result.Ok(StatusReport{
		DocumentID: id,
		Status:     firstOf(payload.Status, "unknown"),
		Message:    payload.Message,
		SheetURL:   payload.SheetURL,
	})
}

func encodeForm(f File) ([]byte, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", f.Name)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f.Body); err != nil {
		return nil, "", fmt.Errorf("upload: copy file: %w", err)
	}
	if err := writer.WriteField("filename", f.Name); err != nil {
		return nil, "", err
	}
	if err := writer.WriteField("source", Source); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body.Bytes(), writer.FormDataContentType(), nil
}

// countingReader reports how much of the request body the transport consumed.
type countingReader struct {
	r        io.Reader
	total    int64
	read     atomic.Int64
	progress func(float64)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		done := c.read.Add(int64(n))
		if c.total > 0 {
			c.progress(float64(done) / float64(c.total) * 100)
		}
	}
	return n, err
}

func (c *countingReader) sent() bool { return c.read.Load() >= c.total }
