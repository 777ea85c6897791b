// Package upload forwards documents to the external processing webhook and
// normalises whatever the webhook answers.
package upload

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"strconv"
	"strings"

	"github.com/fmc-ops/opsdash/internal/result"
)

const (
	// DefaultMaxBytes is the upload size ceiling.
	DefaultMaxBytes int64 = 10 << 20
	// ContentTypePDF is the only accepted document type.
	ContentTypePDF = "application/pdf"
	// Source is sent with every upload so the workflow can tell web uploads apart.
	Source = "web_upload"
)

// Outcome states.
const (
	StateProcessed  = "processed"
	StateReceived   = "received"
	StateProcessing = "processing"
	StateFailed     = "failed"
)

var (
	ErrNoFile          = result.Invalid("upload.validate", "No file provided")
	ErrUnsupportedType = result.Invalid("upload.validate", "Only PDF files are supported")
	ErrFileTooLarge    = result.Invalid("upload.validate", "File size exceeds 10MB limit")
	ErrNoWebhook       = result.Sentinel(result.KindConfig, "Document webhook URL not configured")
)

// File is a document ready to be forwarded.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Validate checks presence, type and size.
func Validate(f *File, maxBytes int64) *result.Error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if f == nil || f.Body == nil || f.Name == "" {
		return ErrNoFile
	}
	mediaType, _, err := mime.ParseMediaType(f.ContentType)
	if err != nil || mediaType != ContentTypePDF {
		return ErrUnsupportedType
	}
	if f.Size > maxBytes {
		return ErrFileTooLarge
	}
	return nil
}

// Outcome is the normalised webhook answer.
type Outcome struct {
	Status         string `json:"status"`
	DocumentID     string `json:"documentId"`
	Message        string `json:"message"`
	Type           string `json:"type,omitempty"`
	Supplier       string `json:"supplier,omitempty"`
	Date           string `json:"date,omitempty"`
	SpreadsheetURL string `json:"spreadsheetUrl,omitempty"`
}

// Result turns a failed outcome into an error result.
func (o Outcome) Result() result.Result[Outcome] {
	if o.Status == StateFailed {
		return result.Fail[Outcome](&result.Error{Kind: result.KindNetwork, Message: o.Message, Op: "upload.send"})
	}
	return result.Ok(o)
}

// looseString accepts a JSON string or number.
type looseString string

func (s *looseString) UnmarshalJSON(raw []byte) error {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		*s = looseString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return fmt.Errorf("upload: expected string or number, got %s", raw)
	}
	*s = looseString(num.String())
	return nil
}

type workflowData struct {
	Type           string      `json:"type"`
	OrderID        looseString `json:"order_id"`
	InvoiceID      looseString `json:"invoice_id"`
	Supplier       string      `json:"supplier"`
	OrderDate      string      `json:"order_date"`
	InvoiceDate    string      `json:"invoice_date"`
	SpreadsheetURL string      `json:"spreadsheet_url"`
}

type webhookReply struct {
	Success        bool          `json:"success"`
	Message        string        `json:"message"`
	Error          string        `json:"error"`
	Status         string        `json:"status"`
	ID             looseString   `json:"id"`
	DocumentID     looseString   `json:"documentId"`
	SheetURL       string        `json:"sheetUrl"`
	SpreadsheetURL string        `json:"spreadsheet_url"`
	Data           *workflowData `json:"data"`
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Interpret normalises a webhook reply. newID supplies a document id when
// the reply carries none.
func Interpret(status int, body []byte, newID func() string) Outcome {
	var reply webhookReply
	parsed := len(strings.TrimSpace(string(body))) > 0 && json.Unmarshal(body, &reply) == nil

	if status < 200 || status >= 300 {
		msg := "Upload failed with status " + strconv.Itoa(status)
		if parsed {
			msg = firstOf(reply.Error, reply.Message, msg)
		}
		return Outcome{Status: StateFailed, Message: msg}
	}

	if !parsed {
		return Outcome{Status: StateReceived, DocumentID: newID(), Message: "Document received for processing"}
	}

	if reply.Success && reply.Data != nil {
		d := reply.Data
		return Outcome{
			Status:         StateProcessed,
			DocumentID:     firstOf(string(d.OrderID), string(d.InvoiceID), newID()),
			Message:        firstOf(reply.Message, "Document processed successfully"),
			Type:           d.Type,
			Supplier:       d.Supplier,
			Date:           firstOf(d.OrderDate, d.InvoiceDate),
			SpreadsheetURL: d.SpreadsheetURL,
		}
	}

	return Outcome{
		Status:         firstOf(reply.Status, StateProcessing),
		DocumentID:     firstOf(string(reply.ID), string(reply.DocumentID), newID()),
		Message:        firstOf(reply.Message, "Document submitted for processing"),
		SpreadsheetURL: firstOf(reply.SheetURL, reply.SpreadsheetURL),
	}
}
