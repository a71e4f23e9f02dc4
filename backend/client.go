package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"ragyverse/log"
	"ragyverse/metrics"
)

const DefaultBaseURL = "http://localhost:5000"

// Endpoints are the paths of the question answering backend, relative to
// the base URL.
type Endpoints struct {
	Upload   string `yaml:"upload"`
	AskAudio string `yaml:"ask_audio"`
	AskText  string `yaml:"ask_text"`
	Reset    string `yaml:"reset"`
}

var DefaultEndpoints = Endpoints{
	Upload:   "/upload_pdf",
	AskAudio: "/ask_audio1",
	AskText:  "/ask_text",
	Reset:    "/reset_session",
}

type Config struct {
	BaseURL   string
	Endpoints Endpoints
	// Timeout bounds each request. Zero keeps the transport defaults.
	Timeout time.Duration
	Metrics *metrics.Metrics
}

// Answer is the backend reply to a question. Question is the text the
// backend answered, which for audio is its transcription.
type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Audio is an encoded recording ready for upload.
type Audio struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Client talks to the document Q&A backend. Every call is a single round
// trip; nothing is retried.
type Client struct {
	base    *url.URL
	ep      Endpoints
	http    *TracedClient
	metrics *metrics.Metrics
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("backend url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q: scheme must be http or https", cfg.BaseURL)
	}
	ep := cfg.Endpoints
	if ep.Upload == "" {
		ep.Upload = DefaultEndpoints.Upload
	}
	if ep.AskAudio == "" {
		ep.AskAudio = DefaultEndpoints.AskAudio
	}
	if ep.AskText == "" {
		ep.AskText = DefaultEndpoints.AskText
	}
	if ep.Reset == "" {
		ep.Reset = DefaultEndpoints.Reset
	}
	return &Client{
		base:    base,
		ep:      ep,
		http:    NewTracedClient(cfg.Timeout),
		metrics: cfg.Metrics,
	}, nil
}

func (c *Client) BaseURL() string { return c.base.String() }

// IsPDF reports whether the named document is acceptable for upload.
func IsPDF(name string, data []byte) bool {
	if len(data) == 0 {
		return false
	}
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		return true
	}
	return http.DetectContentType(data) == "application/pdf"
}

// UploadDocument sends a PDF and returns the text the backend extracted.
func (c *Client) UploadDocument(ctx context.Context, name string, data []byte) (string, error) {
	if !IsPDF(name, data) {
		return "", ErrUnsupportedDocument
	}
	body, contentType, err := multipartFile(filepath.Base(name), "application/pdf", data)
	if err != nil {
		return "", err
	}
	respBody, status, err := c.post(ctx, "upload_pdf", c.ep.Upload, body, contentType)
	if err != nil {
		return "", err
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", malformed("upload_pdf", status, err)
	}
	return out.Text, nil
}

func (c *Client) SubmitText(ctx context.Context, question string) (Answer, error) {
	payload, err := json.Marshal(struct {
		Question string `json:"question"`
	}{question})
	if err != nil {
		return Answer{}, err
	}
	respBody, status, err := c.post(ctx, "ask_text", c.ep.AskText, bytes.NewReader(payload), "application/json")
	if err != nil {
		return Answer{}, err
	}
	ans, err := decodeAnswer("ask_text", status, respBody)
	if err == nil && ans.Question == "" {
		ans.Question = question
	}
	return ans, err
}

func (c *Client) SubmitAudio(ctx context.Context, a Audio) (Answer, error) {
	if a.Filename == "" {
		a.Filename = "question.flac"
	}
	if a.ContentType == "" {
		a.ContentType = "application/octet-stream"
	}
	body, contentType, err := multipartFile(a.Filename, a.ContentType, a.Data)
	if err != nil {
		return Answer{}, err
	}
	respBody, status, err := c.post(ctx, "ask_audio", c.ep.AskAudio, body, contentType)
	if err != nil {
		return Answer{}, err
	}
	return decodeAnswer("ask_audio", status, respBody)
}

// ResetSession tells the backend to drop its conversation state.
func (c *Client) ResetSession(ctx context.Context) error {
	_, _, err := c.post(ctx, "reset_session", c.ep.Reset, nil, "")
	return err
}

// Ping checks that the backend answers HTTP at all. Any status counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.base.String(), nil)
	if err != nil {
		return err
	}
	if _, err := c.http.Do(req); err != nil {
		return &NetworkError{Op: "ping", Err: err}
	}
	return nil
}

func (c *Client) post(ctx context.Context, op, path string, body io.Reader, contentType string) ([]byte, int, error) {
	size := 0
	if b, ok := body.(interface{ Len() int }); ok {
		size = b.Len()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.JoinPath(path).String(), body)
	if err != nil {
		return nil, 0, err
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.NetworkError(op)
		log.Warnf("%s request %s failed: %v", op, reqID, err)
		return nil, 0, &NetworkError{Op: op, Err: err}
	}

	RecordRequest(c.metrics, op, reqID, size, resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, ResponseError(op, resp.StatusCode, resp.Body)
	}
	return resp.Body, resp.StatusCode, nil
}

func decodeAnswer(op string, status int, body []byte) (Answer, error) {
	var a Answer
	if err := json.Unmarshal(body, &a); err != nil {
		return Answer{}, malformed(op, status, err)
	}
	return a, nil
}

func malformed(op string, status int, err error) error {
	return &BackendError{Op: op, Status: status, Message: "malformed response: " + err.Error()}
}

func multipartFile(filename, contentType string, data []byte) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &body, writer.FormDataContentType(), nil
}

// RecordRequest logs the timing breakdown of a finished request and feeds
// the request metrics.
func RecordRequest(m *metrics.Metrics, op, reqID string, sent int, resp *TracedResponse) {
	nm := resp.Metrics
	log.Request(log.RequestMetrics{
		Op:          op,
		Status:      resp.StatusCode,
		RequestID:   reqID,
		BytesSent:   sent,
		BytesRecv:   nm.Received,
		DNSMs:       float64(nm.DNS.Milliseconds()),
		TLSMs:       float64(nm.TLS.Milliseconds()),
		TTFBMs:      float64(nm.TTFB.Milliseconds()),
		TotalMs:     float64(nm.Total.Milliseconds()),
		ConnReused:  nm.ConnReused,
		TLSProtocol: nm.TLSProtocol,
	})
	m.ObserveRequest(op, resp.StatusCode, nm.Total)
}
