package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragyverse/metrics"
)

func newTestClient(t *testing.T, h http.Handler) (*Client, *metrics.Metrics) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	m := metrics.New(prometheus.NewRegistry())
	c, err := New(Config{BaseURL: srv.URL, Timeout: 5 * time.Second, Metrics: m})
	require.NoError(t, err)
	return c, m
}

func TestTracedClientLimitsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 64))
	}))
	t.Cleanup(srv.Close)

	tc := NewTracedClient(time.Second)
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := tc.Do(req)
	require.NoError(t, err)
	assert.Equal(t, 64, resp.Metrics.Received)
	assert.Positive(t, resp.Metrics.Total)

	tc.maxBody = 32
	req, err = http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	_, err = tc.Do(req)
	assert.ErrorIs(t, err, ErrResponseTooLarge)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(Config{BaseURL: "ftp://example.com"})
	assert.Error(t, err)

	c, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
}

func TestSubmitTextKeepsTypedQuestion(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"answer":"Chapter two covers rivers."}`)
	}))
	ans, err := c.SubmitText(context.Background(), "chapter two?")
	require.NoError(t, err)
	assert.Equal(t, "chapter two?", ans.Question)
}

func TestSubmitText(t *testing.T) {
	var gotID string
	c, m := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/ask_text", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotID = r.Header.Get("X-Request-ID")

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"question": "What is X?"}, body)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"question":"What is X?","answer":"X is Y."}`)
	}))

	ans, err := c.SubmitText(context.Background(), "What is X?")
	require.NoError(t, err)
	assert.Equal(t, Answer{Question: "What is X?", Answer: "X is Y."}, ans)
	assert.Len(t, gotID, 36)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("ask_text", "200")))
}

func TestSubmitAudioMultipart(t *testing.T) {
	audio := []byte("fLaC-not-really")
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ask_audio1", r.URL.Path)
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, audio, data)
		assert.Equal(t, "question.flac", hdr.Filename)
		assert.Equal(t, "audio/flac", hdr.Header.Get("Content-Type"))
		io.WriteString(w, `{"question":"what is rag","answer":"retrieval augmented generation"}`)
	}))

	ans, err := c.SubmitAudio(context.Background(), Audio{Data: audio, Filename: "question.flac", ContentType: "audio/flac"})
	require.NoError(t, err)
	assert.Equal(t, "what is rag", ans.Question)
	assert.Equal(t, "retrieval augmented generation", ans.Answer)
}

func TestBackendErrorMessage(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":"No document uploaded"}`)
	}))

	_, err := c.SubmitText(context.Background(), "q")
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusBadRequest, be.Status)
	assert.Equal(t, "No document uploaded", be.Message)
}

func TestErrorMessageFallbacks(t *testing.T) {
	for _, tt := range []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"error field", 500, `{"error":"boom"}`, "boom"},
		{"message field", 500, `{"message":"nope"}`, "nope"},
		{"plain text", 502, "upstream down\n", "upstream down"},
		{"html page", 502, "<html>bad gateway</html>", ""},
		{"empty", 500, "", ""},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got := ResponseError("op", tt.status, []byte(tt.body))
			assert.Equal(t, tt.want, got.Message)
			assert.Equal(t, tt.status, got.Status)
			assert.Contains(t, got.Error(), "op: backend error")
		})
	}
}

func TestMalformedSuccessBody(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "not json")
	}))
	_, err := c.SubmitText(context.Background(), "q")
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusOK, be.Status)
}

func TestNetworkErrorNoRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, _, err := hj.Hijack()
		require.NoError(t, err)
		conn.Close()
	}))
	defer srv.Close()

	m := metrics.New(prometheus.NewRegistry())
	c, err := New(Config{BaseURL: srv.URL, Metrics: m})
	require.NoError(t, err)

	_, err = c.SubmitText(context.Background(), "q")
	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "ask_text", ne.Op)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NetworkErrors.WithLabelValues("ask_text")))
}

func TestUnreachableIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: url})
	require.NoError(t, err)
	err = c.ResetSession(context.Background())
	var ne *NetworkError
	assert.ErrorAs(t, err, &ne)
}

func TestUploadDocument(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upload_pdf", r.URL.Path)
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "paper.pdf", hdr.Filename)
		assert.Equal(t, "application/pdf", hdr.Header.Get("Content-Type"))
		io.WriteString(w, `{"text":"Extracted body"}`)
	}))

	text, err := c.UploadDocument(context.Background(), "/tmp/docs/paper.pdf", []byte("%PDF-1.7\n..."))
	require.NoError(t, err)
	assert.Equal(t, "Extracted body", text)
}

func TestUploadRejectsNonPDFWithoutRequest(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))

	_, err := c.UploadDocument(context.Background(), "notes.txt", []byte("hello"))
	assert.True(t, errors.Is(err, ErrUnsupportedDocument))
	_, err = c.UploadDocument(context.Background(), "empty.pdf", nil)
	assert.True(t, errors.Is(err, ErrUnsupportedDocument))
	assert.Zero(t, hits.Load())
}

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF("a.PDF", []byte("x")))
	assert.True(t, IsPDF("upload", []byte("%PDF-1.4 rest")))
	assert.False(t, IsPDF("a.docx", []byte("PK\x03\x04")))
	assert.False(t, IsPDF("a.pdf", nil))
}

func TestResetSession(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/reset_session", r.URL.Path)
		hits.Add(1)
		io.WriteString(w, `{"message":"Session reset"}`)
	}))
	require.NoError(t, c.ResetSession(context.Background()))
	assert.Equal(t, int32(1), hits.Load())
}

func TestCustomEndpoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/ask", r.URL.Path)
		io.WriteString(w, `{"question":"q","answer":"a"}`)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL + "/api", Endpoints: Endpoints{AskText: "/v2/ask"}})
	require.NoError(t, err)
	_, err = c.SubmitText(context.Background(), "q")
	require.NoError(t, err)
}
