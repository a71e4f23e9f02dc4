package backend

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"
)

// maxResponseBytes bounds answer and synthesis bodies read into memory.
const maxResponseBytes = 8 << 20

var ErrResponseTooLarge = errors.New("response body too large")

// NetworkMetrics is the timing breakdown of one round trip.
type NetworkMetrics struct {
	DNS         time.Duration
	Connect     time.Duration
	TLS         time.Duration
	TTFB        time.Duration // from request written to first byte
	Total       time.Duration
	Received    int
	ConnReused  bool
	TLSProtocol string
}

// TracedClient is an http.Client that records per-phase timings of every
// request through httptrace.
type TracedClient struct {
	client  *http.Client
	maxBody int64
}

// NewTracedClient builds the shared client. A zero timeout leaves requests
// bounded only by their context.
func NewTracedClient(timeout time.Duration) *TracedClient {
	return &TracedClient{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     60 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
		maxBody: maxResponseBytes,
	}
}

type TracedResponse struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	Metrics    NetworkMetrics
}

// phases collects httptrace callbacks. Callbacks may run on transport
// goroutines but never concurrently for a single request.
type phases struct {
	m                             NetworkMetrics
	dnsAt, connAt, tlsAt, wroteAt time.Time
}

func (p *phases) trace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		DNSStart:     func(httptrace.DNSStartInfo) { p.dnsAt = time.Now() },
		DNSDone:      func(httptrace.DNSDoneInfo) { p.m.DNS = time.Since(p.dnsAt) },
		ConnectStart: func(_, _ string) { p.connAt = time.Now() },
		ConnectDone:  func(_, _ string, _ error) { p.m.Connect = time.Since(p.connAt) },
		GotConn: func(info httptrace.GotConnInfo) {
			p.m.ConnReused = info.Reused
		},
		TLSHandshakeStart: func() { p.tlsAt = time.Now() },
		TLSHandshakeDone: func(state tls.ConnectionState, _ error) {
			p.m.TLS = time.Since(p.tlsAt)
			p.m.TLSProtocol = state.NegotiatedProtocol
		},
		WroteRequest:         func(httptrace.WroteRequestInfo) { p.wroteAt = time.Now() },
		GotFirstResponseByte: func() { p.m.TTFB = time.Since(p.wroteAt) },
	}
}

// Do sends req and reads the whole body.
func (c *TracedClient) Do(req *http.Request) (*TracedResponse, error) {
	var p phases
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), p.trace()))
	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("%w (over %d bytes)", ErrResponseTooLarge, c.maxBody)
	}
	p.m.Received = len(body)
	p.m.Total = time.Since(start)

	return &TracedResponse{
		Body:       body,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Metrics:    p.m,
	}, nil
}

// HTTP exposes the underlying client for streamed downloads.
func (c *TracedClient) HTTP() *http.Client { return c.client }
