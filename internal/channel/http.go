package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/verdict"
)

// #region ops
// Operation names reported in verdict.ChannelError.Op.
const (
	OpCheckInvariants = "check_invariants"
	OpSubmitFrame     = "submit_frame"
	OpHostSummary     = "host_summary"
)

const maxResponseBytes = 8 << 20

// #endregion ops

// #region http-channel
// HTTPChannel reaches the decision authority over HTTP: the invariant checker
// at {baseURL}/invariants/check and the ledger's JSON-RPC endpoint at rpcURL.
type HTTPChannel struct {
	baseURL string
	rpcURL  string
	client  *http.Client
	limiter *rate.Limiter
}

// Option configures an HTTPChannel.
type Option func(*HTTPChannel)

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPChannel) { h.client = c }
}

// WithRateLimit throttles outbound calls to r per second with the given burst.
func WithRateLimit(r float64, burst int) Option {
	return func(h *HTTPChannel) { h.limiter = rate.NewLimiter(rate.Limit(r), burst) }
}

// NewHTTPChannel creates a channel. Either URL may be empty when the caller
// only uses one flavor.
func NewHTTPChannel(baseURL, rpcURL string, opts ...Option) *HTTPChannel {
	h := &HTTPChannel{
		baseURL: strings.TrimRight(baseURL, "/"),
		rpcURL:  rpcURL,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// #endregion http-channel

// #region evaluate
// Evaluate posts {epochs, ledger, policy} and returns the authority's checks.
func (h *HTTPChannel) Evaluate(ctx context.Context, req verdict.BatchRequest) ([]verdict.Check, error) {
	if h.baseURL == "" {
		return nil, &verdict.ChannelError{Op: OpCheckInvariants, Err: fmt.Errorf("no authority url configured")}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &verdict.ChannelError{Op: OpCheckInvariants, Err: fmt.Errorf("marshal request: %w", err)}
	}
	raw, err := h.post(ctx, OpCheckInvariants, h.baseURL+"/invariants/check", body)
	if err != nil {
		return nil, err
	}
	doc, err := verdict.DecodeJSON(raw)
	if err != nil {
		return nil, err
	}
	return verdict.DecodeChecks(doc)
}

// #endregion evaluate

// #region submit
// Submit calls ledger_submitEvolutionFrame with the frame id as request id.
func (h *HTTPChannel) Submit(ctx context.Context, frame verdict.EvolutionFrame) (verdict.RawDecision, error) {
	result, err := h.call(ctx, OpSubmitFrame, frame.FrameID, "ledger_submitEvolutionFrame", []any{frame})
	if err != nil {
		return verdict.RawDecision{}, err
	}
	doc, err := verdict.DecodeJSON(result)
	if err != nil {
		return verdict.RawDecision{}, err
	}
	return verdict.DecodeRawDecision(doc)
}

// #endregion submit

// #region host-summary
// HostSummary calls ledger_getHostSummary for host.
func (h *HTTPChannel) HostSummary(ctx context.Context, host string) (verdict.HostSummary, error) {
	result, err := h.call(ctx, OpHostSummary, "summary-"+host, "ledger_getHostSummary", []any{host})
	if err != nil {
		return verdict.HostSummary{}, err
	}
	var summary verdict.HostSummary
	if err := json.Unmarshal(result, &summary); err != nil {
		return verdict.HostSummary{}, &verdict.MalformedError{Reason: fmt.Sprintf("host summary: %v", err)}
	}
	return summary, nil
}

// #endregion host-summary

// #region transport
func (h *HTTPChannel) call(ctx context.Context, op, id, method string, params []any) (json.RawMessage, error) {
	if h.rpcURL == "" {
		return nil, &verdict.ChannelError{Op: op, Err: fmt.Errorf("no rpc url configured")}
	}
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, &verdict.ChannelError{Op: op, Err: fmt.Errorf("marshal request: %w", err)}
	}
	raw, err := h.post(ctx, op, h.rpcURL, body)
	if err != nil {
		return nil, err
	}
	var resp rpcResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &verdict.MalformedError{Reason: fmt.Sprintf("json-rpc envelope: %v", err)}
	}
	if resp.Error != nil {
		return nil, &verdict.ChannelError{Op: op, Status: resp.Error.Code, Err: fmt.Errorf("rpc error: %s", resp.Error.Message)}
	}
	if len(resp.Result) == 0 || string(resp.Result) == "null" {
		return nil, &verdict.MalformedError{Reason: "json-rpc response has no result"}
	}
	return resp.Result, nil
}

func (h *HTTPChannel) post(ctx context.Context, op, url string, body []byte) ([]byte, error) {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return nil, &verdict.ChannelError{Op: op, Err: err}
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &verdict.ChannelError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &verdict.ChannelError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &verdict.ChannelError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &verdict.ChannelError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("http %s", http.StatusText(resp.StatusCode))}
	}
	return raw, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// #endregion transport
