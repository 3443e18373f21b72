package channel

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/verdict"
)

// #region client-struct
// GRPCChannel reaches the decision authority over gRPC.
type GRPCChannel struct {
	conn   *grpc.ClientConn
	client AuthorityClient
}

// #endregion client-struct

// #region constructor
// NewGRPCChannel connects to the authority's gRPC server.
func NewGRPCChannel(addr string, opts ...grpc.DialOption) (*GRPCChannel, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &GRPCChannel{
		conn:   conn,
		client: NewAuthorityClient(conn),
	}, nil
}

// NewGRPCChannelWithService creates a GRPCChannel with an injected client.
// Used for testing without a real gRPC connection.
func NewGRPCChannelWithService(svc AuthorityClient) *GRPCChannel {
	return &GRPCChannel{client: svc}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *GRPCChannel) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region evaluate
// Evaluate asks the authority to check a batch against its policy.
func (c *GRPCChannel) Evaluate(ctx context.Context, req verdict.BatchRequest) ([]verdict.Check, error) {
	in, err := toStruct(req)
	if err != nil {
		return nil, &verdict.ChannelError{Op: OpCheckInvariants, Err: err}
	}
	resp, err := c.client.CheckInvariants(ctx, in)
	if err != nil {
		return nil, statusError(OpCheckInvariants, err)
	}
	return verdict.DecodeChecks(resp.AsMap())
}

// #endregion evaluate

// #region submit
// Submit proposes an evolution frame and returns the raw decision.
func (c *GRPCChannel) Submit(ctx context.Context, frame verdict.EvolutionFrame) (verdict.RawDecision, error) {
	in, err := toStruct(frame)
	if err != nil {
		return verdict.RawDecision{}, &verdict.ChannelError{Op: OpSubmitFrame, Err: err}
	}
	resp, err := c.client.SubmitEvolutionFrame(ctx, in)
	if err != nil {
		return verdict.RawDecision{}, statusError(OpSubmitFrame, err)
	}
	return verdict.DecodeRawDecision(resp.AsMap())
}

// #endregion submit

// #region host-summary
// HostSummary fetches the ledger's summary for host.
func (c *GRPCChannel) HostSummary(ctx context.Context, host string) (verdict.HostSummary, error) {
	in, err := structpb.NewStruct(map[string]any{"host": host})
	if err != nil {
		return verdict.HostSummary{}, &verdict.ChannelError{Op: OpHostSummary, Err: err}
	}
	resp, err := c.client.GetHostSummary(ctx, in)
	if err != nil {
		return verdict.HostSummary{}, statusError(OpHostSummary, err)
	}
	raw, err := resp.MarshalJSON()
	if err != nil {
		return verdict.HostSummary{}, &verdict.MalformedError{Reason: fmt.Sprintf("host summary: %v", err)}
	}
	var summary verdict.HostSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return verdict.HostSummary{}, &verdict.MalformedError{Reason: fmt.Sprintf("host summary: %v", err)}
	}
	return summary, nil
}

// #endregion host-summary

// #region helpers
// toStruct converts a JSON-tagged value into a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal request: %w", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("build struct: %w", err)
	}
	return s, nil
}

func statusError(op string, err error) error {
	st, _ := status.FromError(err)
	return &verdict.ChannelError{Op: op, Status: int(st.Code()), Err: err}
}

// #endregion helpers
