package verdict

import (
	"errors"
	"fmt"
	"strings"
)

// #region sentinels
// Sentinels for errors.Is. Every typed error below matches exactly one of them.
var (
	ErrChannel        = errors.New("channel error")
	ErrMalformed      = errors.New("malformed verdict")
	ErrUnknownVerdict = errors.New("unknown verdict")
	ErrAuditWrite     = errors.New("audit write failure")
)

// #endregion sentinels

// #region channel-error
// ChannelError reports a transport, status, or cancellation failure while
// talking to the decision authority.
type ChannelError struct {
	Op     string // "check_invariants" | "submit_frame" | "host_summary"
	Status int    // HTTP status or JSON-RPC error code; 0 when not applicable
	Err    error
}

func (e *ChannelError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", ErrChannel, e.Op)
	if e.Status != 0 {
		fmt.Fprintf(&b, " status %d", e.Status)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ChannelError) Unwrap() error        { return e.Err }
func (e *ChannelError) Is(target error) bool { return target == ErrChannel }

// #endregion channel-error

// #region malformed-error
// MalformedError reports a response that violates the verdict contract.
type MalformedError struct {
	Reason string
	Checks []string // offending check names, when the defect is per-check
}

func (e *MalformedError) Error() string {
	if len(e.Checks) == 0 {
		return fmt.Sprintf("%s: %s", ErrMalformed, e.Reason)
	}
	return fmt.Sprintf("%s: %s [%s]", ErrMalformed, e.Reason, strings.Join(e.Checks, ","))
}

func (e *MalformedError) Is(target error) bool { return target == ErrMalformed }

// #endregion malformed-error

// #region unknown-verdict-error
// UnknownVerdictError reports a frame verdict outside Safe/Defer/Deny.
type UnknownVerdictError struct {
	Verdict string
}

func (e *UnknownVerdictError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownVerdict, e.Verdict)
}

func (e *UnknownVerdictError) Is(target error) bool { return target == ErrUnknownVerdict }

// #endregion unknown-verdict-error

// #region audit-write-error
// AuditWriteError reports that no sink durably confirmed a round's record.
type AuditWriteError struct {
	RoundID string
	Err     error
}

func (e *AuditWriteError) Error() string {
	return fmt.Sprintf("%s: round %s: %v", ErrAuditWrite, e.RoundID, e.Err)
}

func (e *AuditWriteError) Unwrap() error        { return e.Err }
func (e *AuditWriteError) Is(target error) bool { return target == ErrAuditWrite }

// #endregion audit-write-error
