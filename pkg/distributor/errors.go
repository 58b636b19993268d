package distributor

import "fmt"

// ErrorKind tags the distributor's error taxonomy.
type ErrorKind int

const (
	// ErrNoInstancesFound means discovery has no healthy instance for a
	// service, so a rollout has nothing to push to.
	ErrNoInstancesFound ErrorKind = iota
	// ErrInstanceUnreachable means a control-plane RPC to an instance
	// failed at the transport level.
	ErrInstanceUnreachable
	// ErrPolicyRejected means an instance's Apply call returned Rejected.
	ErrPolicyRejected
	// ErrDeploymentInProgress means a non-terminal Deployment already
	// exists for the requested service.
	ErrDeploymentInProgress
	// ErrTimeout means an operation exceeded its deadline.
	ErrTimeout
	// ErrStateError means the distributor found inconsistent or
	// unrecoverable local state (e.g. a non-terminal Deployment left over
	// from a crash).
	ErrStateError
)

func (k ErrorKind) String() string {
	switch k {
	case ErrNoInstancesFound:
		return "no_instances_found"
	case ErrInstanceUnreachable:
		return "instance_unreachable"
	case ErrPolicyRejected:
		return "policy_rejected"
	case ErrDeploymentInProgress:
		return "deployment_in_progress"
	case ErrTimeout:
		return "timeout"
	case ErrStateError:
		return "state_error"
	default:
		return "unknown"
	}
}

// Error is the distributor's tagged error type. It wraps a Cause when one
// exists so callers can still errors.Is/errors.As through to a transport or
// context error.
type Error struct {
	Kind    ErrorKind
	Service string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("distributor: %s", e.Kind)
	if e.Service != "" {
		msg += fmt.Sprintf(" service=%s", e.Service)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// IsRetryable reports whether the failure is transient. InstanceUnreachable,
// Timeout, and connection-flavored causes are retried by the push loop;
// PolicyRejected and StateError are terminal for the affected instance.
func (e *Error) IsRetryable() bool {
	switch e.Kind {
	case ErrInstanceUnreachable, ErrTimeout:
		return true
	default:
		return false
	}
}

// GRPCCode maps the error's Kind to the standard grpc-style status code used
// by the control-plane RPC layer, so the transport boundary can translate
// without a subsystem-specific switch of its own.
func (e *Error) GRPCCode() int {
	switch e.Kind {
	case ErrNoInstancesFound:
		return 5 // NOT_FOUND
	case ErrInstanceUnreachable:
		return 14 // UNAVAILABLE
	case ErrPolicyRejected:
		return 3 // INVALID_ARGUMENT
	case ErrDeploymentInProgress:
		return 6 // ALREADY_EXISTS
	case ErrTimeout:
		return 4 // DEADLINE_EXCEEDED
	case ErrStateError:
		return 13 // INTERNAL
	default:
		return 13
	}
}
