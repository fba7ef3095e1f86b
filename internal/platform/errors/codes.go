// Package errors provides the structured error taxonomy of the sync layer.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Cart ledger invariant violations. These are detected locally and never
	// reach the network.
	CodeCrossStoreConflict Code = "CROSS_STORE_CONFLICT"
	CodeInsufficientStock  Code = "INSUFFICIENT_STOCK"

	// Identity
	CodeAuthenticationRequired Code = "AUTHENTICATION_REQUIRED"

	// Remote failures, observable only after a mutation was attempted.
	CodeNetworkFailure    Code = "NETWORK_FAILURE"
	CodeNotFound          Code = "NOT_FOUND"
	CodeValidationFailure Code = "VALIDATION_FAILURE"

	// Pipeline and chat state
	CodeMutationInFlight      Code = "MUTATION_IN_FLIGHT"
	CodeConversationNotActive Code = "CONVERSATION_NOT_ACTIVE"
)

// Local reports whether the code describes a locally detected rejection.
func (c Code) Local() bool {
	switch c {
	case CodeCrossStoreConflict, CodeInsufficientStock, CodeMutationInFlight, CodeConversationNotActive:
		return true
	default:
		return false
	}
}

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeValidationFailure:
		return codes.InvalidArgument
	case CodeCrossStoreConflict,
		CodeInsufficientStock,
		CodeConversationNotActive:
		return codes.FailedPrecondition
	case CodeMutationInFlight:
		return codes.Aborted
	case CodeAuthenticationRequired:
		return codes.Unauthenticated
	case CodeNotFound:
		return codes.NotFound
	case CodeNetworkFailure:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// CodeFromGRPC maps a gRPC status code reported by a remote backend to the
// closest domain code.
func CodeFromGRPC(code codes.Code) Code {
	switch code {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange, codes.AlreadyExists:
		return CodeValidationFailure
	case codes.Unauthenticated:
		return CodeAuthenticationRequired
	case codes.NotFound:
		return CodeNotFound
	default:
		return CodeNetworkFailure
	}
}
