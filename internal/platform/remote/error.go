package remote

import (
	"context"
	"errors"
	"net/http"
	"strings"

	apperrors "github.com/louisbranch/storefront/internal/platform/errors"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/status"
)

// Error is the uniform description of a failed remote call.
type Error struct {
	Status  int               // HTTP status when known, zero otherwise
	Code    string            // Optional server-reported code
	Message string            // Human-readable server or transport message
	Fields  map[string]string // Server-reported field errors
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "remote error"
	}
	message := strings.TrimSpace(e.Message)
	if message == "" {
		message = "remote request failed"
	}
	if e.Code == "" {
		return message
	}
	return e.Code + ": " + message
}

// Unwrap exposes the transport-level cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Normalize converts any failure into *Error. gRPC status errors keep their
// code and BadRequest field violations; context failures become network
// failures.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	var remoteErr *Error
	if errors.As(err, &remoteErr) && remoteErr != nil {
		return remoteErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{
			Code:    string(apperrors.CodeNetworkFailure),
			Message: err.Error(),
			Cause:   err,
		}
	}
	if st, ok := status.FromError(err); ok {
		normalized := &Error{
			Code:    string(apperrors.CodeFromGRPC(st.Code())),
			Message: st.Message(),
			Cause:   err,
		}
		for _, detail := range st.Details() {
			badRequest, ok := detail.(*errdetails.BadRequest)
			if !ok {
				continue
			}
			for _, violation := range badRequest.GetFieldViolations() {
				if normalized.Fields == nil {
					normalized.Fields = make(map[string]string)
				}
				normalized.Fields[violation.GetField()] = violation.GetDescription()
			}
		}
		return normalized
	}
	return &Error{
		Code:    string(apperrors.CodeNetworkFailure),
		Message: err.Error(),
		Cause:   err,
	}
}

// Classify maps a remote failure onto the domain taxonomy. The returned error
// is an *apperrors.Error wrapping the normalized *Error.
func Classify(err error) error {
	normalized := Normalize(err)
	if normalized == nil {
		return nil
	}
	code := classifyCode(normalized)
	metadata := map[string]string{"Message": normalized.Message}
	for field, description := range normalized.Fields {
		metadata["Field."+field] = description
	}
	return apperrors.WrapWithMetadata(code, normalized.Error(), metadata, normalized)
}

func classifyCode(err *Error) apperrors.Code {
	switch apperrors.Code(strings.ToUpper(strings.TrimSpace(err.Code))) {
	case apperrors.CodeAuthenticationRequired, "UNAUTHENTICATED", "UNAUTHORIZED":
		return apperrors.CodeAuthenticationRequired
	case apperrors.CodeNotFound:
		return apperrors.CodeNotFound
	case apperrors.CodeValidationFailure, "INVALID_ARGUMENT", "VALIDATION_ERROR":
		return apperrors.CodeValidationFailure
	}
	switch {
	case err.Status == http.StatusUnauthorized:
		return apperrors.CodeAuthenticationRequired
	case err.Status == http.StatusNotFound:
		return apperrors.CodeNotFound
	case err.Status == http.StatusBadRequest, err.Status == http.StatusUnprocessableEntity, len(err.Fields) > 0:
		return apperrors.CodeValidationFailure
	default:
		return apperrors.CodeNetworkFailure
	}
}
