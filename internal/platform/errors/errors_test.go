package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	t.Parallel()

	err := WithMetadata(CodeInsufficientStock, "only 2 left", map[string]string{"Available": "2"})
	wrapped := fmt.Errorf("add item: %w", err)

	if !stderrors.Is(wrapped, ErrInsufficientStock) {
		t.Fatal("expected wrapped error to match ErrInsufficientStock")
	}
	if stderrors.Is(wrapped, ErrCrossStoreConflict) {
		t.Fatal("did not expect match with ErrCrossStoreConflict")
	}
	if got := CodeOf(wrapped); got != CodeInsufficientStock {
		t.Fatalf("CodeOf = %q, want %q", got, CodeInsufficientStock)
	}
}

func TestWrapExposesCause(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("connection reset")
	err := Wrap(CodeNetworkFailure, "send message", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
	if err.Error() != "send message" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestWithMetadataCopiesInput(t *testing.T) {
	t.Parallel()

	metadata := map[string]string{"StoreID": "store-a"}
	err := WithMetadata(CodeCrossStoreConflict, "conflict", metadata)
	metadata["StoreID"] = "mutated"
	if err.Metadata["StoreID"] != "store-a" {
		t.Fatalf("metadata = %v, want copy", err.Metadata)
	}
}

func TestCodeOf(t *testing.T) {
	t.Parallel()

	if got := CodeOf(nil); got != "" {
		t.Fatalf("CodeOf(nil) = %q, want empty", got)
	}
	if got := CodeOf(stderrors.New("plain")); got != CodeUnknown {
		t.Fatalf("CodeOf(plain) = %q, want %q", got, CodeUnknown)
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		code Code
		want codes.Code
	}{
		{code: CodeValidationFailure, want: codes.InvalidArgument},
		{code: CodeCrossStoreConflict, want: codes.FailedPrecondition},
		{code: CodeInsufficientStock, want: codes.FailedPrecondition},
		{code: CodeAuthenticationRequired, want: codes.Unauthenticated},
		{code: CodeNotFound, want: codes.NotFound},
		{code: CodeNetworkFailure, want: codes.Unavailable},
		{code: CodeMutationInFlight, want: codes.Aborted},
		{code: CodeUnknown, want: codes.Internal},
	}
	for _, tc := range testCases {
		if got := tc.code.GRPCCode(); got != tc.want {
			t.Fatalf("%s.GRPCCode() = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestCodeFromGRPC(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in   codes.Code
		want Code
	}{
		{in: codes.InvalidArgument, want: CodeValidationFailure},
		{in: codes.Unauthenticated, want: CodeAuthenticationRequired},
		{in: codes.NotFound, want: CodeNotFound},
		{in: codes.Unavailable, want: CodeNetworkFailure},
		{in: codes.DeadlineExceeded, want: CodeNetworkFailure},
	}
	for _, tc := range testCases {
		if got := CodeFromGRPC(tc.in); got != tc.want {
			t.Fatalf("CodeFromGRPC(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLocalCodes(t *testing.T) {
	t.Parallel()

	if !CodeCrossStoreConflict.Local() || !CodeInsufficientStock.Local() {
		t.Fatal("expected cart invariant codes to be local")
	}
	if CodeNetworkFailure.Local() || CodeValidationFailure.Local() {
		t.Fatal("expected remote codes to be non-local")
	}
}
