package apperrors

import (
	"errors"
	"testing"
)

func TestErrorMessageWithAndWithoutCause(t *testing.T) {
	plain := New(BadInput, "missing input")
	if plain.Error() != "[BAD_INPUT] missing input" {
		t.Errorf("Error() = %q", plain.Error())
	}

	cause := errors.New("boom")
	wrapped := Wrap(cause, Internal, "unexpected failure")
	if wrapped.Error() != "[INTERNAL] unexpected failure: boom" {
		t.Errorf("Error() = %q", wrapped.Error())
	}
	if !errors.Is(wrapped, cause) {
		t.Errorf("errors.Is(wrapped, cause) = false, want true via Unwrap")
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		BadInput:            400,
		UnsupportedFormat:   415,
		DurationExceeded:    413,
		UpstreamTimeout:     504,
		UpstreamUnavailable: 503,
		UpstreamAuth:        401,
		UpstreamRateLimited: 429,
		ContextLength:       400,
		VectorDimMismatch:   409,
		Cancelled:           499,
		DeadlineExceeded:    504,
		Internal:            500,
	}
	for kind, want := range cases {
		if got := New(kind, "x").HTTPStatus(); got != want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", kind, got, want)
		}
	}
}

func TestKindOfDefaultsToInternalForForeignErrors(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != Internal {
		t.Errorf("KindOf(plain error) = %s, want INTERNAL", got)
	}
	if got := KindOf(New(BadInput, "x")); got != BadInput {
		t.Errorf("KindOf(*Error) = %s, want BAD_INPUT", got)
	}
}

func TestRetryableOnlyForUpstreamTransientKinds(t *testing.T) {
	retryable := []Kind{UpstreamTimeout, UpstreamUnavailable, UpstreamRateLimited}
	for _, k := range retryable {
		if !Retryable(New(k, "x")) {
			t.Errorf("Retryable(%s) = false, want true", k)
		}
	}

	notRetryable := []Kind{BadInput, UnsupportedFormat, DurationExceeded, UpstreamAuth, ContextLength, VectorDimMismatch, Cancelled, DeadlineExceeded, Internal}
	for _, k := range notRetryable {
		if Retryable(New(k, "x")) {
			t.Errorf("Retryable(%s) = true, want false", k)
		}
	}
}

func TestIsMatchesOnlyExactKind(t *testing.T) {
	err := New(UpstreamTimeout, "slow upstream")
	if !Is(err, UpstreamTimeout) {
		t.Error("Is(err, UpstreamTimeout) = false, want true")
	}
	if Is(err, Internal) {
		t.Error("Is(err, Internal) = true, want false")
	}
	if Is(errors.New("plain"), UpstreamTimeout) {
		t.Error("Is(plain error, ...) = true, want false")
	}
}
