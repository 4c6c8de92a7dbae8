package gwerr

import (
	"errors"
	"testing"
)

func TestIsPermanent(t *testing.T) {
	permanent := []Kind{InvalidRequest, Unauthenticated, Forbidden, NotFound, ContentFiltered, ContextLengthExceeded, ToolValidationError}
	for _, k := range permanent {
		if !IsPermanent(k) {
			t.Errorf("expected %s to be permanent", k)
		}
		if IsTransient(k) {
			t.Errorf("expected %s to not be transient", k)
		}
	}
}

func TestIsTransient(t *testing.T) {
	transient := []Kind{ProviderRateLimited, ProviderTimeout, ProviderUnavailable, UpstreamProtocolError, CapacityExceeded}
	for _, k := range transient {
		if !IsTransient(k) {
			t.Errorf("expected %s to be transient", k)
		}
		if IsPermanent(k) {
			t.Errorf("expected %s to not be permanent", k)
		}
	}
}

func TestRateLimited_NeitherPermanentNorFallbackTransient(t *testing.T) {
	// rate_limited is a caller throttle: retryable by the caller later, but
	// must never trigger an internal fallback to another provider.
	if IsPermanent(RateLimited) {
		t.Errorf("rate_limited must not be permanent")
	}
	if IsTransient(RateLimited) {
		t.Errorf("rate_limited must not trigger fallback")
	}
}

func TestKindOf_UntypedErrorDefaultsToInternal(t *testing.T) {
	base := New(ProviderTimeout, "upstream took too long")
	wrapped := errors.New("context: " + base.Error())
	if KindOf(wrapped) != Internal {
		t.Errorf("expected a plain wrapped string error to default to internal")
	}
	if KindOf(base) != ProviderTimeout {
		t.Errorf("expected KindOf to recover the original kind")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		InvalidRequest: 400,
		Unauthenticated: 401,
		Forbidden:       403,
		NotFound:        404,
		RateLimited:     429,
		CapacityExceeded: 503,
		Cancelled:       499,
		Internal:        500,
	}
	for k, want := range cases {
		if got := k.HTTPStatus(); got != want {
			t.Errorf("%s: got %d, want %d", k, got, want)
		}
	}
}

func TestWrap_UnwrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ProviderUnavailable, "dial failed", cause)
	if !errors.Is(err, cause) {
		t.Errorf("expected errors.Is to find the wrapped cause")
	}
}
