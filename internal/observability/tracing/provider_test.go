package tracing

import (
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsSensitiveKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/register"),
		attribute.String("invite_token", "abc"),
		attribute.String("user.email", "a@example.com"),
	)
	if len(attrs) != 1 || attrs[0].Key != "http.route" {
		t.Fatalf("unexpected attributes: %v", attrs)
	}
}

func TestSafeErrorRedacts(t *testing.T) {
	if SafeError(nil) != nil {
		t.Fatal("expected nil")
	}
	if got := SafeError(errors.New("invalid token abc")); got.Error() != "redacted error" {
		t.Fatalf("expected redacted error, got %v", got)
	}
	plain := errors.New("db closed")
	if got := SafeError(plain); got != plain {
		t.Fatalf("expected original error, got %v", got)
	}
}

func TestNewProviderDisabled(t *testing.T) {
	provider, err := NewProvider(nil, Config{ServiceName: "metalid", ServiceVersion: "0.1.0", Environment: "test"}, nil)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if provider == nil {
		t.Fatal("expected provider")
	}
}
