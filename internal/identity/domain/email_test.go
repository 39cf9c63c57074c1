package domain

import "testing"

func TestNormalizeEmail(t *testing.T) {
	got, err := NormalizeEmail("  Taro@Example.COM ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "taro@example.com" {
		t.Fatalf("expected lower-cased address, got %q", got)
	}

	for _, raw := range []string{"", "taro", "taro@", "Taro <taro@example.com>", "taro@localhost", "a b@example.com"} {
		if _, err := NormalizeEmail(raw); err != ErrInvalidEmail {
			t.Fatalf("expected ErrInvalidEmail for %q, got %v", raw, err)
		}
	}
}

func TestSafeNext(t *testing.T) {
	cases := map[string]string{
		"":                         "/my/edit",
		"/my":                      "/my",
		"/u/000123?tab=links":      "/u/000123?tab=links",
		"https://evil.example.com": "/my/edit",
		"//evil.example.com":       "/my/edit",
		"/\\evil.example.com":      "/my/edit",
		"my/edit":                  "/my/edit",
	}
	for input, want := range cases {
		if got := SafeNext(input); got != want {
			t.Fatalf("SafeNext(%q) = %q, want %q", input, got, want)
		}
	}
}
