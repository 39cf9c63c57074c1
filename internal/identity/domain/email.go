package domain

import (
	"net/mail"
	"net/url"
	"strings"
)

// DefaultNextPath is where a confirmed member lands.
const DefaultNextPath = "/my/edit"

// NormalizeEmail accepts a bare address only and returns it lower-cased.
func NormalizeEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed || addr.Name != "" {
		return "", ErrInvalidEmail
	}
	at := strings.LastIndex(addr.Address, "@")
	if at <= 0 || !strings.Contains(addr.Address[at:], ".") {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}

// SafeNext returns next when it is a same-origin relative path, otherwise
// the default landing page.
func SafeNext(next string) string {
	next = strings.TrimSpace(next)
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return DefaultNextPath
	}
	parsed, err := url.Parse(next)
	if err != nil || parsed.IsAbs() || parsed.Host != "" {
		return DefaultNextPath
	}
	return next
}
