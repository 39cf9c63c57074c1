package email

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPSendTemplate(t *testing.T) {
	provider := NewSMTP(Config{Host: "smtp.example.com", Port: 587, From: "no-reply@metalid.local"})

	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	provider.send = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr = addr
		gotTo = to
		gotMsg = string(msg)
		return nil
	}

	err := provider.SendTemplate(context.Background(), []string{"taro@example.com"}, "confirm_email", map[string]any{
		"confirm_url":   "https://metalid.example.com/auth/callback?code=abc&next=/my/edit",
		"expires_hours": 24,
	})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"taro@example.com"}, gotTo)
	assert.True(t, strings.Contains(gotMsg, "Subject: 【METALID】メールアドレスの確認\r\n"))
	assert.Contains(t, gotMsg, "https://metalid.example.com/auth/callback?code=abc&amp;next=/my/edit")
}

func TestSMTPSendRequiresRecipients(t *testing.T) {
	provider := NewSMTP(Config{Host: "smtp.example.com", Port: 587})
	assert.Error(t, provider.Send(context.Background(), nil, "subject", "body"))
}

func TestUnknownTemplate(t *testing.T) {
	err := NewNoOp(nil).SendTemplate(context.Background(), []string{"a@example.com"}, "missing", nil)
	assert.Error(t, err)
}
