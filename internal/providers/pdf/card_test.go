package pdf

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderCard(t *testing.T) {
	out, err := New().RenderCard(context.Background(), CardData{
		MemberID:  "000123",
		InviteURL: "https://metalid.example.com/register?token=abc",
		PublicURL: "https://metalid.example.com/u/000123",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderCardRequiresInvite(t *testing.T) {
	_, err := New().RenderCard(context.Background(), CardData{MemberID: "000123"})
	assert.ErrorIs(t, err, ErrMissingInviteURL)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "metalid-card-000123.pdf", New().FileName("000123"))
}
