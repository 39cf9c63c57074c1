package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/metalid/internal/clock"
	"github.com/smallbiznis/metalid/internal/config"
	memberdomain "github.com/smallbiznis/metalid/internal/member/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerSetAndRead(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fake := clock.NewFakeClock(time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC))
	manager := NewManager(config.Config{AuthCookieSecure: true}, fake)

	resp := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(resp)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	manager.Set(c, "raw-token", fake.Now().Add(time.Hour))

	cookies := resp.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DefaultCookieName, cookies[0].Name)
	assert.Equal(t, 3600, cookies[0].MaxAge)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)

	readResp := httptest.NewRecorder()
	rc, _ := gin.CreateTestContext(readResp)
	rc.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	rc.Request.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "raw-token"})
	token, ok := manager.ReadToken(rc)
	assert.True(t, ok)
	assert.Equal(t, "raw-token", token)
}

func TestPrincipalContext(t *testing.T) {
	assert.Nil(t, PrincipalFromContext(context.Background()))

	principal := &Principal{IdentityID: "1", Member: &memberdomain.Member{ID: "000001", IsAdmin: true}}
	ctx := WithPrincipal(context.Background(), principal)
	got := PrincipalFromContext(ctx)
	require.NotNil(t, got)
	assert.Equal(t, "000001", got.MemberID())
	assert.True(t, got.IsAdmin())

	var anonymous *Principal
	assert.False(t, anonymous.IsAdmin())
	assert.Empty(t, anonymous.MemberID())
}
