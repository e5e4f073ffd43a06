package proto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
)

func TestJSONCodecRegistered(t *testing.T) {
	c := encoding.GetCodec(CodecName)
	require.NotNil(t, c)

	b, err := c.Marshal(&TokenResponse{AccessToken: "a", AccessExpiresAt: 10, RefreshToken: "r", RefreshExpiresAt: 20})
	require.NoError(t, err)
	assert.JSONEq(t, `{"access_token":"a","access_expires_at":10,"refresh_token":"r","refresh_expires_at":20}`, string(b))

	var out TokenResponse
	require.NoError(t, c.Unmarshal(b, &out))
	assert.Equal(t, "r", out.RefreshToken)
}

func TestServiceDescCoversServer(t *testing.T) {
	names := map[string]bool{}
	for _, m := range AuthService_ServiceDesc.Methods {
		names[m.MethodName] = true
	}
	for _, want := range []string{"Login", "Refresh", "Logout", "LogoutEverywhere", "Sessions", "Ping"} {
		assert.True(t, names[want], want)
	}
}
