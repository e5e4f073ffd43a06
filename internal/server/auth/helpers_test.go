package auth

import (
	"fmt"
	"testing"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/timex"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testIssuer   = "tokenkeeper-test"
	testAudience = "tokenkeeper-test-clients"
)

var testStart = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestKey(t *testing.T) *SigningKey {
	t.Helper()
	k, err := NewSigningKey([]byte(testSecret), testIssuer, testAudience)
	require.NoError(t, err)
	return k
}

func newTestCodec(t *testing.T, skew time.Duration) (*Codec, *timex.FakeClock) {
	t.Helper()
	clock := timex.NewFakeClock(testStart)
	return NewCodec(newTestKey(t), skew, clock), clock
}

// sequentialIDs yields jti-1, jti-2, ...
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("jti-%d", n)
	}
}
