package breez

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserAgent(t *testing.T) {
	require.Equal(t,
		fmt.Sprintf("breez-sdk-go/v0.1.0-alpha/commit=%s", Commit),
		UserAgent(""),
	)

	// Unsafe characters are dropped and long initiators are truncated.
	require.Equal(t,
		fmt.Sprintf("breez-sdk-go/v0.1.0-alpha/commit=%s,"+
			"initiator=cli test", Commit),
		UserAgent(" cli <test>\n"),
	)

	agent := UserAgent(strings.Repeat("a", 300))
	require.True(t, strings.HasSuffix(agent, strings.Repeat("a", 139)))
	require.False(t, strings.HasSuffix(agent, strings.Repeat("a", 140)))
}
