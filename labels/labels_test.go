package labels

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidateDescription tests validation of descriptions.
func TestValidateDescription(t *testing.T) {
	atLimit := strings.Repeat("a", MaxDescriptionLength)

	tests := []struct {
		name        string
		description string
		err         error
	}{
		{
			name:        "description ok",
			description: "coffee",
			err:         nil,
		},
		{
			name:        "empty",
			description: "",
			err:         nil,
		},
		{
			name:        "exactly at limit",
			description: atLimit,
			err:         nil,
		},
		{
			name:        "exceeds limit",
			description: atLimit + " ",
			err:         ErrDescriptionTooLong,
		},
	}

	for _, test := range tests {
		test := test

		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(
				t, test.err, ValidateDescription(test.description),
			)
		})
	}
}

func TestGenerated(t *testing.T) {
	require.Equal(t, "breez-1700000000123",
		Generated(time.UnixMilli(1_700_000_000_123)))
}
