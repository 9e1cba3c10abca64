package cycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	for _, index := range []int{-1, 0, 7, 1299} {
		got, err := decodeCursor(encodeCursor(index))
		require.NoError(t, err)
		assert.Equal(t, index, got)
	}
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := decodeCursor("not base64!!")
	assert.Error(t, err)

	// Well-formed base64, wrong version prefix.
	_, err = decodeCursor("djI6NQ") // "v2:5"
	assert.Error(t, err)
}
