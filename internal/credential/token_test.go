package credential

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeParse(t *testing.T) {
	id := NewID()
	tok, err := Encode(id)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tok, "TKT1"))
	assert.Len(t, tok, 4+22)

	got, err := Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestParseAcceptsRawIDInAnyCase(t *testing.T) {
	id := NewID()
	got, err := Parse("  " + strings.ToUpper(id) + " ")
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "hello", "TKT1", "TKT1!!!!", "TKT1" + strings.Repeat("A", 10)} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrMalformed, in)
	}
	_, err := Encode("not-a-uuid")
	assert.ErrorIs(t, err, ErrMalformed)
}
