package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerb(t *testing.T) {
	for in, want := range map[string]Verb{"GET": VerbGET, "post": VerbPOST, "Put": VerbPUT} {
		got, err := ParseVerb(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	for _, in := range []string{"DELETE", "PATCH", "", "GETX"} {
		_, err := ParseVerb(in)
		assert.ErrorIs(t, err, ErrUnsupportedVerb, in)
	}
}

func TestVerbString(t *testing.T) {
	assert.Equal(t, "GET", VerbGET.String())
	assert.Equal(t, "POST", VerbPOST.String())
	assert.Equal(t, "PUT", VerbPUT.String())
	assert.Equal(t, "Verb(9)", Verb(9).String())
}
