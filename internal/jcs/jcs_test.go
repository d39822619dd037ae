package jcs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeKeyOrdering(t *testing.T) {
	in := map[string]interface{}{
		"zeta":  1.0,
		"alpha": "x",
		"beta":  true,
	}
	out, err := Canonicalize(in)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":"x","beta":true,"zeta":1}`, string(out))
}

func TestCanonicalizeNested(t *testing.T) {
	in := map[string]interface{}{
		"data": map[string]interface{}{"b": 2.0, "a": 1.0},
		"list": []interface{}{1.0, "two", false},
	}
	out, err := Canonicalize(in)
	require.NoError(t, err)
	assert.Equal(t, `{"data":{"a":1,"b":2},"list":[1,"two",false]}`, string(out))
}

func TestCanonicalizeIsDeterministic(t *testing.T) {
	in := map[string]interface{}{"verusId": "buyer@", "timestamp": 1700000000.0, "nonce": "n1", "action": "register", "data": map[string]interface{}{"k": "v"}}
	a, err := Canonicalize(in)
	require.NoError(t, err)
	b, err := Canonicalize(in)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEncodeStringEscaping(t *testing.T) {
	out, err := Canonicalize("a\"b\nc")
	require.NoError(t, err)
	assert.Equal(t, `"a\"b\nc"`, string(out))
}
