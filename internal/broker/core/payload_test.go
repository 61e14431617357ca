package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClonePayload(t *testing.T) {
	orig := Payload{
		"moduleType": "CLIMATE",
		"climateControlData": map[string]any{
			"fanSpeed": float64(40),
			"zones":    []any{"driver", int64(2)},
		},
	}

	c, err := ClonePayload(orig)
	require.NoError(t, err)
	assert.Equal(t, orig, c)

	c["climateControlData"].(map[string]any)["fanSpeed"] = float64(10)
	assert.Equal(t, float64(40), orig["climateControlData"].(map[string]any)["fanSpeed"])

	nilCopy, err := ClonePayload(nil)
	require.NoError(t, err)
	assert.Nil(t, nilCopy)
}

func TestClonePayloadRejectsNonJSON(t *testing.T) {
	_, err := ClonePayload(Payload{"a": map[string]any{"b": []any{3}}})
	require.ErrorIs(t, err, ErrNotJSON)
	assert.Contains(t, err.Error(), ".a.b[0]")
}

func TestAccessors(t *testing.T) {
	p := Payload{"s": "x", "f": float64(1.5), "i": int64(3), "o": map[string]any{}}

	s, ok := String(p, "s")
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	n, ok := Number(p, "i")
	assert.True(t, ok)
	assert.Equal(t, 3.0, n)

	_, ok = Number(p, "s")
	assert.False(t, ok)

	_, ok = Object(p, "o")
	assert.True(t, ok)
}
