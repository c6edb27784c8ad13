package normalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/tutoragent/internal/foundation/errors"
)

type level string

const (
	levelLow  level = "low"
	levelHigh level = "high"
)

func newLevels() *Normalizer[level] {
	return New("level", map[string]level{
		"low":  levelLow,
		"high": levelHigh,
		"HI":   levelHigh,
	}, levelLow)
}

func TestNormalize(t *testing.T) {
	n := newLevels()
	tests := []struct {
		input string
		want  level
	}{
		{"low", levelLow},
		{"  HIGH ", levelHigh},
		{"hi", levelHigh},
		{"", levelLow},
		{"extreme", levelLow},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.input))
		})
	}
}

func TestParse(t *testing.T) {
	n := newLevels()

	v, err := n.Parse("High")
	require.NoError(t, err)
	assert.Equal(t, levelHigh, v)

	v, err = n.Parse("   ")
	require.NoError(t, err)
	assert.Equal(t, levelLow, v)

	_, err = n.Parse("extreme")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
	assert.Contains(t, err.Error(), "invalid level")

	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, "hi, high, low", ce.Context()["valid"])
}

func TestKeysAreCopied(t *testing.T) {
	n := newLevels()
	keys := n.Keys()
	keys[0] = "mutated"
	assert.Equal(t, []string{"hi", "high", "low"}, n.Keys())
}
