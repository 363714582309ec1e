package narrative

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTags(t *testing.T) {
	tags := []string{
		"chapter:3",
		"situation:palace_coup",
		"mood:tense",
		"weather:storm",
	}

	parsed := ParseTags(tags)

	require.NotNil(t, parsed.Chapter)
	assert.Equal(t, 3, *parsed.Chapter)
	assert.Equal(t, "palace_coup", parsed.Situation)
	assert.Equal(t, map[string]string{"mood": "tense", "weather": "storm"}, parsed.Metadata)
}

func TestParseTags_IgnoresMalformed(t *testing.T) {
	tags := []string{
		"no-colon-at-all",
		"chapter:not-a-number",
		":orphan-value",
		"orphan-key:",
	}

	parsed := ParseTags(tags)

	assert.Nil(t, parsed.Chapter)
	assert.Empty(t, parsed.Situation)
	assert.Empty(t, parsed.Metadata)
}

func TestParseTags_LastWriteWins(t *testing.T) {
	parsed := ParseTags([]string{"chapter:2", "chapter:5", "situation:a", "situation:b"})

	require.NotNil(t, parsed.Chapter)
	assert.Equal(t, 5, *parsed.Chapter)
	assert.Equal(t, "b", parsed.Situation)
}

func TestParseTags_EmptyInput(t *testing.T) {
	parsed := ParseTags(nil)

	assert.Nil(t, parsed.Chapter)
	assert.NotNil(t, parsed.Metadata)
	assert.Empty(t, parsed.Metadata)
}
