package gitcli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommitInfo(t *testing.T) {
	t.Parallel()

	t.Run("parses structured show output", func(t *testing.T) {
		t.Parallel()

		out := "abc123\nJane Doe\njane@example.com\n1714000000\nAdd sidebar panel\nLonger body line one\nline two\n"
		info, ok := parseCommitInfo(out)
		require.True(t, ok)
		assert.Equal(t, "abc123", info.Hash)
		assert.Equal(t, "Jane Doe", info.AuthorName)
		assert.Equal(t, "jane@example.com", info.AuthorEmail)
		assert.Equal(t, "1714000000", info.Timestamp)
		assert.Equal(t, "Add sidebar panel", info.Subject)
		assert.Equal(t, "Longer body line one\nline two", info.Body)
	})

	t.Run("subject-only commit has empty body", func(t *testing.T) {
		t.Parallel()

		out := "abc123\nJane\njane@example.com\n1714000000\nFix typo\n"
		info, ok := parseCommitInfo(out)
		require.True(t, ok)
		assert.Empty(t, info.Body)
	})

	t.Run("truncated output is rejected", func(t *testing.T) {
		t.Parallel()

		_, ok := parseCommitInfo("abc123\nJane\n")
		assert.False(t, ok)
	})
}

func TestSanitize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ok", sanitize("ok"))
	assert.Equal(t, "a�b", sanitize("a\xffb"))
}

func TestSplitLines(t *testing.T) {
	t.Parallel()

	got := splitLines("a.txt\n\n  b.txt  \nc.txt\n")
	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, got)
}
