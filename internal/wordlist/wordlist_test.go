package wordlist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSkipsBlanksAndDuplicates(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "words.txt", "madrid\n\nbarcelona\nmadrid\n  \n")
	words, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"madrid", "barcelona"}, words)
}

func TestLoadStripsBOM(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "words.txt", "\ufeffmadrid\nbarcelona\n")
	words, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"madrid", "barcelona"}, words)
}

func TestLoadTrimsWhitespace(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "words.txt", "  madrid  \n\tbarcelona\n")
	words, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"madrid", "barcelona"}, words)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
}

func TestLoadAllDedupesAcrossFiles(t *testing.T) {
	t.Parallel()

	a := writeFile(t, "a.txt", "de\nla\n")
	b := writeFile(t, "b.txt", "la\nque\n")
	words, err := LoadAll(a, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"de", "la", "que"}, words)
}
