package footer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePage(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0640))
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	writePage(t, dir, "privacy.md", "# Privacy\n")
	writePage(t, dir, "about.md", "# About\n")
	writePage(t, dir, "_draft.md", "# Draft\n")
	writePage(t, dir, "notes.txt", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.md"), 0750))

	l := List(dir)
	require.Len(t, l.Files, 2)
	assert.Equal(t, "about.md", l.Files[0].Filename)
	assert.Equal(t, "privacy.md", l.Files[1].Filename)
	assert.True(t, l.Files[0].IsValid)
	assert.Equal(t, []string{"_draft.md"}, l.Excluded)
	assert.Empty(t, l.Errors)
}

func TestListCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "footer")
	l := List(dir)
	assert.Empty(t, l.Files)
	assert.Empty(t, l.Errors)
	_, err := os.Stat(dir)
	assert.NoError(t, err)
}

func TestRead(t *testing.T) {
	dir := t.TempDir()
	writePage(t, dir, "about.md", "Intro\n\n## About *us*\n\nSome **bold** text.\n")

	for _, name := range []string{"about", "about.md"} {
		p, err := Read(dir, name)
		require.NoError(t, err, name)
		assert.Equal(t, "about.md", p.Filename)
		assert.Equal(t, "About *us*", p.Title)
		assert.False(t, p.IsExternal)
		assert.Contains(t, p.RenderedContent, "<strong>bold</strong>")
		assert.Contains(t, p.RawContent, "Some **bold** text.")
	}
}

func TestReadExternalHeading(t *testing.T) {
	dir := t.TempDir()
	writePage(t, dir, "docs.md", "# [Documentation](https://example.com/docs)\n")
	p, err := Read(dir, "docs")
	require.NoError(t, err)
	assert.Equal(t, "Documentation", p.Title)
	assert.True(t, p.IsExternal)
	assert.Equal(t, "https://example.com/docs", p.ExternalURL)
}

func TestReadTitleFallback(t *testing.T) {
	dir := t.TempDir()
	writePage(t, dir, "terms-of_use.md", "no heading here\n")
	p, err := Read(dir, "terms-of_use")
	require.NoError(t, err)
	assert.Equal(t, "Terms Of Use", p.Title)
}

func TestReadErrors(t *testing.T) {
	dir := t.TempDir()
	writePage(t, dir, "_hidden.md", "# Hidden\n")
	writePage(t, dir, "binary.md", string([]byte{0xff, 0xfe, 0xfd}))

	tests := []struct {
		name string
		want error
	}{
		{"../etc/passwd", ErrInvalidName},
		{"..", ErrInvalidName},
		{"", ErrInvalidName},
		{"missing", ErrNotFound},
		{"_hidden", ErrHidden},
		{"_nothere", ErrNotFound},
		{"binary", ErrInvalidUTF8},
	}
	for _, tt := range tests {
		_, err := Read(dir, tt.name)
		assert.ErrorIs(t, err, tt.want, tt.name)
	}
}

func TestParseHeading(t *testing.T) {
	tests := []struct {
		in, title, url string
	}{
		{"# Plain", "Plain", ""},
		{"text\n### Deep", "Deep", ""},
		{"# [Site](http://x.test)", "Site", "http://x.test"},
		{"# [Local](/relative)", "[Local](/relative)", ""},
		{"# [](http://x.test)", "[](http://x.test)", ""},
		{"no heading", "", ""},
	}
	for _, tt := range tests {
		title, url := parseHeading(tt.in)
		assert.Equal(t, tt.title, title, tt.in)
		assert.Equal(t, tt.url, url, tt.in)
	}
}

func TestTerminal(t *testing.T) {
	out, err := Terminal(&Page{RawContent: "# Hello\n\nworld\n"}, 60)
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "Hello"))
	assert.True(t, strings.Contains(out, "world"))
}
