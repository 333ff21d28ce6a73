// Package footer serves the markdown pages linked from the UI footer.
package footer

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/glamour"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Errors returned by Read.
var (
	ErrInvalidName = errors.New("invalid filename")
	ErrNotFound    = errors.New("file not found")
	ErrHidden      = errors.New("access to hidden files denied")
	ErrInvalidUTF8 = errors.New("file contains invalid UTF-8 content")
)

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// File is one listed footer page.
type File struct {
	Filename     string    `json:"filename"`
	LastModified time.Time `json:"lastModified"`
	Size         int64     `json:"size"`
	IsValid      bool      `json:"isValid"`
}

// Listing is the result of List.
type Listing struct {
	Files    []File   `json:"files"`
	Excluded []string `json:"excluded"`
	Errors   []string `json:"errors"`
}

// Page is a footer page with its parsed heading and rendered HTML.
type Page struct {
	Filename        string    `json:"filename"`
	Title           string    `json:"title"`
	IsExternal      bool      `json:"isExternal"`
	ExternalURL     string    `json:"externalUrl,omitempty"`
	RawContent      string    `json:"rawContent"`
	RenderedContent string    `json:"renderedContent"`
	LastModified    time.Time `json:"lastModified"`
	Size            int64     `json:"size"`
	IsValid         bool      `json:"isValid"`
}

// List returns the .md files in dir. Files starting with an underscore are
// reported as excluded. A missing dir is created.
func List(dir string) Listing {
	l := Listing{Files: []File{}, Excluded: []string{}, Errors: []string{}}
	if err := os.MkdirAll(dir, 0750); err != nil {
		l.Errors = append(l.Errors, fmt.Sprintf("Directory access error: %v", err))
		return l
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		l.Errors = append(l.Errors, fmt.Sprintf("Directory access error: %v", err))
		return l
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".md" {
			continue
		}
		if strings.HasPrefix(name, "_") {
			l.Excluded = append(l.Excluded, name)
			continue
		}
		info, err := e.Info()
		if err != nil {
			l.Excluded = append(l.Excluded, name)
			l.Errors = append(l.Errors, fmt.Sprintf("Unable to read %s: %v", name, err))
			continue
		}
		l.Files = append(l.Files, File{
			Filename:     name,
			LastModified: info.ModTime().UTC(),
			Size:         info.Size(),
			IsValid:      true,
		})
	}
	sort.Slice(l.Files, func(i, j int) bool { return l.Files[i].Filename < l.Files[j].Filename })
	return l
}

// Read loads page name from dir. A trailing .md on name is optional.
func Read(dir, name string) (*Page, error) {
	name = strings.TrimSuffix(name, ".md")
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return nil, ErrInvalidName
	}
	path := filepath.Join(dir, name+".md")
	if rel, err := filepath.Rel(dir, path); err != nil || strings.HasPrefix(rel, "..") {
		return nil, ErrInvalidName
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, ErrNotFound
	}
	if strings.HasPrefix(name, "_") {
		return nil, ErrHidden
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	if !utf8.Valid(data) {
		return nil, ErrInvalidUTF8
	}

	var html bytes.Buffer
	if err := md.Convert(data, &html); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", name, err)
	}

	p := &Page{
		Filename:        name + ".md",
		RawContent:      string(data),
		RenderedContent: html.String(),
		LastModified:    info.ModTime().UTC(),
		Size:            info.Size(),
		IsValid:         true,
	}
	p.Title, p.ExternalURL = parseHeading(p.RawContent)
	p.IsExternal = p.ExternalURL != ""
	if p.Title == "" {
		p.Title = titleFromName(name)
	}
	return p, nil
}

// parseHeading returns the text of the first markdown heading and, when the
// heading is a single [Text](http...) link, its URL.
func parseHeading(content string) (title, url string) {
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "#") {
			continue
		}
		text := strings.TrimSpace(strings.TrimLeft(line, "#"))
		if strings.HasPrefix(text, "[") && strings.Contains(text, "](http") {
			end := strings.Index(text, "](")
			start := end + 2
			n := strings.Index(text[start:], ")")
			if end > 1 && n > 0 {
				return text[1:end], text[start : start+n]
			}
		}
		return text, ""
	}
	return "", ""
}

func titleFromName(name string) string {
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	words := strings.Fields(name)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// Terminal renders a page's markdown for display in a terminal.
func Terminal(p *Page, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(p.RawContent)
}
