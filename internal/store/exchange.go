package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/battlewithbytes/vagrantgen/internal/events"
	"github.com/battlewithbytes/vagrantgen/internal/model"
	"github.com/battlewithbytes/vagrantgen/internal/render"
)

// Export formats.
const (
	FormatJSON        = "json"
	FormatYAML        = "yaml"
	FormatVagrantfile = "vagrantfile"
)

var unsafeNameRe = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// exportDoc is a project as written by Export.
type exportDoc struct {
	model.Project `yaml:",inline"`
	ExportedAt    time.Time `json:"exported_at" yaml:"exported_at"`
}

// Export describes a written export.
type Export struct {
	Format string `json:"format"`
	Dir    string `json:"dir"`
	File   string `json:"file"`
}

// SafeName turns a project name into something usable as a directory name.
func SafeName(name string) string {
	s := unsafeNameRe.ReplaceAllString(name, "_")
	if s == "" || s == "." || s == ".." {
		return "project"
	}
	return s
}

// Export writes p in format into a new exports/<name>_<timestamp>/ directory.
func (s *Store) Export(p *model.Project, format string) (*Export, error) {
	var (
		file string
		data []byte
		err  error
	)
	doc := exportDoc{Project: *p, ExportedAt: time.Now().UTC()}
	switch format {
	case FormatJSON, "":
		format, file = FormatJSON, "project.json"
		data, err = json.MarshalIndent(doc, "", "  ")
	case FormatYAML, "yml":
		format, file = FormatYAML, "project.yaml"
		data, err = yaml.Marshal(doc)
	case FormatVagrantfile:
		file = "Vagrantfile"
		var g render.Globals
		if g, err = s.Globals(p); err == nil {
			data = []byte(render.Vagrantfile(p, g))
		}
	default:
		return nil, &model.FieldError{Field: "format", Msg: fmt.Sprintf("unsupported export format %q", format)}
	}
	if err != nil {
		return nil, fmt.Errorf("exporting project: %w", err)
	}

	dir, err := s.exportDir(SafeName(p.Name) + "_" + time.Now().UTC().Format("20060102_150405"))
	if err != nil {
		return nil, fmt.Errorf("exporting project: %w", err)
	}
	out := &Export{Format: format, Dir: dir, File: filepath.Join(dir, file)}
	if err := s.writeFile(out.File, data); err != nil {
		return nil, fmt.Errorf("exporting project: %w", err)
	}
	s.log.Info("project exported", zap.String("id", p.ID), zap.String("format", format), zap.String("file", out.File))
	return out, nil
}

// exportDir creates a fresh directory under exports named base, adding a
// numeric suffix when an export from the same second already exists.
func (s *Store) exportDir(base string) (string, error) {
	if err := os.MkdirAll(s.ExportsDir(), 0750); err != nil {
		return "", err
	}
	dir := filepath.Join(s.ExportsDir(), base)
	for n := 1; ; n++ {
		err := os.Mkdir(dir, 0750)
		if err == nil {
			return dir, nil
		}
		if !os.IsExist(err) {
			return "", err
		}
		dir = filepath.Join(s.ExportsDir(), fmt.Sprintf("%s-%d", base, n))
	}
}

// Workspace renders p into exports/<name>/Vagrantfile, replacing any
// previous render, and returns the directory.
func (s *Store) Workspace(p *model.Project) (string, error) {
	g, err := s.Globals(p)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(s.ExportsDir(), SafeName(p.Name))
	if err := s.writeFile(filepath.Join(dir, "Vagrantfile"), []byte(render.Vagrantfile(p, g))); err != nil {
		return "", fmt.Errorf("writing workspace: %w", err)
	}
	return dir, nil
}

// FormatForFile picks the import format from a file extension.
func FormatForFile(path string) (string, error) {
	switch filepath.Ext(path) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", &model.FieldError{Field: "file", Msg: "Unsupported file format. Use .json, .yaml, or .yml"}
}

// Import creates a project from an exported document. The project gets a
// new ID when it has none or its ID is already in use.
func (s *Store) Import(data []byte, format string, opts model.ValidationOptions) (*model.Project, error) {
	var doc exportDoc
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &doc)
	case FormatYAML, "yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		return nil, &model.FieldError{Field: "format", Msg: fmt.Sprintf("unsupported import format %q", format)}
	}
	if err != nil {
		return nil, &model.FieldError{Field: "file", Msg: fmt.Sprintf("Invalid %s: %v", format, err)}
	}

	p := doc.Project
	p.Normalize()
	if p.Version == "" {
		p.Version = model.ProjectVersion
	}
	if model.ValidateStatus(p.DeploymentStatus) != nil {
		p.DeploymentStatus = model.StatusDraft
	}
	now := model.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if err := p.Validate(opts); err != nil {
		return nil, err
	}

	err = s.write(func() error {
		taken, err := s.projectNameTaken(p.Name, "")
		if err != nil {
			return err
		}
		if taken {
			return conflict("Project with name '%s' already exists", p.Name)
		}
		if !idRe.MatchString(p.ID) {
			p.ID = model.NewID()
		} else if _, err := os.Stat(s.projectPath(p.ID)); err == nil {
			p.ID = model.NewID()
		}
		return s.writeJSON(s.projectPath(p.ID), &p)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("project imported", zap.String("id", p.ID), zap.String("name", p.Name))
	s.publish(events.TypeCreated, events.EntityProject, p.ID)
	return &p, nil
}
