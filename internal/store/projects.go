package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/battlewithbytes/vagrantgen/internal/events"
	"github.com/battlewithbytes/vagrantgen/internal/model"
)

func (s *Store) projectPath(id string) string {
	return filepath.Join(s.dir, projectsDir, id+".json")
}

// loadProject reads one project. The caller holds the lock.
func (s *Store) loadProject(id string) (*model.Project, error) {
	if !idRe.MatchString(id) {
		return nil, notFound("Project %s not found", id)
	}
	var p model.Project
	if err := readJSON(s.projectPath(id), &p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound("Project %s not found", id)
		}
		return nil, err
	}
	p.Normalize()
	return &p, nil
}

// saveProject backs up the current file, if any, and writes p.
func (s *Store) saveProject(p *model.Project) error {
	path := s.projectPath(p.ID)
	if _, err := os.Stat(path); err == nil {
		if err := s.backupProject(p.ID); err != nil {
			s.log.Warn("project backup failed", zap.String("project", p.ID), zap.Error(err))
		}
	}
	return s.writeJSON(path, p)
}

// loadAllProjects reads every project file, skipping ones that fail to
// decode. The caller holds the lock.
func (s *Store) loadAllProjects() ([]*model.Project, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, projectsDir))
	if err != nil {
		return nil, fmt.Errorf("reading projects: %w", err)
	}
	var out []*model.Project
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		var p model.Project
		if err := readJSON(filepath.Join(s.dir, projectsDir, name), &p); err != nil {
			s.log.Warn("skipping unreadable project file", zap.String("file", name), zap.Error(err))
			continue
		}
		if p.ID == "" || p.Name == "" {
			s.log.Warn("skipping project file without id or name", zap.String("file", name))
			continue
		}
		p.Normalize()
		out = append(out, &p)
	}
	return out, nil
}

func (s *Store) projectNameTaken(name, exceptID string) (bool, error) {
	all, err := s.loadAllProjects()
	if err != nil {
		return false, err
	}
	for _, p := range all {
		if p.ID != exceptID && p.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// ListProjects returns project summaries, newest first.
func (s *Store) ListProjects() ([]model.ProjectSummary, error) {
	var out []model.ProjectSummary
	err := s.read(func() error {
		all, err := s.loadAllProjects()
		if err != nil {
			return err
		}
		out = make([]model.ProjectSummary, 0, len(all))
		for _, p := range all {
			out = append(out, p.Summary())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// GetProject returns the project with id.
func (s *Store) GetProject(id string) (*model.Project, error) {
	var p *model.Project
	err := s.read(func() error {
		var err error
		p, err = s.loadProject(id)
		return err
	})
	return p, err
}

// FindProject looks a project up by id, falling back to an exact name match.
func (s *Store) FindProject(ref string) (*model.Project, error) {
	var found *model.Project
	err := s.read(func() error {
		if p, err := s.loadProject(ref); err == nil {
			found = p
			return nil
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		all, err := s.loadAllProjects()
		if err != nil {
			return err
		}
		for _, p := range all {
			if p.Name == ref {
				found = p
				return nil
			}
		}
		return notFound("Project %s not found", ref)
	})
	return found, err
}

// CreateProject stores a new draft project built from in. ID, status and
// timestamps are assigned here.
func (s *Store) CreateProject(in model.Project, opts model.ValidationOptions) (*model.Project, error) {
	p := in
	p.ID = model.NewID()
	p.DeploymentStatus = model.StatusDraft
	p.Version = model.ProjectVersion
	now := model.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	p.Normalize()
	if err := p.Validate(opts); err != nil {
		return nil, err
	}

	err := s.write(func() error {
		taken, err := s.projectNameTaken(p.Name, "")
		if err != nil {
			return err
		}
		if taken {
			return conflict("Project with name '%s' already exists", p.Name)
		}
		return s.saveProject(&p)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("project created", zap.String("id", p.ID), zap.String("name", p.Name))
	s.publish(events.TypeCreated, events.EntityProject, p.ID)
	return &p, nil
}

// UpdateProject replaces the editable fields of project id with those of
// in. A ready project only accepts an update that moves it back to draft.
// Attached provisioners and triggers are kept when in leaves them nil.
func (s *Store) UpdateProject(id string, in model.Project, opts model.ValidationOptions) (*model.Project, error) {
	var p *model.Project
	err := s.write(func() error {
		var err error
		p, err = s.loadProject(id)
		if err != nil {
			return err
		}
		if p.IsLocked() && in.DeploymentStatus != model.StatusDraft {
			return locked("Cannot modify project - project is locked in %s status", p.DeploymentStatus)
		}

		p.Name = in.Name
		p.Description = in.Description
		p.VMs = in.VMs
		p.GlobalPlugins = in.GlobalPlugins
		if in.GlobalProvisioners != nil {
			p.GlobalProvisioners = in.GlobalProvisioners
		}
		if in.GlobalTriggers != nil {
			p.GlobalTriggers = in.GlobalTriggers
		}
		if in.DeploymentStatus != "" {
			p.DeploymentStatus = in.DeploymentStatus
		}
		p.Normalize()
		if err := p.Validate(opts); err != nil {
			return err
		}
		taken, err := s.projectNameTaken(p.Name, p.ID)
		if err != nil {
			return err
		}
		if taken {
			return conflict("Project with name '%s' already exists", p.Name)
		}
		p.Touch()
		return s.saveProject(p)
	})
	if err != nil {
		return nil, err
	}
	s.publish(events.TypeUpdated, events.EntityProject, p.ID)
	return p, nil
}

// SetStatus changes only the deployment status.
func (s *Store) SetStatus(id, status string) (*model.Project, error) {
	if err := model.ValidateStatus(status); err != nil {
		return nil, err
	}
	p, err := s.mutateProject(id, "", func(p *model.Project) error {
		p.DeploymentStatus = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("project status changed", zap.String("id", id), zap.String("status", status))
	return p, nil
}

// DeleteProject removes a draft project and its backups.
func (s *Store) DeleteProject(id string) error {
	err := s.write(func() error {
		p, err := s.loadProject(id)
		if err != nil {
			return err
		}
		if p.IsLocked() {
			return locked("Cannot delete project '%s' - project is locked in %s status", p.Name, p.DeploymentStatus)
		}
		if err := s.removeFile(s.projectPath(id)); err != nil {
			return fmt.Errorf("deleting project: %w", err)
		}
		if err := os.RemoveAll(s.backupDir(id)); err != nil {
			s.log.Warn("removing project backups", zap.String("project", id), zap.Error(err))
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("project deleted", zap.String("id", id))
	s.publish(events.TypeDeleted, events.EntityProject, id)
	return nil
}

// mutateProject loads project id under the write lock, applies fn and saves
// the result. When action is set a ready project is rejected with ErrLocked
// and a message naming the action.
func (s *Store) mutateProject(id, action string, fn func(p *model.Project) error) (*model.Project, error) {
	var p *model.Project
	err := s.write(func() error {
		var err error
		p, err = s.loadProject(id)
		if err != nil {
			return err
		}
		if action != "" && p.IsLocked() {
			return locked("Cannot %s - project is locked in %s status", action, p.DeploymentStatus)
		}
		if err := fn(p); err != nil {
			return err
		}
		p.Touch()
		return s.saveProject(p)
	})
	if err != nil {
		return nil, err
	}
	s.publish(events.TypeUpdated, events.EntityProject, p.ID)
	return p, nil
}
