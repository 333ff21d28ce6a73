package store

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/battlewithbytes/vagrantgen/internal/events"
	"github.com/battlewithbytes/vagrantgen/internal/model"
	"github.com/battlewithbytes/vagrantgen/internal/render"
)

func (s *Store) entityPath(dir, id string) string {
	return filepath.Join(s.dir, dir, id+".json")
}

// loadEntities decodes every <id>.json in dir, skipping unreadable files.
// The caller holds the lock.
func loadEntities[T any](s *Store, dir string) ([]T, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, dir))
	if err != nil {
		return nil, err
	}
	var out []T
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		var v T
		if err := readJSON(filepath.Join(s.dir, dir, name), &v); err != nil {
			s.log.Warn("skipping unreadable file", zap.String("dir", dir), zap.String("file", name), zap.Error(err))
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func loadEntity[T any](s *Store, dir, kind, id string) (*T, error) {
	if !idRe.MatchString(id) {
		return nil, notFound("%s %s not found", kind, id)
	}
	var v T
	if err := readJSON(s.entityPath(dir, id), &v); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound("%s %s not found", kind, id)
		}
		return nil, err
	}
	return &v, nil
}

// ListProvisioners returns the global provisioners sorted by name.
func (s *Store) ListProvisioners() ([]model.GlobalProvisioner, error) {
	var out []model.GlobalProvisioner
	err := s.read(func() error {
		var err error
		out, err = loadEntities[model.GlobalProvisioner](s, provisionersDir)
		return err
	})
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Normalize()
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// GetProvisioner returns global provisioner id.
func (s *Store) GetProvisioner(id string) (*model.GlobalProvisioner, error) {
	var g *model.GlobalProvisioner
	err := s.read(func() error {
		var err error
		g, err = loadEntity[model.GlobalProvisioner](s, provisionersDir, "Provisioner", id)
		return err
	})
	if err != nil {
		return nil, err
	}
	g.Normalize()
	return g, nil
}

// SaveProvisioner creates g when id is empty and replaces provisioner id
// otherwise. Names are unique.
func (s *Store) SaveProvisioner(id string, g model.GlobalProvisioner) (*model.GlobalProvisioner, error) {
	g.Normalize()
	if err := g.Validate(); err != nil {
		return nil, err
	}
	typ := events.TypeUpdated
	err := s.write(func() error {
		all, err := loadEntities[model.GlobalProvisioner](s, provisionersDir)
		if err != nil {
			return err
		}
		now := model.Now()
		if id == "" {
			typ = events.TypeCreated
			g.ID = model.NewID()
			g.CreatedAt = now
		} else {
			old, err := loadEntity[model.GlobalProvisioner](s, provisionersDir, "Provisioner", id)
			if err != nil {
				return err
			}
			g.ID = id
			g.CreatedAt = old.CreatedAt
		}
		g.UpdatedAt = now
		for _, other := range all {
			if other.ID != g.ID && strings.EqualFold(strings.TrimSpace(other.Name), g.Name) {
				return conflict("Provisioner with name '%s' already exists", g.Name)
			}
		}
		return s.writeJSON(s.entityPath(provisionersDir, g.ID), &g)
	})
	if err != nil {
		return nil, err
	}
	s.publish(typ, events.EntityProvisioner, g.ID)
	return &g, nil
}

// DeleteProvisioner removes provisioner id. Projects still referencing it
// simply stop rendering it.
func (s *Store) DeleteProvisioner(id string) error {
	return s.deleteEntity(provisionersDir, "Provisioner", events.EntityProvisioner, id)
}

// ListTriggers returns the global triggers sorted by name.
func (s *Store) ListTriggers() ([]model.GlobalTrigger, error) {
	var out []model.GlobalTrigger
	err := s.read(func() error {
		var err error
		out, err = loadEntities[model.GlobalTrigger](s, triggersDir)
		return err
	})
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Normalize()
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// GetTrigger returns global trigger id.
func (s *Store) GetTrigger(id string) (*model.GlobalTrigger, error) {
	var g *model.GlobalTrigger
	err := s.read(func() error {
		var err error
		g, err = loadEntity[model.GlobalTrigger](s, triggersDir, "Trigger", id)
		return err
	})
	if err != nil {
		return nil, err
	}
	g.Normalize()
	return g, nil
}

// SaveTrigger creates g when id is empty and replaces trigger id otherwise.
func (s *Store) SaveTrigger(id string, g model.GlobalTrigger) (*model.GlobalTrigger, error) {
	g.Normalize()
	if err := g.Validate(); err != nil {
		return nil, err
	}
	typ := events.TypeUpdated
	err := s.write(func() error {
		all, err := loadEntities[model.GlobalTrigger](s, triggersDir)
		if err != nil {
			return err
		}
		now := model.Now()
		if id == "" {
			typ = events.TypeCreated
			g.ID = model.NewID()
			g.CreatedAt = now
		} else {
			old, err := loadEntity[model.GlobalTrigger](s, triggersDir, "Trigger", id)
			if err != nil {
				return err
			}
			g.ID = id
			g.CreatedAt = old.CreatedAt
		}
		g.UpdatedAt = now
		for _, other := range all {
			if other.ID != g.ID && strings.EqualFold(strings.TrimSpace(other.Name), g.Name) {
				return conflict("Trigger with name '%s' already exists", g.Name)
			}
		}
		return s.writeJSON(s.entityPath(triggersDir, g.ID), &g)
	})
	if err != nil {
		return nil, err
	}
	s.publish(typ, events.EntityTrigger, g.ID)
	return &g, nil
}

// DeleteTrigger removes trigger id.
func (s *Store) DeleteTrigger(id string) error {
	return s.deleteEntity(triggersDir, "Trigger", events.EntityTrigger, id)
}

func (s *Store) deleteEntity(dir, kind, entity, id string) error {
	if !idRe.MatchString(id) {
		return notFound("%s %s not found", kind, id)
	}
	err := s.write(func() error {
		if err := s.removeFile(s.entityPath(dir, id)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return notFound("%s %s not found", kind, id)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(events.TypeDeleted, entity, id)
	return nil
}

// ResolveProvisioners loads the provisioners named by ids in order,
// skipping ones that no longer exist.
func (s *Store) ResolveProvisioners(ids []string) ([]model.GlobalProvisioner, error) {
	out := make([]model.GlobalProvisioner, 0, len(ids))
	for _, id := range ids {
		g, err := s.GetProvisioner(id)
		if errors.Is(err, ErrNotFound) {
			s.log.Warn("attached provisioner missing", zap.String("provisioner", id))
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, nil
}

// ResolveTriggers loads the triggers named by ids in order, skipping ones
// that no longer exist.
func (s *Store) ResolveTriggers(ids []string) ([]model.GlobalTrigger, error) {
	out := make([]model.GlobalTrigger, 0, len(ids))
	for _, id := range ids {
		g, err := s.GetTrigger(id)
		if errors.Is(err, ErrNotFound) {
			s.log.Warn("attached trigger missing", zap.String("trigger", id))
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, nil
}

// Globals resolves everything project p references for rendering.
func (s *Store) Globals(p *model.Project) (render.Globals, error) {
	var g render.Globals
	var err error
	if g.Provisioners, err = s.ResolveProvisioners(p.GlobalProvisioners); err != nil {
		return g, err
	}
	if g.Triggers, err = s.ResolveTriggers(p.GlobalTriggers); err != nil {
		return g, err
	}
	if g.Boxes, err = s.BoxCatalog(); err != nil {
		return g, err
	}
	return g, nil
}
