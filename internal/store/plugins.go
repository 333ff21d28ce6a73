package store

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/battlewithbytes/vagrantgen/internal/events"
	"github.com/battlewithbytes/vagrantgen/internal/model"
)

const pluginsDocVersion = "1.0"

type pluginsDoc struct {
	Plugins     []model.Plugin `json:"plugins"`
	Version     string         `json:"version"`
	LastUpdated time.Time      `json:"last_updated"`
}

func (s *Store) pluginsPath() string {
	return filepath.Join(s.dir, pluginsFile)
}

func (s *Store) loadPlugins() ([]model.Plugin, error) {
	var doc pluginsDoc
	if err := readJSON(s.pluginsPath(), &doc); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return doc.Plugins, nil
}

func (s *Store) savePlugins(plugins []model.Plugin) error {
	if plugins == nil {
		plugins = []model.Plugin{}
	}
	return s.writeJSON(s.pluginsPath(), pluginsDoc{
		Plugins:     plugins,
		Version:     pluginsDocVersion,
		LastUpdated: model.Now(),
	})
}

// ListPlugins returns the plugin catalog sorted by name.
func (s *Store) ListPlugins() ([]model.Plugin, error) {
	var plugins []model.Plugin
	err := s.read(func() error {
		var err error
		plugins, err = s.loadPlugins()
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(plugins, func(i, j int) bool {
		return strings.ToLower(plugins[i].Name) < strings.ToLower(plugins[j].Name)
	})
	return plugins, nil
}

// GetPlugin returns the catalog plugin with id.
func (s *Store) GetPlugin(id string) (*model.Plugin, error) {
	plugins, err := s.ListPlugins()
	if err != nil {
		return nil, err
	}
	for i := range plugins {
		if plugins[i].ID == id {
			return &plugins[i], nil
		}
	}
	return nil, notFound("Plugin %s not found", id)
}

// CreatePlugin adds p to the catalog.
func (s *Store) CreatePlugin(p model.Plugin) (*model.Plugin, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.ID = model.NewID()
	now := model.Now()
	p.CreatedAt, p.UpdatedAt = now, now

	err := s.write(func() error {
		plugins, err := s.loadPlugins()
		if err != nil {
			return err
		}
		for _, existing := range plugins {
			if existing.Name == p.Name {
				return conflict("Plugin with name '%s' already exists", p.Name)
			}
		}
		return s.savePlugins(append(plugins, p))
	})
	if err != nil {
		return nil, err
	}
	s.publish(events.TypeCreated, events.EntityPlugin, p.ID)
	return &p, nil
}

// UpdatePlugin replaces catalog plugin id.
func (s *Store) UpdatePlugin(id string, p model.Plugin) (*model.Plugin, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var out model.Plugin
	err := s.write(func() error {
		plugins, err := s.loadPlugins()
		if err != nil {
			return err
		}
		idx := -1
		for i, existing := range plugins {
			if existing.ID == id {
				idx = i
			} else if existing.Name == p.Name {
				return conflict("Plugin with name '%s' already exists", p.Name)
			}
		}
		if idx < 0 {
			return notFound("Plugin %s not found", id)
		}
		p.ID = id
		p.CreatedAt = plugins[idx].CreatedAt
		p.UpdatedAt = model.Now()
		plugins[idx] = p
		out = p
		return s.savePlugins(plugins)
	})
	if err != nil {
		return nil, err
	}
	s.publish(events.TypeUpdated, events.EntityPlugin, id)
	return &out, nil
}

// DeletePlugin removes catalog plugin id.
func (s *Store) DeletePlugin(id string) error {
	err := s.write(func() error {
		plugins, err := s.loadPlugins()
		if err != nil {
			return err
		}
		for i, existing := range plugins {
			if existing.ID == id {
				return s.savePlugins(append(plugins[:i], plugins[i+1:]...))
			}
		}
		return notFound("Plugin %s not found", id)
	})
	if err != nil {
		return err
	}
	s.publish(events.TypeDeleted, events.EntityPlugin, id)
	return nil
}
