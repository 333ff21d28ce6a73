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

type boxesDoc struct {
	Boxes       []model.Box `json:"boxes"`
	LastUpdated time.Time   `json:"last_updated"`
}

func (s *Store) boxesPath() string {
	return filepath.Join(s.dir, boxesDir, boxesFile)
}

// loadBoxes reads the box catalog. A missing file yields the default boxes,
// which are written back when seed is set (the caller then holds the write
// lock).
func (s *Store) loadBoxes(seed bool) ([]model.Box, error) {
	var doc boxesDoc
	err := readJSON(s.boxesPath(), &doc)
	if err == nil {
		return doc.Boxes, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	now := model.Now()
	boxes := make([]model.Box, 0, len(model.DefaultBoxes))
	for _, b := range model.DefaultBoxes {
		b.ID = model.NewID()
		b.Normalize()
		b.CreatedAt, b.UpdatedAt = now, now
		boxes = append(boxes, b)
	}
	if seed {
		if err := s.saveBoxes(boxes); err != nil {
			return nil, err
		}
	}
	return boxes, nil
}

func (s *Store) saveBoxes(boxes []model.Box) error {
	return s.writeJSON(s.boxesPath(), boxesDoc{Boxes: boxes, LastUpdated: model.Now()})
}

// SeedBoxes writes the default catalog if none exists yet.
func (s *Store) SeedBoxes() error {
	return s.write(func() error {
		_, err := s.loadBoxes(true)
		return err
	})
}

// ListBoxes returns the box catalog sorted by name.
func (s *Store) ListBoxes() ([]model.Box, error) {
	var boxes []model.Box
	err := s.read(func() error {
		var err error
		boxes, err = s.loadBoxes(false)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(boxes, func(i, j int) bool {
		return strings.ToLower(boxes[i].Name) < strings.ToLower(boxes[j].Name)
	})
	return boxes, nil
}

// BoxCatalog maps box name to catalog entry.
func (s *Store) BoxCatalog() (map[string]model.Box, error) {
	boxes, err := s.ListBoxes()
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.Box, len(boxes))
	for _, b := range boxes {
		out[b.Name] = b
	}
	return out, nil
}

// GetBox returns the box with id.
func (s *Store) GetBox(id string) (*model.Box, error) {
	boxes, err := s.ListBoxes()
	if err != nil {
		return nil, err
	}
	for i := range boxes {
		if boxes[i].ID == id {
			return &boxes[i], nil
		}
	}
	return nil, notFound("Box %s not found", id)
}

// CreateBox adds b to the catalog.
func (s *Store) CreateBox(b model.Box) (*model.Box, error) {
	b.Normalize()
	if err := b.Validate(); err != nil {
		return nil, err
	}
	b.ID = model.NewID()
	now := model.Now()
	b.CreatedAt, b.UpdatedAt = now, now

	err := s.write(func() error {
		boxes, err := s.loadBoxes(false)
		if err != nil {
			return err
		}
		for _, existing := range boxes {
			if existing.Name == b.Name {
				return conflict("Box with name '%s' already exists", b.Name)
			}
		}
		return s.saveBoxes(append(boxes, b))
	})
	if err != nil {
		return nil, err
	}
	s.publish(events.TypeCreated, events.EntityBox, b.ID)
	return &b, nil
}

// UpdateBox replaces box id.
func (s *Store) UpdateBox(id string, b model.Box) (*model.Box, error) {
	b.Normalize()
	if err := b.Validate(); err != nil {
		return nil, err
	}
	var out model.Box
	err := s.write(func() error {
		boxes, err := s.loadBoxes(false)
		if err != nil {
			return err
		}
		idx := -1
		for i, existing := range boxes {
			if existing.ID == id {
				idx = i
			} else if existing.Name == b.Name {
				return conflict("Box with name '%s' already exists", b.Name)
			}
		}
		if idx < 0 {
			return notFound("Box %s not found", id)
		}
		b.ID = id
		b.CreatedAt = boxes[idx].CreatedAt
		b.UpdatedAt = model.Now()
		boxes[idx] = b
		out = b
		return s.saveBoxes(boxes)
	})
	if err != nil {
		return nil, err
	}
	s.publish(events.TypeUpdated, events.EntityBox, id)
	return &out, nil
}

// DeleteBox removes box id. Projects using the box keep their reference.
func (s *Store) DeleteBox(id string) error {
	err := s.write(func() error {
		boxes, err := s.loadBoxes(false)
		if err != nil {
			return err
		}
		for i, existing := range boxes {
			if existing.ID == id {
				return s.saveBoxes(append(boxes[:i], boxes[i+1:]...))
			}
		}
		return notFound("Box %s not found", id)
	})
	if err != nil {
		return err
	}
	s.publish(events.TypeDeleted, events.EntityBox, id)
	return nil
}
