package store

import (
	"os"
	"path/filepath"
	"time"
)

// Stats summarizes the stored projects.
type Stats struct {
	TotalProjects int        `json:"total_projects"`
	TotalVMs      int        `json:"total_vms"`
	TotalBytes    int64      `json:"total_size_bytes"`
	OldestProject *time.Time `json:"oldest_project,omitempty"`
	NewestProject *time.Time `json:"newest_project,omitempty"`
	Boxes         int        `json:"boxes"`
	Plugins       int        `json:"plugins"`
	Provisioners  int        `json:"provisioners"`
	Triggers      int        `json:"triggers"`
	DataDir       string     `json:"data_directory"`
}

// Stats walks the project files and catalogs.
func (s *Store) Stats() (*Stats, error) {
	st := &Stats{DataDir: s.dir}
	err := s.read(func() error {
		all, err := s.loadAllProjects()
		if err != nil {
			return err
		}
		for _, p := range all {
			st.TotalProjects++
			st.TotalVMs += len(p.VMs)
			if fi, err := os.Stat(s.projectPath(p.ID)); err == nil {
				st.TotalBytes += fi.Size()
			}
			created := p.CreatedAt
			if st.OldestProject == nil || created.Before(*st.OldestProject) {
				st.OldestProject = &created
			}
			if st.NewestProject == nil || created.After(*st.NewestProject) {
				st.NewestProject = &created
			}
		}
		boxes, err := s.loadBoxes(false)
		if err != nil {
			return err
		}
		st.Boxes = len(boxes)
		plugins, err := s.loadPlugins()
		if err != nil {
			return err
		}
		st.Plugins = len(plugins)
		if entries, err := os.ReadDir(filepath.Join(s.dir, provisionersDir)); err == nil {
			st.Provisioners = countJSON(entries)
		}
		if entries, err := os.ReadDir(filepath.Join(s.dir, triggersDir)); err == nil {
			st.Triggers = countJSON(entries)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

func countJSON(entries []os.DirEntry) int {
	n := 0
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" && e.Name()[0] != '.' {
			n++
		}
	}
	return n
}

// Health reports whether every data directory exists and is writable.
type Health struct {
	Healthy     bool              `json:"healthy"`
	Directories map[string]string `json:"directories"`
}

// Health probes each data directory with a temporary file.
func (s *Store) Health() Health {
	h := Health{Healthy: true, Directories: make(map[string]string)}
	for _, d := range s.dirs() {
		rel, err := filepath.Rel(s.dir, d)
		if err != nil {
			rel = d
		}
		status := "ok"
		if fi, err := os.Stat(d); err != nil {
			status = "missing"
		} else if !fi.IsDir() {
			status = "not a directory"
		} else if f, err := os.CreateTemp(d, ".health-*"); err != nil {
			status = "not writable"
		} else {
			f.Close()
			os.Remove(f.Name())
		}
		if status != "ok" {
			h.Healthy = false
		}
		h.Directories[rel] = status
	}
	return h
}
