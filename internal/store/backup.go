package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

const backupStamp = "20060102T150405.000000000Z"

func (s *Store) backupDir(id string) string {
	return filepath.Join(s.dir, backupsDir, id)
}

// backupProject copies the current project file into its backup directory
// and prunes old copies. The caller holds the write lock.
func (s *Store) backupProject(id string) error {
	data, err := os.ReadFile(s.projectPath(id))
	if err != nil {
		return err
	}
	stamp := time.Now().UTC().Format(backupStamp)
	path := filepath.Join(s.backupDir(id), stamp+".json")
	for n := 1; ; n++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		path = filepath.Join(s.backupDir(id), fmt.Sprintf("%s-%d.json", stamp, n))
	}
	if err := s.writeFile(path, data); err != nil {
		return err
	}
	if s.backupKeep > 0 {
		if _, err := s.pruneBackups(id, s.backupKeep); err != nil {
			return err
		}
	}
	return nil
}

// backupFiles lists the backup files for project id, oldest first.
func (s *Store) backupFiles(id string) ([]string, error) {
	entries, err := os.ReadDir(s.backupDir(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) pruneBackups(id string, keep int) (int, error) {
	names, err := s.backupFiles(id)
	if err != nil {
		return 0, err
	}
	removed := 0
	for len(names) > keep {
		if err := os.Remove(filepath.Join(s.backupDir(id), names[0])); err != nil {
			return removed, fmt.Errorf("removing backup: %w", err)
		}
		names = names[1:]
		removed++
	}
	return removed, nil
}

// Backups returns the number of backups held for project id.
func (s *Store) Backups(id string) (int, error) {
	var n int
	err := s.read(func() error {
		names, err := s.backupFiles(id)
		n = len(names)
		return err
	})
	return n, err
}

// CleanupBackups keeps the newest keep backups of every project and removes
// the backup directories of projects that no longer exist.
func (s *Store) CleanupBackups(keep int) (int, error) {
	if keep < 0 {
		return 0, fmt.Errorf("keep must not be negative")
	}
	removed := 0
	err := s.write(func() error {
		entries, err := os.ReadDir(filepath.Join(s.dir, backupsDir))
		if err != nil {
			return fmt.Errorf("reading backups: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			id := e.Name()
			if _, err := os.Stat(s.projectPath(id)); os.IsNotExist(err) {
				names, _ := s.backupFiles(id)
				if err := os.RemoveAll(s.backupDir(id)); err != nil {
					return fmt.Errorf("removing orphaned backups: %w", err)
				}
				removed += len(names)
				continue
			}
			n, err := s.pruneBackups(id, keep)
			removed += n
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return removed, err
	}
	s.log.Info("backups cleaned up", zap.Int("removed", removed), zap.Int("keep", keep))
	return removed, nil
}
