// Package store persists projects and the shared catalogs as JSON files
// under a single data directory. Every write replaces the target file
// atomically while holding an advisory lock on the directory, so the
// server and the CLI can work on the same data.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/battlewithbytes/vagrantgen/internal/config"
	"github.com/battlewithbytes/vagrantgen/internal/events"
)

// Error kinds. Use errors.Is to test for them.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrLocked   = errors.New("locked")
)

// Error carries a user-facing message and one of the kinds above.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func notFound(format string, args ...interface{}) error {
	return &Error{Kind: ErrNotFound, Msg: fmt.Sprintf(format, args...)}
}

func conflict(format string, args ...interface{}) error {
	return &Error{Kind: ErrConflict, Msg: fmt.Sprintf(format, args...)}
}

func locked(format string, args ...interface{}) error {
	return &Error{Kind: ErrLocked, Msg: fmt.Sprintf(format, args...)}
}

// Layout under the data directory.
const (
	projectsDir     = "projects"
	boxesDir        = "boxes"
	provisionersDir = "provisioners"
	triggersDir     = "triggers"
	exportsDir      = "exports"
	backupsDir      = "backups"
	boxesFile       = "boxes.json"
	pluginsFile     = "plugins.json"
	lockFile        = ".lock"
)

// ownWriteWindow is how long a file written by this process is reported
// by WroteRecently.
const ownWriteWindow = 2 * time.Second

var idRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Store is the JSON file store. It is safe for concurrent use.
type Store struct {
	dir        string
	log        *zap.Logger
	pub        events.Publisher
	backupKeep int

	mu sync.RWMutex

	writesMu sync.Mutex
	writes   map[string]time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithPublisher receives an event after every successful mutation.
func WithPublisher(p events.Publisher) Option {
	return func(s *Store) { s.pub = p }
}

// WithBackupKeep sets how many backups are kept per project after each save.
// Zero disables pruning.
func WithBackupKeep(n int) Option {
	return func(s *Store) { s.backupKeep = n }
}

// Open prepares dir and returns a store rooted there.
func Open(dir string, opts ...Option) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving data dir: %w", err)
	}
	s := &Store{
		dir:        abs,
		log:        zap.NewNop(),
		backupKeep: config.DefaultBackupKeep,
		writes:     make(map[string]time.Time),
	}
	for _, o := range opts {
		o(s)
	}
	for _, d := range s.dirs() {
		if err := os.MkdirAll(d, 0750); err != nil {
			return nil, fmt.Errorf("creating %s: %w", d, err)
		}
	}
	return s, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

// ExportsDir returns the directory exports are written to.
func (s *Store) ExportsDir() string { return filepath.Join(s.dir, exportsDir) }

func (s *Store) dirs() []string {
	return []string{
		s.dir,
		filepath.Join(s.dir, projectsDir),
		filepath.Join(s.dir, boxesDir),
		filepath.Join(s.dir, provisionersDir),
		filepath.Join(s.dir, triggersDir),
		filepath.Join(s.dir, exportsDir),
		filepath.Join(s.dir, backupsDir),
	}
}

// WatchDirs lists the directories holding data files, for change watching.
func (s *Store) WatchDirs() []string {
	return []string{
		s.dir,
		filepath.Join(s.dir, projectsDir),
		filepath.Join(s.dir, boxesDir),
		filepath.Join(s.dir, provisionersDir),
		filepath.Join(s.dir, triggersDir),
	}
}

// WroteRecently reports whether this process wrote or removed path within
// the last couple of seconds.
func (s *Store) WroteRecently(path string) bool {
	s.writesMu.Lock()
	defer s.writesMu.Unlock()
	t, ok := s.writes[path]
	if !ok {
		return false
	}
	if time.Since(t) > ownWriteWindow {
		delete(s.writes, path)
		return false
	}
	return true
}

func (s *Store) noteWrite(path string) {
	s.writesMu.Lock()
	defer s.writesMu.Unlock()
	now := time.Now()
	s.writes[path] = now
	for p, t := range s.writes {
		if now.Sub(t) > ownWriteWindow {
			delete(s.writes, p)
		}
	}
}

// lock takes the in-process lock and the advisory file lock.
func (s *Store) lock(exclusive bool) (func(), error) {
	if exclusive {
		s.mu.Lock()
	} else {
		s.mu.RLock()
	}
	release := func() {
		if exclusive {
			s.mu.Unlock()
		} else {
			s.mu.RUnlock()
		}
	}

	f, err := os.OpenFile(filepath.Join(s.dir, lockFile), os.O_CREATE|os.O_RDWR, 0640)
	if err != nil {
		release()
		return nil, fmt.Errorf("opening lock file: %w", err)
	}
	how := unix.LOCK_SH
	if exclusive {
		how = unix.LOCK_EX
	}
	if err := unix.Flock(int(f.Fd()), how); err != nil {
		f.Close()
		release()
		return nil, fmt.Errorf("locking data dir: %w", err)
	}
	return func() {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
		release()
	}, nil
}

func (s *Store) read(fn func() error) error {
	unlock, err := s.lock(false)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

func (s *Store) write(fn func() error) error {
	unlock, err := s.lock(true)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

func (s *Store) publish(typ, entity, id string) {
	if s.pub == nil {
		return
	}
	s.pub.Publish(events.Event{Type: typ, Entity: entity, ID: id, At: time.Now().UTC()})
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeJSON replaces path with the indented encoding of v via a temp file
// in the same directory.
func (s *Store) writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	return s.writeFile(path, append(data, '\n'))
}

func (s *Store) writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0640); err != nil {
		return err
	}
	s.noteWrite(path)
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (s *Store) removeFile(path string) error {
	s.noteWrite(path)
	return os.Remove(path)
}
