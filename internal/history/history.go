// Package history records every Vagrantfile generation in SQLite.
package history

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/battlewithbytes/vagrantgen/internal/model"
	"github.com/battlewithbytes/vagrantgen/internal/render"
)

// Generation sources.
const (
	SourceGenerate = "generate"
	SourceDownload = "download"
	SourceCLI      = "cli"
)

// timeFormat is fixed width so created_at sorts as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned by Get for an unknown entry.
var ErrNotFound = errors.New("history entry not found")

// Entry is one recorded generation.
type Entry struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	ProjectName string    `json:"project_name"`
	SHA256      string    `json:"sha256"`
	Size        int       `json:"size"`
	VMCount     int       `json:"vm_count"`
	IsValid     bool      `json:"is_valid"`
	Errors      []string  `json:"errors"`
	Warnings    []string  `json:"warnings"`
	Source      string    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewEntry describes the generation of r from p.
func NewEntry(p *model.Project, r *render.Result, source string) *Entry {
	sum := sha256.Sum256([]byte(r.Content))
	return &Entry{
		ProjectID:   p.ID,
		ProjectName: p.Name,
		SHA256:      hex.EncodeToString(sum[:]),
		Size:        len(r.Content),
		VMCount:     len(p.VMs),
		IsValid:     r.Validation.IsValid,
		Errors:      r.Validation.Errors,
		Warnings:    r.Validation.Warnings,
		Source:      source,
	}
}

// Store persists generation history to SQLite.
type Store struct {
	db   *sql.DB
	keep int
}

// NewStore opens (or creates) the database at dbPath. When keep is positive
// each Record trims the project's history to the newest keep entries.
func NewStore(dbPath string, keep int) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	db.SetMaxOpenConns(4)

	s := &Store{db: db, keep: keep}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating history database: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS generations (
			id            TEXT PRIMARY KEY,
			project_id    TEXT NOT NULL,
			project_name  TEXT NOT NULL DEFAULT '',
			sha256        TEXT NOT NULL,
			size          INTEGER NOT NULL DEFAULT 0,
			vm_count      INTEGER NOT NULL DEFAULT 0,
			is_valid      INTEGER NOT NULL DEFAULT 0,
			errors_json   TEXT NOT NULL DEFAULT '[]',
			warnings_json TEXT NOT NULL DEFAULT '[]',
			source        TEXT NOT NULL DEFAULT '',
			created_at    TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_generations_project ON generations(project_id, created_at);
	`)
	return err
}

// Record stores e, filling its ID and timestamp.
func (s *Store) Record(e *Entry) error {
	if e.ID == "" {
		e.ID = model.NewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Errors == nil {
		e.Errors = []string{}
	}
	if e.Warnings == nil {
		e.Warnings = []string{}
	}
	errorsJSON, _ := json.Marshal(e.Errors)
	warningsJSON, _ := json.Marshal(e.Warnings)

	_, err := s.db.Exec(`
		INSERT INTO generations (id, project_id, project_name, sha256, size, vm_count, is_valid, errors_json, warnings_json, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ProjectID, e.ProjectName, e.SHA256, e.Size, e.VMCount, boolToInt(e.IsValid),
		string(errorsJSON), string(warningsJSON), e.Source, e.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("recording generation: %w", err)
	}
	if s.keep > 0 {
		if _, err := s.Prune(e.ProjectID, s.keep); err != nil {
			return err
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const selectColumns = `SELECT id, project_id, project_name, sha256, size, vm_count, is_valid, errors_json, warnings_json, source, created_at FROM generations`

// List returns a project's generations, newest first. A limit of zero or
// less returns all of them.
func (s *Store) List(projectID string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(selectColumns+` WHERE project_id=? ORDER BY created_at DESC, rowid DESC LIMIT ?`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []*Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns one entry.
func (s *Store) Get(id string) (*Entry, error) {
	e, err := scanEntry(s.db.QueryRow(selectColumns+` WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// Prune keeps the newest keep entries of a project and returns how many
// were deleted.
func (s *Store) Prune(projectID string, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.Exec(`
		DELETE FROM generations WHERE project_id=? AND id NOT IN (
			SELECT id FROM generations WHERE project_id=? ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, projectID, projectID, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning history: %w", err)
	}
	return res.RowsAffected()
}

// DeleteProject drops every entry of a project.
func (s *Store) DeleteProject(projectID string) error {
	_, err := s.db.Exec(`DELETE FROM generations WHERE project_id=?`, projectID)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var e Entry
	var valid int
	var errorsJSON, warningsJSON, createdAt string
	err := row.Scan(&e.ID, &e.ProjectID, &e.ProjectName, &e.SHA256, &e.Size, &e.VMCount, &valid,
		&errorsJSON, &warningsJSON, &e.Source, &createdAt)
	if err != nil {
		return nil, err
	}
	e.IsValid = valid != 0
	json.Unmarshal([]byte(errorsJSON), &e.Errors)
	json.Unmarshal([]byte(warningsJSON), &e.Warnings)
	e.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	return &e, nil
}
