// Package screenshot provides SQLite-backed storage for screenshots captured
// during a session, so runs can be reviewed after the fact.
package screenshot

import (
	"database/sql"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/ashbuilds/computer-use/pkg/logx"
)

const schema = `
CREATE TABLE IF NOT EXISTS screenshots (
	id            TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL,
	tool_use_id   TEXT NOT NULL,
	media_type    TEXT NOT NULL,
	path          TEXT NOT NULL,
	captured_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_screenshots_session ON screenshots(session_id);
`

// Record is one stored screenshot's metadata.
type Record struct {
	ID         string
	SessionID  string
	ToolUseID  string
	MediaType  string
	Path       string
	CapturedAt time.Time
}

// Store writes screenshot image files under a directory and tracks their
// metadata in SQLite.
type Store struct {
	db        *sql.DB
	dir       string
	sessionID string
	logger    *logx.Logger
}

// Open creates (or reopens) a store rooted at dir. Image files live next to
// the database file.
func Open(dir, sessionID string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create screenshot dir: %w", err)
	}

	dbPath := filepath.Join(dir, "screenshots.db")
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000", dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &Store{
		db:        db,
		dir:       dir,
		sessionID: sessionID,
		logger:    logx.NewLogger("screenshot"),
	}, nil
}

// Save decodes a base64 screenshot, writes it to disk, and records its
// metadata. Returns the stored record.
func (s *Store) Save(toolUseID, mediaType, base64Data string) (*Record, error) {
	raw, err := base64.StdEncoding.DecodeString(base64Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode screenshot data: %w", err)
	}

	record := &Record{
		ID:         uuid.NewString(),
		SessionID:  s.sessionID,
		ToolUseID:  toolUseID,
		MediaType:  mediaType,
		CapturedAt: time.Now().UTC(),
	}
	record.Path = filepath.Join(s.dir, record.ID+extensionFor(mediaType))

	if err := os.WriteFile(record.Path, raw, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write screenshot file: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO screenshots (id, session_id, tool_use_id, media_type, path, captured_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		record.ID, record.SessionID, record.ToolUseID, record.MediaType, record.Path, record.CapturedAt,
	)
	if err != nil {
		// Keep the file; the metadata row is what failed.
		return nil, fmt.Errorf("failed to record screenshot metadata: %w", err)
	}

	s.logger.Debug("saved screenshot %s (%d bytes) for %s", record.ID, len(raw), toolUseID)
	return record, nil
}

// List returns the session's screenshots in capture order.
func (s *Store) List() ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, tool_use_id, media_type, path, captured_at
		 FROM screenshots WHERE session_id = ? ORDER BY captured_at, id`, s.sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query screenshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.SessionID, &r.ToolUseID, &r.MediaType, &r.Path, &r.CapturedAt); err != nil {
			return nil, fmt.Errorf("failed to scan screenshot row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate screenshot rows: %w", err)
	}
	return records, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func extensionFor(mediaType string) string {
	switch mediaType {
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
