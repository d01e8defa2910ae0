package profile

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store is the local sqlite cache of crop profiles and learn sessions.
// The dashboard keeps its own authoritative database; this cache lets the
// engine reuse a past calibration for a (width, height) source without a
// server round trip.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS crop_profiles (
	id TEXT PRIMARY KEY,
	stream_width INTEGER NOT NULL,
	stream_height INTEGER NOT NULL,
	crop_x INTEGER NOT NULL,
	crop_y INTEGER NOT NULL,
	crop_w INTEGER NOT NULL,
	crop_h INTEGER NOT NULL,
	grid_dx INTEGER NOT NULL,
	grid_dy INTEGER NOT NULL,
	life_row INTEGER NOT NULL,
	landmarks TEXT NOT NULL DEFAULT '[]',
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_profiles_dims
	ON crop_profiles (stream_width, stream_height);
CREATE TABLE IF NOT EXISTS learn_sessions (
	id TEXT PRIMARY KEY,
	racer TEXT NOT NULL,
	report_path TEXT NOT NULL,
	frames INTEGER NOT NULL,
	created_at TEXT NOT NULL
);
`

// OpenStore opens (creating if needed) the profile database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open profile store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init profile store schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// PutProfile inserts or replaces a profile. A missing ID is assigned.
func (s *Store) PutProfile(p *CropProfile) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	lms, err := json.Marshal(p.Landmarks)
	if err != nil {
		return fmt.Errorf("marshal landmarks: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO crop_profiles
		(id, stream_width, stream_height, crop_x, crop_y, crop_w, crop_h,
		 grid_dx, grid_dy, life_row, landmarks, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.StreamWidth, p.StreamHeight, p.CropX, p.CropY, p.CropW, p.CropH,
		p.GridDX, p.GridDY, p.LifeRow, string(lms),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store profile %s: %w", p.ID, err)
	}
	return nil
}

// GetProfile returns a profile by ID, or nil when absent.
func (s *Store) GetProfile(id string) (*CropProfile, error) {
	row := s.db.QueryRow(`
		SELECT id, stream_width, stream_height, crop_x, crop_y, crop_w, crop_h,
		       grid_dx, grid_dy, life_row, landmarks
		FROM crop_profiles WHERE id = ?`, id)
	return scanProfile(row)
}

// FindByDims returns the most recently updated profile for a stream
// resolution, or nil when none is cached.
func (s *Store) FindByDims(width, height int) (*CropProfile, error) {
	row := s.db.QueryRow(`
		SELECT id, stream_width, stream_height, crop_x, crop_y, crop_w, crop_h,
		       grid_dx, grid_dy, life_row, landmarks
		FROM crop_profiles
		WHERE stream_width = ? AND stream_height = ?
		ORDER BY updated_at DESC LIMIT 1`, width, height)
	return scanProfile(row)
}

// RecordLearnSession stores a pointer to a finished learn report.
func (s *Store) RecordLearnSession(id, racer, reportPath string, frames int) error {
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO learn_sessions (id, racer, report_path, frames, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, racer, reportPath, frames, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record learn session %s: %w", id, err)
	}
	return nil
}

func scanProfile(row *sql.Row) (*CropProfile, error) {
	var p CropProfile
	var lms string
	err := row.Scan(&p.ID, &p.StreamWidth, &p.StreamHeight,
		&p.CropX, &p.CropY, &p.CropW, &p.CropH,
		&p.GridDX, &p.GridDY, &p.LifeRow, &lms)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	if err := json.Unmarshal([]byte(lms), &p.Landmarks); err != nil {
		return nil, fmt.Errorf("parse stored landmarks: %w", err)
	}
	return &p, nil
}
