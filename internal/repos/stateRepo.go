package repos

import (
	"database/sql"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/nbrennan/huesic/internal/models"
)

const initSchema = `
  CREATE TABLE IF NOT EXISTS credential (
    name TEXT PRIMARY KEY,
    value TEXT
  );

  CREATE TABLE IF NOT EXISTS selected_light (
    position INTEGER PRIMARY KEY,
    light_id VARCHAR(36)
  );

  CREATE TABLE IF NOT EXISTS track (
    id TEXT PRIMARY KEY,
    name TEXT,
    artist TEXT,
    album TEXT,
    artwork_url TEXT
  );
`

const (
	credentialBridgeKey    = "bridge_application_key"
	credentialServiceToken = "service_token"
)

// StateRepo persists everything that must survive a restart: the bridge
// credential, the playback service token, the target selection and the
// last observed track.
type StateRepo struct {
	logger *log.Logger
	db     *sql.DB
}

func NewStateRepo(logger *log.Logger, db *sql.DB) (*StateRepo, error) {

	_, err := db.Exec(initSchema)
	if err != nil {
		return nil, fmt.Errorf("error initialising state schema: %w", err)
	}

	return &StateRepo{logger: logger, db: db}, nil
}

func (r *StateRepo) saveCredential(name string, value string) error {
	_, err := r.db.Exec(
		`INSERT INTO credential (name, value) VALUES ($1, $2)
     ON CONFLICT(name) DO UPDATE SET value = excluded.value;`,
		name, value,
	)
	if err != nil {
		return fmt.Errorf("error saving credential (%s): %w", name, err)
	}
	return nil
}

func (r *StateRepo) loadCredential(name string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM credential WHERE name = $1;`, name).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("error reading credential (%s): %w", name, err)
	}
	return value, nil
}

func (r *StateRepo) SaveBridgeCredential(applicationKey string) error {
	return r.saveCredential(credentialBridgeKey, applicationKey)
}

func (r *StateRepo) LoadBridgeCredential() (string, error) {
	return r.loadCredential(credentialBridgeKey)
}

// SaveServiceToken stores the playback service token blob as-is; the
// playback client owns its format.
func (r *StateRepo) SaveServiceToken(token []byte) error {
	return r.saveCredential(credentialServiceToken, string(token))
}

func (r *StateRepo) LoadServiceToken() ([]byte, error) {
	value, err := r.loadCredential(credentialServiceToken)
	if err != nil || value == "" {
		return nil, err
	}
	return []byte(value), nil
}

// SaveSelection replaces the stored target selection wholesale,
// preserving order.
func (r *StateRepo) SaveSelection(lightIDs []string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("error saving selection: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM selected_light;`); err != nil {
		return fmt.Errorf("error clearing selection: %w", err)
	}
	for i, id := range lightIDs {
		_, err := tx.Exec(
			`INSERT INTO selected_light (position, light_id) VALUES ($1, $2);`,
			i, id,
		)
		if err != nil {
			return fmt.Errorf("error adding selected light (%s): %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error saving selection: %w", err)
	}
	return nil
}

func (r *StateRepo) LoadSelection() ([]string, error) {
	rows, err := r.db.Query(`SELECT light_id FROM selected_light ORDER BY position;`)
	if err != nil {
		return nil, fmt.Errorf("error reading selection: %w", err)
	}
	defer rows.Close()

	var lightIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error reading selection: %w", err)
		}
		lightIDs = append(lightIDs, id)
	}
	return lightIDs, rows.Err()
}

// SaveTrack records the last observed track for the status surface.
func (r *StateRepo) SaveTrack(track models.Track) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("error saving track: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM track;`); err != nil {
		return fmt.Errorf("error clearing track: %w", err)
	}
	_, err = tx.Exec(
		`INSERT INTO track (id, name, artist, album, artwork_url) VALUES ($1, $2, $3, $4, $5);`,
		track.ID, track.Name, track.Artist, track.Album, track.ArtworkURL,
	)
	if err != nil {
		return fmt.Errorf("error saving track (%s): %w", track.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error saving track: %w", err)
	}
	return nil
}

func (r *StateRepo) LoadTrack() (*models.Track, error) {
	var track models.Track
	err := r.db.QueryRow(`SELECT id, name, artist, album, artwork_url FROM track;`).
		Scan(&track.ID, &track.Name, &track.Artist, &track.Album, &track.ArtworkURL)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading track: %w", err)
	}
	return &track, nil
}
