package commons

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// schemaVersion is bumped whenever the commons schema changes. Studios must
// migrate the shared commons folder deliberately; there is no silent upgrade.
const schemaVersion = 1

// ErrSchemaMismatch indicates the commons database was written by a different
// slate release.
var ErrSchemaMismatch = errors.New("commons schema version mismatch")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
    name             TEXT PRIMARY KEY,
    initials         TEXT NOT NULL DEFAULT '',
    password_hash    TEXT NOT NULL,
    permission_level INTEGER NOT NULL DEFAULT 0,
    email            TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS category_definitions (
    name          TEXT PRIMARY KEY,
    type          TEXT NOT NULL DEFAULT '',
    validations   TEXT NOT NULL DEFAULT '[]',
    extracts      TEXT NOT NULL DEFAULT '[]',
    display_order INTEGER NOT NULL DEFAULT 0,
    archived      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS metadata_defaults (
    key           TEXT PRIMARY KEY,
    default_value TEXT NOT NULL DEFAULT 'null',
    enum_json     TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS structures (
    name          TEXT PRIMARY KEY,
    template_json TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);
`

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create commons schema: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: commons has version %d, expected %d", ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

type seedCategory struct {
	name        string
	catType     string
	validations []string
	extracts    []string
}

var defaultCategories = []seedCategory{
	{"Model", TypeAsset, []string{"scene_saved"}, []string{"source"}},
	{"Rig", TypeAsset, []string{"scene_saved"}, []string{"source"}},
	{"LookDev", TypeAsset, []string{"scene_saved"}, []string{"source"}},
	{"Layout", TypeShot, []string{"scene_saved"}, []string{"source"}},
	{"Animation", TypeShot, []string{"scene_saved"}, []string{"source"}},
	{"Lighting", TypeShot, []string{"scene_saved"}, []string{"source", "proxy"}},
	{"Render", TypeShot, []string{"scene_saved", "file_size"}, []string{"source", "proxy"}},
	{"Fx", TypeGlobal, []string{"scene_saved"}, []string{"source"}},
}

type seedMetadata struct {
	key          string
	defaultValue any
	enum         []string
}

var defaultMetadata = []seedMetadata{
	{"fps", 24.0, nil},
	{"resolution", "1920x1080", nil},
	{"mode", "", []string{"", "asset", "shot"}},
	{"start_frame", 1001.0, nil},
	{"end_frame", 1100.0, nil},
}

// seedDefaults inserts the built-in users, category definitions, metadata
// schema and structure templates. Existing rows are never overwritten, so a
// studio's edits survive restarts.
func (s *Store) seedDefaults(ctx context.Context) error {
	adminHash, err := HashPassword("admin")
	if err != nil {
		return fmt.Errorf("hash default admin password: %w", err)
	}
	genericHash, err := HashPassword("1234")
	if err != nil {
		return fmt.Errorf("hash default generic password: %w", err)
	}

	seedUsers := []User{
		{Name: AdminUser, Initials: "adm", PasswordHash: adminHash, PermissionLevel: 3},
		{Name: GenericUser, Initials: "gnr", PasswordHash: genericHash, PermissionLevel: 0},
	}
	for _, user := range seedUsers {
		if _, err := s.execWithRetry(ctx,
			`INSERT OR IGNORE INTO users (name, initials, password_hash, permission_level, email)
             VALUES (?, ?, ?, ?, ?)`,
			user.Name, user.Initials, user.PasswordHash, user.PermissionLevel, user.Email,
		); err != nil {
			return fmt.Errorf("seed user %s: %w", user.Name, err)
		}
	}

	for order, cat := range defaultCategories {
		validations, err := json.Marshal(cat.validations)
		if err != nil {
			return err
		}
		extracts, err := json.Marshal(cat.extracts)
		if err != nil {
			return err
		}
		if _, err := s.execWithRetry(ctx,
			`INSERT OR IGNORE INTO category_definitions (name, type, validations, extracts, display_order)
             VALUES (?, ?, ?, ?, ?)`,
			cat.name, cat.catType, string(validations), string(extracts), order,
		); err != nil {
			return fmt.Errorf("seed category %s: %w", cat.name, err)
		}
	}

	for _, meta := range defaultMetadata {
		value, err := json.Marshal(meta.defaultValue)
		if err != nil {
			return err
		}
		enum, err := json.Marshal(meta.enum)
		if err != nil {
			return err
		}
		if _, err := s.execWithRetry(ctx,
			`INSERT OR IGNORE INTO metadata_defaults (key, default_value, enum_json) VALUES (?, ?, ?)`,
			meta.key, string(value), string(enum),
		); err != nil {
			return fmt.Errorf("seed metadata default %s: %w", meta.key, err)
		}
	}

	for name, template := range defaultStructures {
		data, err := json.Marshal(template)
		if err != nil {
			return err
		}
		if _, err := s.execWithRetry(ctx,
			`INSERT OR IGNORE INTO structures (name, template_json) VALUES (?, ?)`,
			name, string(data),
		); err != nil {
			return fmt.Errorf("seed structure %s: %w", name, err)
		}
	}
	return nil
}
