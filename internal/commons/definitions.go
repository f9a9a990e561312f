package commons

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Category definition types. A task created under an asset-mode subproject
// exposes only asset categories, a shot-mode task only shot categories, and
// a global (unset) mode exposes the full set.
const (
	TypeAsset  = "asset"
	TypeShot   = "shot"
	TypeGlobal = ""
)

// ErrDefinitionNotFound marks lookups for unknown category definitions.
var ErrDefinitionNotFound = errors.New("category definition not found")

// CategoryDefinition describes one work-type bucket: which subproject modes
// it applies to and which validations/extracts run when publishing from it.
type CategoryDefinition struct {
	Name         string
	Type         string
	Validations  []string
	Extracts     []string
	DisplayOrder int
	Archived     bool
}

// MetadataDefault is one key of the studio metadata schema.
type MetadataDefault struct {
	Key     string
	Default any
	Enum    []string
}

// StructureTemplate describes a pre-built subproject skeleton for new
// projects.
type StructureTemplate struct {
	Subprojects []StructureNode `json:"subprojects"`
}

// StructureNode is one entry of a structure template.
type StructureNode struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
}

var defaultStructures = map[string]StructureTemplate{
	"empty": {},
	"asset_shot": {
		Subprojects: []StructureNode{
			{Path: "Assets", Mode: TypeAsset},
			{Path: "Assets/Characters"},
			{Path: "Assets/Props"},
			{Path: "Assets/Environments"},
			{Path: "Shots", Mode: TypeShot},
		},
	},
}

// CategoryDefinitions returns all non-archived definitions in display order.
func (s *Store) CategoryDefinitions(ctx context.Context) ([]CategoryDefinition, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, type, validations, extracts, display_order, archived
         FROM category_definitions WHERE archived = 0 ORDER BY display_order, name`)
	if err != nil {
		return nil, fmt.Errorf("query category definitions: %w", err)
	}
	defer rows.Close()

	var defs []CategoryDefinition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// CategoryDefinition returns the named definition or ErrDefinitionNotFound.
func (s *Store) CategoryDefinition(ctx context.Context, name string) (CategoryDefinition, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT name, type, validations, extracts, display_order, archived
         FROM category_definitions WHERE name = ?`, name)
	def, err := scanDefinition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return CategoryDefinition{}, fmt.Errorf("%w: %s", ErrDefinitionNotFound, name)
	}
	return def, err
}

// CategoriesForMode returns the category names valid for a subproject mode.
// An unset or global mode exposes the full set.
func (s *Store) CategoriesForMode(ctx context.Context, mode string) ([]string, error) {
	defs, err := s.CategoryDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, def := range defs {
		if mode == TypeGlobal || def.Type == TypeGlobal || def.Type == mode {
			names = append(names, def.Name)
		}
	}
	return names, nil
}

// SaveCategoryDefinition inserts or replaces a definition. Admin action.
func (s *Store) SaveCategoryDefinition(ctx context.Context, def CategoryDefinition) error {
	validations, err := json.Marshal(def.Validations)
	if err != nil {
		return fmt.Errorf("marshal validations: %w", err)
	}
	extracts, err := json.Marshal(def.Extracts)
	if err != nil {
		return fmt.Errorf("marshal extracts: %w", err)
	}
	archived := 0
	if def.Archived {
		archived = 1
	}
	_, err = s.execWithRetry(ctx,
		`INSERT INTO category_definitions (name, type, validations, extracts, display_order, archived)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(name) DO UPDATE SET
             type = excluded.type,
             validations = excluded.validations,
             extracts = excluded.extracts,
             display_order = excluded.display_order,
             archived = excluded.archived`,
		def.Name, def.Type, string(validations), string(extracts), def.DisplayOrder, archived)
	if err != nil {
		return fmt.Errorf("save category definition %s: %w", def.Name, err)
	}
	return nil
}

// MetadataDefaults returns the studio metadata schema keyed by name.
func (s *Store) MetadataDefaults(ctx context.Context) (map[string]MetadataDefault, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT key, default_value, enum_json FROM metadata_defaults`)
	if err != nil {
		return nil, fmt.Errorf("query metadata defaults: %w", err)
	}
	defer rows.Close()

	defaults := make(map[string]MetadataDefault)
	for rows.Next() {
		var (
			meta      MetadataDefault
			valueJSON string
			enumJSON  string
		)
		if err := rows.Scan(&meta.Key, &valueJSON, &enumJSON); err != nil {
			return nil, fmt.Errorf("scan metadata default: %w", err)
		}
		if err := json.Unmarshal([]byte(valueJSON), &meta.Default); err != nil {
			return nil, fmt.Errorf("decode default for %s: %w", meta.Key, err)
		}
		if err := json.Unmarshal([]byte(enumJSON), &meta.Enum); err != nil {
			return nil, fmt.Errorf("decode enum for %s: %w", meta.Key, err)
		}
		defaults[meta.Key] = meta
	}
	return defaults, rows.Err()
}

// Structures returns the available structure template names.
func (s *Store) Structures(ctx context.Context) ([]string, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM structures ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query structures: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan structure: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Structure returns the named structure template.
func (s *Store) Structure(ctx context.Context, name string) (StructureTemplate, error) {
	ctx = ensureContext(ctx)
	var templateJSON string
	err := s.db.QueryRowContext(ctx, `SELECT template_json FROM structures WHERE name = ?`, name).Scan(&templateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return StructureTemplate{}, fmt.Errorf("structure template not found: %s", name)
	}
	if err != nil {
		return StructureTemplate{}, fmt.Errorf("query structure %s: %w", name, err)
	}
	var template StructureTemplate
	if err := json.Unmarshal([]byte(templateJSON), &template); err != nil {
		return StructureTemplate{}, fmt.Errorf("decode structure %s: %w", name, err)
	}
	return template, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row rowScanner) (CategoryDefinition, error) {
	var (
		def         CategoryDefinition
		validations string
		extracts    string
		archived    int
	)
	if err := row.Scan(&def.Name, &def.Type, &validations, &extracts, &def.DisplayOrder, &archived); err != nil {
		return CategoryDefinition{}, err
	}
	if err := json.Unmarshal([]byte(validations), &def.Validations); err != nil {
		return CategoryDefinition{}, fmt.Errorf("decode validations for %s: %w", def.Name, err)
	}
	if err := json.Unmarshal([]byte(extracts), &def.Extracts); err != nil {
		return CategoryDefinition{}, fmt.Errorf("decode extracts for %s: %w", def.Name, err)
	}
	def.Archived = archived != 0
	return def, nil
}
