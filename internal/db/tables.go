package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/calibweights/internal/calib"
)

// ErrTableNotFound is returned by LoadTable for an unknown identifier.
var ErrTableNotFound = errors.New("calibration table not found")

// TableInfo describes a stored table without its bin data.
type TableInfo struct {
	ID        string `json:"id"`
	Dim       int    `json:"dim"`
	Bins      int    `json:"bins"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// TableStore persists calibration tables keyed by their name. It
// implements weights.TableLoader.
type TableStore struct {
	db *sql.DB
}

// NewTableStore creates a TableStore on an open database.
func NewTableStore(db *sql.DB) *TableStore {
	return &TableStore{db: db}
}

// Save inserts t or replaces the stored table of the same name.
func (s *TableStore) Save(t *calib.Table) error {
	axes, err := json.Marshal(t.Axes())
	if err != nil {
		return fmt.Errorf("encode axes of %q: %w", t.Name(), err)
	}
	content, err := json.Marshal(t.Contents())
	if err != nil {
		return fmt.Errorf("encode content of %q: %w", t.Name(), err)
	}
	unc, err := json.Marshal(t.Uncertainties())
	if err != nil {
		return fmt.Errorf("encode uncertainty of %q: %w", t.Name(), err)
	}
	now := time.Now().UnixNano()
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO calibration_tables (
				table_id, dim, bins, axes_json, content_json, uncertainty_json, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(table_id) DO UPDATE SET
				dim = excluded.dim,
				bins = excluded.bins,
				axes_json = excluded.axes_json,
				content_json = excluded.content_json,
				uncertainty_json = excluded.uncertainty_json,
				updated_at = excluded.updated_at`,
			t.Name(), t.Dim(), t.Len(), string(axes), string(content), string(unc), now, now,
		)
		if err != nil {
			return fmt.Errorf("save table %q: %w", t.Name(), err)
		}
		return nil
	})
}

// LoadTable returns the stored table id, rebuilt through calib.New so a
// corrupt row fails validation instead of producing a bad table.
func (s *TableStore) LoadTable(id string) (*calib.Table, error) {
	var axesStr, contentStr, uncStr string
	err := s.db.QueryRow(`
		SELECT axes_json, content_json, uncertainty_json
		FROM calibration_tables
		WHERE table_id = ?`, id).Scan(&axesStr, &contentStr, &uncStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrTableNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load table %q: %w", id, err)
	}

	var (
		axes         []calib.Axis
		content, unc []float64
	)
	if err := json.Unmarshal([]byte(axesStr), &axes); err != nil {
		return nil, fmt.Errorf("decode axes of %q: %w", id, err)
	}
	if err := json.Unmarshal([]byte(contentStr), &content); err != nil {
		return nil, fmt.Errorf("decode content of %q: %w", id, err)
	}
	if err := json.Unmarshal([]byte(uncStr), &unc); err != nil {
		return nil, fmt.Errorf("decode uncertainty of %q: %w", id, err)
	}
	return calib.New(id, axes, content, unc)
}

// List returns the stored tables ordered by identifier.
func (s *TableStore) List() ([]TableInfo, error) {
	rows, err := s.db.Query(`
		SELECT table_id, dim, bins, created_at, updated_at
		FROM calibration_tables
		ORDER BY table_id`)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var out []TableInfo
	for rows.Next() {
		var ti TableInfo
		if err := rows.Scan(&ti.ID, &ti.Dim, &ti.Bins, &ti.CreatedAt, &ti.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		out = append(out, ti)
	}
	return out, rows.Err()
}

// Delete removes the table id. Deleting an unknown table is an error.
func (s *TableStore) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM calibration_tables WHERE table_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete table %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrTableNotFound, id)
	}
	return nil
}
