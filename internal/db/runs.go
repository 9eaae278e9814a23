package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned by RunStore.Get for an unknown run.
var ErrRunNotFound = errors.New("weight run not found")

// Run records one pass of the weight composer over an event sample.
type Run struct {
	RunID         string          `json:"run_id"`
	Config        string          `json:"config"`
	Version       string          `json:"version"`
	BootstrapSize int             `json:"bootstrap_size"`
	Events        int             `json:"events"`
	MeanWeight    float64         `json:"mean_weight"`
	MinWeight     float64         `json:"min_weight"`
	MaxWeight     float64         `json:"max_weight"`
	Adjusted      int             `json:"adjusted"`
	ParamsJSON    json.RawMessage `json:"params_json,omitempty"`
	CreatedAt     int64           `json:"created_at"`
}

// RunStore persists weight runs.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a RunStore on an open database.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// Insert persists r. An empty RunID gets a UUID and a zero CreatedAt the
// current time.
func (s *RunStore) Insert(r *Run) error {
	if r.RunID == "" {
		r.RunID = uuid.New().String()
	}
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().UnixNano()
	}
	var params interface{}
	if len(r.ParamsJSON) > 0 {
		params = string(r.ParamsJSON)
	}
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO weight_runs (
				run_id, config, version, bootstrap_size, events,
				mean_weight, min_weight, max_weight, adjusted, params_json, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, r.Config, r.Version, r.BootstrapSize, r.Events,
			r.MeanWeight, r.MinWeight, r.MaxWeight, r.Adjusted, params, r.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		return nil
	})
}

const runColumns = `run_id, config, version, bootstrap_size, events,
	mean_weight, min_weight, max_weight, adjusted, params_json, created_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var params sql.NullString
	if err := row.Scan(
		&r.RunID, &r.Config, &r.Version, &r.BootstrapSize, &r.Events,
		&r.MeanWeight, &r.MinWeight, &r.MaxWeight, &r.Adjusted, &params, &r.CreatedAt,
	); err != nil {
		return nil, err
	}
	if params.Valid {
		r.ParamsJSON = json.RawMessage(params.String)
	}
	return &r, nil
}

// Get returns the run with the given id.
func (s *RunStore) Get(runID string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM weight_runs WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return r, nil
}

// List returns up to limit runs, newest first. A non-positive limit
// returns all runs.
func (s *RunStore) List(limit int) ([]*Run, error) {
	q := `SELECT ` + runColumns + ` FROM weight_runs ORDER BY created_at DESC`
	args := []interface{}{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
