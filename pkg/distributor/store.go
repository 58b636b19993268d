package distributor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists Deployment records to sqlite so a distributor restart can
// resume reporting the last known Deployment state for each service. It is
// a warm-cache/resume aid only: the instance map is always rebuilt from a
// fresh discovery pass, and any Deployment still non-terminal at open time
// is treated by Start as a crash and marked Failed rather than resumed,
// since resuming a rollout without knowing which in-flight RPCs actually
// landed would violate rollout monotonicity.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if necessary) the sqlite database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open distributor store: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Ping verifies the underlying sqlite connection is reachable, for the
// distributor's readiness check.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS deployments (
	deployment_id TEXT PRIMARY KEY,
	service TEXT NOT NULL,
	state INTEGER NOT NULL,
	payload TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_deployments_service ON deployments(service);
`)
	if err != nil {
		return fmt.Errorf("migrate distributor store: %w", err)
	}
	return nil
}

// deploymentRow is the JSON-encoded persisted shape. The in-flight
// cancellation flag lives on serviceDeployment, not Deployment, and is
// intentionally not persisted: a restart always clears cancellation along
// with the rest of in-memory rollout state.
type deploymentRow struct {
	DeploymentID    string        `json:"deployment_id"`
	Service         string        `json:"service"`
	TargetVersion   string        `json:"target_version"`
	PreviousVersion string        `json:"previous_version"`
	Strategy        Strategy      `json:"strategy"`
	State           DeploymentState `json:"state"`
	StartedAt       string        `json:"started_at"`
	FinishedAt      string        `json:"finished_at,omitempty"`
	Batches         []BatchResult `json:"batches"`
	Error           string        `json:"error,omitempty"`
}

func toRow(dep *Deployment) deploymentRow {
	row := deploymentRow{
		DeploymentID:    dep.DeploymentID,
		Service:         dep.Service,
		TargetVersion:   dep.TargetVersion,
		PreviousVersion: dep.PreviousVersion,
		Strategy:        dep.Strategy,
		State:           dep.State,
		Batches:         dep.Batches,
		Error:           dep.Error,
	}
	row.StartedAt = dep.StartedAt.Format(timeLayout)
	if !dep.FinishedAt.IsZero() {
		row.FinishedAt = dep.FinishedAt.Format(timeLayout)
	}
	return row
}

func fromRow(row deploymentRow) *Deployment {
	dep := &Deployment{
		DeploymentID:    row.DeploymentID,
		Service:         row.Service,
		TargetVersion:   row.TargetVersion,
		PreviousVersion: row.PreviousVersion,
		Strategy:        row.Strategy,
		State:           row.State,
		Batches:         row.Batches,
		Error:           row.Error,
	}
	dep.StartedAt = parseTimeOrZero(row.StartedAt)
	dep.FinishedAt = parseTimeOrZero(row.FinishedAt)
	return dep
}

const timeLayout = time.RFC3339Nano

func parseTimeOrZero(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// SaveDeployment upserts dep's current state.
func (s *Store) SaveDeployment(dep *Deployment) error {
	row := toRow(dep)
	payload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshal deployment: %w", err)
	}
	_, err = s.db.Exec(`
INSERT INTO deployments (deployment_id, service, state, payload, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(deployment_id) DO UPDATE SET
	state = excluded.state,
	payload = excluded.payload,
	updated_at = excluded.updated_at
`, dep.DeploymentID, dep.Service, int(dep.State), string(payload), time.Now().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("save deployment: %w", err)
	}
	return nil
}

// LoadNonTerminalDeployments returns every Deployment whose last persisted
// state was not one of Completed/Failed/RolledBack -- evidence of a crash
// mid-rollout. Called once by Start.
func (s *Store) LoadNonTerminalDeployments() ([]*Deployment, error) {
	rows, err := s.db.Query(`SELECT payload FROM deployments WHERE state NOT IN (?, ?, ?)`,
		int(StateCompleted), int(StateFailed), int(StateRolledBack))
	if err != nil {
		return nil, fmt.Errorf("query non-terminal deployments: %w", err)
	}
	defer rows.Close()

	var out []*Deployment
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan deployment row: %w", err)
		}
		var row deploymentRow
		if err := json.Unmarshal([]byte(payload), &row); err != nil {
			return nil, fmt.Errorf("unmarshal deployment row: %w", err)
		}
		out = append(out, fromRow(row))
	}
	return out, rows.Err()
}

// LoadDeploymentByID returns the persisted Deployment with the given ID, or
// nil if none exists. Used by the rollback command to recover a past
// Deployment's service and previous_version without the caller having to
// track them separately.
func (s *Store) LoadDeploymentByID(id string) (*Deployment, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM deployments WHERE deployment_id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query deployment %s: %w", id, err)
	}
	var row deploymentRow
	if err := json.Unmarshal([]byte(payload), &row); err != nil {
		return nil, fmt.Errorf("unmarshal deployment row: %w", err)
	}
	return fromRow(row), nil
}

// LoadLatestDeploymentForService returns the most recently updated
// persisted Deployment for service, or nil if none exists. Used by the
// status command to report a service's last known rollout across restarts
// (the in-memory Distributor view only holds what it has run itself).
func (s *Store) LoadLatestDeploymentForService(service string) (*Deployment, error) {
	var payload string
	err := s.db.QueryRow(`
SELECT payload FROM deployments WHERE service = ? ORDER BY updated_at DESC LIMIT 1`, service).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest deployment for %s: %w", service, err)
	}
	var row deploymentRow
	if err := json.Unmarshal([]byte(payload), &row); err != nil {
		return nil, fmt.Errorf("unmarshal deployment row: %w", err)
	}
	return fromRow(row), nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
