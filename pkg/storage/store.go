package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"ops-guardian/pkg/decision"
)

// DecisionStore is an audit journal of computed scaling decisions and their
// execution outcome. It is write-behind observability, not system state:
// the monitoring loop works entirely from in-memory history.
type DecisionStore struct {
	db *sql.DB
}

func NewDecisionStore(dbPath string) (*DecisionStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &DecisionStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *DecisionStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scaling_decisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		service TEXT NOT NULL,
		current_replicas INTEGER NOT NULL,
		target_replicas INTEGER NOT NULL,
		rationale TEXT NOT NULL,
		confidence REAL NOT NULL,
		coordination_needed INTEGER NOT NULL,
		source TEXT NOT NULL,
		executed INTEGER NOT NULL,
		execution_error TEXT,
		correlation_id TEXT,
		decided_at TEXT NOT NULL,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_scaling_decisions_service ON scaling_decisions(service);
	CREATE INDEX IF NOT EXISTS idx_scaling_decisions_decided_at ON scaling_decisions(decided_at DESC);
	CREATE INDEX IF NOT EXISTS idx_scaling_decisions_correlation_id ON scaling_decisions(correlation_id);
	`
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}

func (s *DecisionStore) Close() error {
	return s.db.Close()
}

// DecisionRecord is one journal row.
type DecisionRecord struct {
	ID                 int64   `json:"id"`
	ServiceName        string  `json:"serviceName"`
	CurrentReplicas    int     `json:"currentReplicas"`
	TargetReplicas     int     `json:"targetReplicas"`
	Rationale          string  `json:"rationale"`
	Confidence         float64 `json:"confidence"`
	CoordinationNeeded bool    `json:"coordinationNeeded"`
	Source             string  `json:"source"`
	Executed           bool    `json:"executed"`
	ExecutionError     string  `json:"executionError,omitempty"`
	CorrelationID      string  `json:"correlationId,omitempty"`
	DecidedAt          string  `json:"decidedAt"`
	CreatedAt          string  `json:"createdAt"`
}

// LogDecision appends a decision and its execution outcome to the journal.
func (s *DecisionStore) LogDecision(d decision.ScalingDecision, executed bool, executionError, correlationID string) (*DecisionRecord, error) {
	query := `
		INSERT INTO scaling_decisions
		(service, current_replicas, target_replicas, rationale, confidence, coordination_needed, source, executed, execution_error, correlation_id, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	decidedAt := d.Timestamp.UTC().Format(time.RFC3339)
	res, err := s.db.Exec(query,
		d.ServiceName, d.CurrentReplicas, d.TargetReplicas, d.Rationale, d.Confidence,
		boolToInt(d.CoordinationNeeded), d.Source, boolToInt(executed), executionError, correlationID, decidedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert decision: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return &DecisionRecord{
		ID:                 id,
		ServiceName:        d.ServiceName,
		CurrentReplicas:    d.CurrentReplicas,
		TargetReplicas:     d.TargetReplicas,
		Rationale:          d.Rationale,
		Confidence:         d.Confidence,
		CoordinationNeeded: d.CoordinationNeeded,
		Source:             d.Source,
		Executed:           executed,
		ExecutionError:     executionError,
		CorrelationID:      correlationID,
		DecidedAt:          decidedAt,
		CreatedAt:          time.Now().UTC().Format(time.RFC3339),
	}, nil
}

type GetHistoryOptions struct {
	Limit   int
	Offset  int
	Service string
}

// GetHistory returns journal rows, newest first.
func (s *DecisionStore) GetHistory(opts GetHistoryOptions) ([]DecisionRecord, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT id, service, current_replicas, target_replicas, rationale, confidence,
		coordination_needed, source, executed, execution_error, correlation_id, decided_at, created_at
		FROM scaling_decisions`
	args := []interface{}{}

	if opts.Service != "" {
		query += " WHERE service = ?"
		args = append(args, opts.Service)
	}

	query += " ORDER BY decided_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var records []DecisionRecord
	for rows.Next() {
		var r DecisionRecord
		var coordinationNeeded, executed int
		var executionError, corrID sql.NullString

		if err := rows.Scan(&r.ID, &r.ServiceName, &r.CurrentReplicas, &r.TargetReplicas, &r.Rationale,
			&r.Confidence, &coordinationNeeded, &r.Source, &executed, &executionError, &corrID,
			&r.DecidedAt, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.CoordinationNeeded = coordinationNeeded != 0
		r.Executed = executed != 0
		if executionError.Valid {
			r.ExecutionError = executionError.String
		}
		if corrID.Valid {
			r.CorrelationID = corrID.String
		}

		records = append(records, r)
	}

	return records, rows.Err()
}

// GetCount counts journal rows, optionally filtered by service.
func (s *DecisionStore) GetCount(service string) (int, error) {
	query := "SELECT COUNT(*) FROM scaling_decisions"
	args := []interface{}{}
	if service != "" {
		query += " WHERE service = ?"
		args = append(args, service)
	}

	var count int
	err := s.db.QueryRow(query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count decisions: %w", err)
	}
	return count, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
