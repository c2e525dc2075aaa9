// Package store persists mining runs and their derived security
// policies to PostgreSQL.
//
// Grounded on internal/db/postgres.go's pgxpool connect/transaction
// shape: Connect/Close/InitSchema are carried over near-verbatim, and
// SaveAnalysisResult's "single row plus a batch of child rows inside
// one transaction" pattern becomes SaveMiningRun's "one run row (roles
// stored as a JSON column) plus a batch of policy rows."
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spcon-go/rolemine/pkg/models"
)

// PostgresStore is the engine's result sink.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect opens the connection pool and verifies connectivity.
func Connect(connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %v", err)
	}
	log.Println("Successfully connected to PostgreSQL for the role-mining engine")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema loads and executes the schema.sql file.
func (s *PostgresStore) InitSchema() error {
	schemaBytes, err := os.ReadFile("internal/store/schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %v", err)
	}
	_, err = s.pool.Exec(context.Background(), string(schemaBytes))
	if err != nil {
		return fmt.Errorf("failed to execute schema migrations: %v", err)
	}
	log.Println("Role-mining schema initialized")
	return nil
}

// SaveMiningRun persists a completed run: the run row itself (with the
// mined roles as a JSON column) and one row per derived policy, all
// inside a single transaction.
func (s *PostgresStore) SaveMiningRun(ctx context.Context, run *models.MiningRun) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rolesJSON, err := json.Marshal(run.Roles)
	if err != nil {
		return fmt.Errorf("marshaling roles: %v", err)
	}
	warningsJSON, err := json.Marshal(run.Warnings)
	if err != nil {
		return fmt.Errorf("marshaling warnings: %v", err)
	}

	insertRunSQL := `
		INSERT INTO mining_runs (id, address, status, roles, warnings, error, started_at, finished_at, basic_role_count, user_count, function_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, roles = EXCLUDED.roles, warnings = EXCLUDED.warnings,
		    error = EXCLUDED.error, finished_at = EXCLUDED.finished_at;
	`
	_, err = tx.Exec(ctx, insertRunSQL,
		run.ID, run.Address, run.Status, rolesJSON, warningsJSON, run.Error,
		run.StartedAt, run.FinishedAt, run.BasicRoleN, run.UserCount, run.FunctionCount)
	if err != nil {
		return fmt.Errorf("failed to insert mining_runs: %v", err)
	}

	if len(run.Policies) > 0 {
		insertPolicySQL := `
			INSERT INTO mining_policies (run_id, kind, data, privileged_functions, role)
			VALUES ($1, $2, $3, $4, $5);
		`
		for _, p := range run.Policies {
			dataJSON, _ := json.Marshal(p.Data)
			fnsJSON, _ := json.Marshal(p.PrivilegedFunctions)
			roleJSON, _ := json.Marshal(p.Role)
			_, err = tx.Exec(ctx, insertPolicySQL, run.ID, p.Kind, dataJSON, fnsJSON, roleJSON)
			if err != nil {
				return fmt.Errorf("failed to insert mining_policies: %v", err)
			}
		}
	}

	return tx.Commit(ctx)
}

// RunSummary is a lightweight listing row, analogous to the teacher's
// MixerInfo projection over tx_heuristics.
type RunSummary struct {
	ID         string `json:"id"`
	Address    string `json:"address"`
	Status     string `json:"status"`
	PolicyCount int   `json:"policyCount"`
}

// ListRuns pages through recorded mining runs for a given address,
// newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, address string, page, limit int) ([]RunSummary, int, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM mining_runs WHERE address = $1`, address).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT r.id, r.address, r.status, COUNT(p.run_id)
		FROM mining_runs r
		LEFT JOIN mining_policies p ON p.run_id = r.id
		WHERE r.address = $1
		GROUP BY r.id, r.address, r.status
		ORDER BY r.started_at DESC
		LIMIT $2 OFFSET $3
	`, address, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Address, &r.Status, &r.PolicyCount); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	if out == nil {
		out = []RunSummary{}
	}
	return out, total, nil
}

// GetPool exposes the connection pool for components that need direct
// access (mirrors the teacher's GetPool escape hatch).
func (s *PostgresStore) GetPool() *pgxpool.Pool {
	return s.pool
}
