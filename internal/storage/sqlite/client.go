package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/laserostop/cm-backend/internal/storage/models"
	"github.com/laserostop/cm-backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS interactions (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		channel TEXT,
		user_text TEXT NOT NULL,
		assistant_text TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		model_version TEXT NOT NULL,
		rag_version TEXT,
		rag_used INTEGER NOT NULL DEFAULT 1,
		flags TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_interactions_user ON interactions(user_id, channel);
	CREATE INDEX IF NOT EXISTS idx_interactions_created ON interactions(created_at);
	CREATE INDEX IF NOT EXISTS idx_interactions_model ON interactions(model_version);

	CREATE TABLE IF NOT EXISTS eval_examples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		input_text TEXT NOT NULL,
		ideal_answer TEXT,
		category TEXT,
		sensitivity TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_eval_examples_category ON eval_examples(category);
	CREATE INDEX IF NOT EXISTS idx_eval_examples_sensitivity ON eval_examples(sensitivity);

	CREATE TABLE IF NOT EXISTS eval_runs (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		model_version TEXT NOT NULL,
		rag_version TEXT,
		num_examples INTEGER NOT NULL,
		accuracy_score REAL,
		dialect_score REAL,
		safety_score REAL,
		cta_presence_rate REAL,
		notes TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_eval_runs_created ON eval_runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_eval_runs_model ON eval_runs(model_version);

	CREATE TABLE IF NOT EXISTS eval_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		eval_run_id TEXT NOT NULL,
		eval_example_id INTEGER NOT NULL,
		input_text TEXT NOT NULL,
		ideal_answer TEXT,
		predicted_answer TEXT NOT NULL,
		is_acceptable INTEGER,
		error_type TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (eval_run_id) REFERENCES eval_runs(id) ON DELETE CASCADE,
		FOREIGN KEY (eval_example_id) REFERENCES eval_examples(id)
	);
	CREATE INDEX IF NOT EXISTS idx_eval_results_run ON eval_results(eval_run_id);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertInteraction(interaction *models.Interaction) error {
	query := `
		INSERT INTO interactions (id, user_id, channel, user_text, assistant_text,
			created_at, model_version, rag_version, rag_used, flags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		interaction.ID,
		interaction.UserID,
		interaction.Channel,
		interaction.UserText,
		interaction.AssistantText,
		interaction.CreatedAt.Unix(),
		interaction.ModelVersion,
		interaction.RAGVersion,
		boolToInt(interaction.RAGUsed),
		interaction.Flags,
	)

	if err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}

	logger.Debug("Interaction logged",
		zap.String("interaction_id", interaction.ID),
		zap.String("channel", interaction.Channel),
	)

	return nil
}

// RecentInteractions returns up to limit turns for a user+channel,
// most recent first.
func (c *Client) RecentInteractions(userID, channel string, limit int) ([]models.Interaction, error) {
	query := `
		SELECT id, user_id, channel, user_text, assistant_text, created_at,
			model_version, rag_version, rag_used, flags
		FROM interactions
		WHERE user_id = ? AND channel = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, userID, channel, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent interactions: %w", err)
	}
	defer rows.Close()

	var interactions []models.Interaction
	for rows.Next() {
		var it models.Interaction
		var createdAt int64
		var ragUsed int

		err := rows.Scan(&it.ID, &it.UserID, &it.Channel, &it.UserText, &it.AssistantText,
			&createdAt, &it.ModelVersion, &it.RAGVersion, &ragUsed, &it.Flags)
		if err != nil {
			return nil, fmt.Errorf("failed to scan interaction row: %w", err)
		}

		it.CreatedAt = time.Unix(createdAt, 0)
		it.RAGUsed = ragUsed != 0
		interactions = append(interactions, it)
	}

	return interactions, rows.Err()
}

func (c *Client) InsertEvalExample(example *models.EvalExample) error {
	query := `
		INSERT INTO eval_examples (input_text, ideal_answer, category, sensitivity, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	res, err := c.db.Exec(
		query,
		example.InputText,
		example.IdealAnswer,
		example.Category,
		example.Sensitivity,
		example.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert eval example: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read eval example id: %w", err)
	}
	example.ID = id

	return nil
}

// ListEvalExamples returns examples filtered by category (empty = all)
// and truncated to limit (<= 0 = all), in insertion order.
func (c *Client) ListEvalExamples(category string, limit int) ([]models.EvalExample, error) {
	query := `
		SELECT id, input_text, ideal_answer, category, sensitivity, created_at
		FROM eval_examples
	`
	args := []any{}
	if category != "" {
		query += " WHERE category = ?"
		args = append(args, category)
	}
	query += " ORDER BY id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list eval examples: %w", err)
	}
	defer rows.Close()

	var examples []models.EvalExample
	for rows.Next() {
		var ex models.EvalExample
		var createdAt int64

		err := rows.Scan(&ex.ID, &ex.InputText, &ex.IdealAnswer, &ex.Category, &ex.Sensitivity, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan eval example row: %w", err)
		}

		ex.CreatedAt = time.Unix(createdAt, 0)
		examples = append(examples, ex)
	}

	return examples, rows.Err()
}

func (c *Client) DeleteEvalExamples() (int64, error) {
	res, err := c.db.Exec("DELETE FROM eval_examples")
	if err != nil {
		return 0, fmt.Errorf("failed to delete eval examples: %w", err)
	}
	return res.RowsAffected()
}

// SaveEvalRun persists a run and all its results in a single transaction.
// Nothing is visible if any insert fails.
func (c *Client) SaveEvalRun(run *models.EvalRun, results []models.EvalResult) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin eval transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO eval_runs (id, created_at, model_version, rag_version, num_examples,
			accuracy_score, dialect_score, safety_score, cta_presence_rate, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.CreatedAt.Unix(),
		run.ModelVersion,
		run.RAGVersion,
		run.NumExamples,
		run.AccuracyScore,
		run.DialectScore,
		run.SafetyScore,
		run.CTAPresenceRate,
		run.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to insert eval run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO eval_results (eval_run_id, eval_example_id, input_text, ideal_answer,
			predicted_answer, is_acceptable, error_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare eval result insert: %w", err)
	}
	defer stmt.Close()

	for i := range results {
		r := &results[i]
		var acceptable any
		if r.IsAcceptable != nil {
			acceptable = boolToInt(*r.IsAcceptable)
		}

		_, err := stmt.Exec(
			run.ID,
			r.EvalExampleID,
			r.InputText,
			r.IdealAnswer,
			r.PredictedAnswer,
			acceptable,
			r.ErrorType,
			r.CreatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert eval result for example %d: %w", r.EvalExampleID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit eval transaction: %w", err)
	}

	logger.Info("Eval run persisted",
		zap.String("eval_run_id", run.ID),
		zap.Int("num_results", len(results)),
	)

	return nil
}

func (c *Client) GetEvalRun(id string) (*models.EvalRun, error) {
	query := `
		SELECT id, created_at, model_version, rag_version, num_examples,
			accuracy_score, dialect_score, safety_score, cta_presence_rate, notes
		FROM eval_runs WHERE id = ?
	`

	var run models.EvalRun
	var createdAt int64

	err := c.db.QueryRow(query, id).Scan(&run.ID, &createdAt, &run.ModelVersion, &run.RAGVersion,
		&run.NumExamples, &run.AccuracyScore, &run.DialectScore, &run.SafetyScore,
		&run.CTAPresenceRate, &run.Notes)
	if err != nil {
		return nil, fmt.Errorf("failed to get eval run %s: %w", id, err)
	}

	run.CreatedAt = time.Unix(createdAt, 0)
	return &run, nil
}

// ErrorBreakdown counts results per error type for a run. Results without
// an error type are not counted.
func (c *Client) ErrorBreakdown(runID string) (map[string]int, error) {
	rows, err := c.db.Query(`
		SELECT error_type, COUNT(*) FROM eval_results
		WHERE eval_run_id = ? AND error_type IS NOT NULL
		GROUP BY error_type`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get error breakdown: %w", err)
	}
	defer rows.Close()

	breakdown := make(map[string]int)
	for rows.Next() {
		var errorType string
		var count int
		if err := rows.Scan(&errorType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan breakdown row: %w", err)
		}
		breakdown[errorType] = count
	}

	return breakdown, rows.Err()
}

func (c *Client) TableCounts() (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, table := range []string{"interactions", "eval_examples", "eval_runs", "eval_results"} {
		var n int64
		if err := c.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
