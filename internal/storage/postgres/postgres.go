// Package postgres persists the judging event log. Every emitted event
// lands in one append-only table, scoped by keeper instance so several
// instances can share a database. Submit-scoped queries drive session
// restore after a restart.
package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
)

// EventRow represents an event stored in Postgres.
type EventRow struct {
	EventID   int64          `json:"event_id"`
	Timestamp time.Time      `json:"ts"`
	Level     string         `json:"level"`
	Event     string         `json:"event"`
	Message   *string        `json:"msg,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	Instance  string         `json:"instance"`
	SubmitID  *string        `json:"submit_id,omitempty"`
}

// Client manages the Postgres connection for event storage.
type Client struct {
	db       *sql.DB
	instance string
}

// New opens a connection using the standard PG* environment variables
// and makes sure the events table exists.
func New(instance string) (*Client, error) {
	host := getEnv("PGHOST", "127.0.0.1")
	port := getEnv("PGPORT", "5432")
	user := getEnv("PGUSER", "judgekeeper")
	dbname := getEnv("PGDATABASE", "judgekeeper")
	password := os.Getenv("PGPASSWORD")

	var connStr string
	if password != "" {
		connStr = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host, port, user, password, dbname)
	} else {
		connStr = fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable",
			host, port, user, dbname)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	client := &Client{
		db:       db,
		instance: instance,
	}

	if err := client.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create judge_events table: %w", err)
	}

	return client, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func (c *Client) createTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS judge_events (
			event_id  BIGSERIAL PRIMARY KEY,
			ts        TIMESTAMPTZ NOT NULL,
			level     TEXT NOT NULL,
			event     TEXT NOT NULL,
			msg       TEXT,
			fields    JSONB,
			instance  TEXT NOT NULL,
			submit_id TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_judge_events_ts ON judge_events(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_judge_events_submit ON judge_events(instance, submit_id);
	`
	_, err := c.db.Exec(query)
	return err
}

// Append inserts an event into the log.
func (c *Client) Append(ts time.Time, level, event, msg string, fields map[string]any, submitID string) error {
	var fieldsJSON []byte
	var err error
	if fields != nil {
		fieldsJSON, err = json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields: %w", err)
		}
	}

	var msgPtr *string
	if msg != "" {
		msgPtr = &msg
	}

	var submitPtr *string
	if submitID != "" {
		submitPtr = &submitID
	}

	query := `
		INSERT INTO judge_events (ts, level, event, msg, fields, instance, submit_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = c.db.Exec(query, ts, level, event, msgPtr, fieldsJSON, c.instance, submitPtr)
	return err
}

// Query returns the last N events of this instance, newest first.
func (c *Client) Query(limit int) ([]EventRow, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 10000 {
		limit = 10000
	}

	query := `
		SELECT event_id, ts, level, event, msg, fields, instance, submit_id
		FROM judge_events
		WHERE instance = $1
		ORDER BY ts DESC
		LIMIT $2
	`
	rows, err := c.db.Query(query, c.instance, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

// QueryBySubmit returns every event of one submission in insertion
// order, oldest first. Session restore replays this.
func (c *Client) QueryBySubmit(submitID string) ([]EventRow, error) {
	query := `
		SELECT event_id, ts, level, event, msg, fields, instance, submit_id
		FROM judge_events
		WHERE instance = $1 AND submit_id = $2
		ORDER BY event_id ASC
	`
	rows, err := c.db.Query(query, c.instance, submitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

// OpenSubmits returns submit ids that have a submit.received event but
// no terminal submit.judged or submit.failed event yet.
func (c *Client) OpenSubmits() ([]string, error) {
	query := `
		SELECT DISTINCT submit_id
		FROM judge_events
		WHERE instance = $1
		  AND submit_id IS NOT NULL
		  AND event = 'submit.received'
		  AND submit_id NOT IN (
			SELECT submit_id FROM judge_events
			WHERE instance = $1
			  AND submit_id IS NOT NULL
			  AND event IN ('submit.judged', 'submit.failed')
		  )
		ORDER BY submit_id
	`
	rows, err := c.db.Query(query, c.instance)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanRows(rows *sql.Rows) ([]EventRow, error) {
	var events []EventRow
	for rows.Next() {
		var e EventRow
		var fieldsJSON []byte
		var msg, submitID sql.NullString

		if err := rows.Scan(&e.EventID, &e.Timestamp, &e.Level, &e.Event, &msg, &fieldsJSON, &e.Instance, &submitID); err != nil {
			return nil, err
		}

		if msg.Valid {
			e.Message = &msg.String
		}
		if submitID.Valid {
			e.SubmitID = &submitID.String
		}
		if len(fieldsJSON) > 0 {
			if err := json.Unmarshal(fieldsJSON, &e.Fields); err != nil {
				return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
			}
		}

		events = append(events, e)
	}

	return events, rows.Err()
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
