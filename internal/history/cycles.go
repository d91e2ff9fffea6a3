package history

import (
	"github.com/google/uuid"
)

// Cycle is one task-cron pass.
type Cycle struct {
	ID         string `json:"id"`
	StartedAt  int64  `json:"startedAt"`
	FinishedAt int64  `json:"finishedAt"`
	Dispatched int    `json:"dispatched"`
	Errors     int    `json:"errors"`
	Detail     string `json:"detail,omitempty"`
}

// RecordCycle inserts one cron cycle summary.
func (db *DB) RecordCycle(c Cycle) (Cycle, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := db.Exec(
		"INSERT INTO cron_cycles (id, started_at, finished_at, dispatched, errors, detail) VALUES (?, ?, ?, ?, ?, ?)",
		c.ID, c.StartedAt, c.FinishedAt, c.Dispatched, c.Errors, c.Detail,
	)
	if err != nil {
		return Cycle{}, err
	}
	return c, nil
}

// RecentCycles returns the n most recent cycles, newest first.
func (db *DB) RecentCycles(n int) ([]Cycle, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := db.Query(
		"SELECT id, started_at, finished_at, dispatched, errors, detail FROM cron_cycles ORDER BY started_at DESC, id DESC LIMIT ?",
		n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Cycle
	for rows.Next() {
		var c Cycle
		if err := rows.Scan(&c.ID, &c.StartedAt, &c.FinishedAt, &c.Dispatched, &c.Errors, &c.Detail); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
