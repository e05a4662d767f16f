// Package audit appends rating mutations to the event_log table.
package audit

import (
	"context"
	"database/sql"
	"time"
)

type Event struct {
	Offset    int64
	Type      string // RatingCreated | RatingUpdated | RatingDeleted
	Key       string // natural key: "Subject/Item"
	DataJSON  string
	CreatedAt int64
}

type Log struct{ db *sql.DB }

func NewLog(db *sql.DB) *Log { return &Log{db: db} }

func (l *Log) Append(ctx context.Context, e Event) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO event_log (typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4)`,
		e.Type, e.Key, e.DataJSON, time.Now().Unix())
	return err
}
