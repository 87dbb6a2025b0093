package logging

import (
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jingkaihe/httpstubs/internal/errx"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	ts         TEXT NOT NULL,
	run_id     TEXT NOT NULL,
	source     TEXT NOT NULL,
	event_type TEXT NOT NULL,
	summary    TEXT NOT NULL,
	stub_id    TEXT NOT NULL DEFAULT '',
	stub_name  TEXT NOT NULL DEFAULT '',
	tags       TEXT NOT NULL DEFAULT '[]',
	data       TEXT
);
CREATE INDEX IF NOT EXISTS events_run ON events (run_id, id);
`

// SQLiteJournal stores events in a SQLite database so runs can be
// queried after the fact. It implements Sink.
type SQLiteJournal struct {
	mu sync.Mutex
	db *sql.DB
}

// OpenSQLiteJournal opens (or creates) the journal database at path.
func OpenSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errx.Wrap(ErrOpenJournal, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, errx.Wrap(ErrOpenJournal, err)
	}
	if _, err := db.Exec(journalSchema); err != nil {
		db.Close()
		return nil, errx.Wrap(ErrOpenJournal, err)
	}
	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) Write(event *Event) error {
	tags, err := json.Marshal(event.Tags)
	if err != nil {
		return errx.Wrap(ErrMarshalData, err)
	}
	if event.Tags == nil {
		tags = []byte("[]")
	}
	var data any
	if len(event.Data) > 0 {
		data = string(event.Data)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return errx.With(ErrWriteEvent, ": journal closed")
	}
	_, err = j.db.Exec(
		`INSERT INTO events (ts, run_id, source, event_type, summary, stub_id, stub_name, tags, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.Timestamp.UTC().Format(time.RFC3339Nano),
		event.RunID, event.Source, event.EventType, event.Summary,
		event.StubID, event.StubName, string(tags), data,
	)
	if err != nil {
		return errx.Wrap(ErrWriteEvent, err)
	}
	return nil
}

// Events returns the events of a run in write order. An empty runID
// returns every stored event.
func (j *SQLiteJournal) Events(runID string) ([]Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil, errx.With(ErrQueryJournal, ": journal closed")
	}

	q := `SELECT ts, run_id, source, event_type, summary, stub_id, stub_name, tags, data FROM events`
	var args []any
	if runID != "" {
		q += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	rows, err := j.db.Query(q+` ORDER BY id`, args...)
	if err != nil {
		return nil, errx.Wrap(ErrQueryJournal, err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e    Event
			ts   string
			tags string
			data sql.NullString
		)
		if err := rows.Scan(&ts, &e.RunID, &e.Source, &e.EventType, &e.Summary, &e.StubID, &e.StubName, &tags, &data); err != nil {
			return nil, errx.Wrap(ErrQueryJournal, err)
		}
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, errx.Wrap(ErrQueryJournal, err)
		}
		if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
			return nil, errx.Wrap(ErrQueryJournal, err)
		}
		if len(e.Tags) == 0 {
			e.Tags = nil
		}
		if data.Valid {
			e.Data = json.RawMessage(data.String)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.Wrap(ErrQueryJournal, err)
	}
	return events, nil
}

func (j *SQLiteJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	if err != nil {
		return errx.Wrap(ErrCloseWriter, err)
	}
	return nil
}
