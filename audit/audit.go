// Package audit records moderation actions taken through the bot.
package audit

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Entry is a single moderation action.
type Entry struct {
	// Guild is the guild in which the action was taken.
	Guild string
	// Channel is the channel where the command was invoked.
	Channel string
	// Actor is the user ID of the moderator.
	Actor string
	// Action is the name of the command.
	Action string
	// Target is the user, role, or channel acted upon.
	Target string
	// Reason is the reason given, if any.
	Reason string
	// Time is the time of the action.
	Time time.Time
}

// Log is an audit log backed by an SQL database.
type Log struct {
	db *sqlitex.Pool
}

//go:embed schema.sql
var schemaSQL string

// Open opens an existing audit log in an SQL database.
func Open(ctx context.Context, db *sqlitex.Pool) (*Log, error) {
	conn, err := db.Take(ctx)
	defer db.Put(conn)
	if err != nil {
		return nil, fmt.Errorf("couldn't get connection to open audit log: %w", err)
	}
	st, err := conn.Prepare(`SELECT EXISTS (SELECT 1 FROM sqlite_schema WHERE type='table' AND name='audit')`)
	if err != nil {
		return nil, fmt.Errorf("couldn't prepare statement to check audit schema: %w", err)
	}
	ok, err := sqlitex.ResultBool(st)
	if err != nil {
		return nil, fmt.Errorf("couldn't check audit schema: %w", err)
	}
	if !ok {
		return nil, errors.New("audit log is not initialized")
	}
	return &Log{db: db}, nil
}

// Init initializes an audit log in an SQL database.
// For convenience, it accepts either a single connection or a pool.
func Init[DB *sqlite.Conn | *sqlitex.Pool](ctx context.Context, db DB) error {
	var conn *sqlite.Conn
	switch db := any(db).(type) {
	case *sqlite.Conn:
		conn = db
	case *sqlitex.Pool:
		var err error
		conn, err = db.Take(ctx)
		defer db.Put(conn)
		if err != nil {
			return fmt.Errorf("couldn't get connection from pool: %w", err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schemaSQL, nil); err != nil {
		return fmt.Errorf("couldn't initialize audit schema: %w", err)
	}
	return nil
}

// Record adds an entry to the log.
func (l *Log) Record(ctx context.Context, e Entry) error {
	conn, err := l.db.Take(ctx)
	defer l.db.Put(conn)
	if err != nil {
		return fmt.Errorf("couldn't get connection to record audit entry: %w", err)
	}
	const insert = `INSERT INTO audit (guild, channel, actor, action, target, reason, time) VALUES (:guild, :channel, :actor, :action, :target, :reason, :time)`
	opts := sqlitex.ExecOptions{
		Named: map[string]any{
			":guild":   e.Guild,
			":channel": e.Channel,
			":actor":   e.Actor,
			":action":  e.Action,
			":target":  e.Target,
			":reason":  e.Reason,
			":time":    e.Time.UnixMilli(),
		},
	}
	if err := sqlitex.Execute(conn, insert, &opts); err != nil {
		return fmt.Errorf("couldn't record audit entry: %w", err)
	}
	return nil
}

// Recent returns up to n of the most recent entries in a guild, newest first.
func (l *Log) Recent(ctx context.Context, guild string, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	conn, err := l.db.Take(ctx)
	defer l.db.Put(conn)
	if err != nil {
		return nil, fmt.Errorf("couldn't get connection to read audit log: %w", err)
	}
	const sel = `SELECT guild, channel, actor, action, target, reason, time FROM audit WHERE guild=:guild ORDER BY time DESC, id DESC LIMIT :n`
	r := make([]Entry, 0, n)
	opts := sqlitex.ExecOptions{
		Named: map[string]any{
			":guild": guild,
			":n":     int64(n),
		},
		ResultFunc: func(st *sqlite.Stmt) error {
			r = append(r, Entry{
				Guild:   st.ColumnText(0),
				Channel: st.ColumnText(1),
				Actor:   st.ColumnText(2),
				Action:  st.ColumnText(3),
				Target:  st.ColumnText(4),
				Reason:  st.ColumnText(5),
				Time:    time.UnixMilli(st.ColumnInt64(6)),
			})
			return nil
		},
	}
	if err := sqlitex.Execute(conn, sel, &opts); err != nil {
		return nil, fmt.Errorf("couldn't read audit log: %w", err)
	}
	return r, nil
}
