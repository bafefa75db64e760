package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"pulseboard/internal/sched"
	logx "pulseboard/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Store writes batch records to sqlite. RecordBatch is non-blocking: rows
// are enqueued to a writer goroutine so the scheduler's dispatch path never
// waits on disk.
type Store struct {
	db  *sql.DB
	log logx.Logger
	cfg Config

	queue chan sched.BatchRecord
	wg    sync.WaitGroup
	stop  chan struct{}

	writes uint64
}

// Open returns (nil, nil) when the store is disabled; a nil *Store is a
// safe no-op Recorder.
func Open(cfg Config, log logx.Logger) (*Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("history: sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &Store{
		db:    db,
		log:   log,
		cfg:   cfg,
		queue: make(chan sched.BatchRecord, 128),
		stop:  make(chan struct{}),
	}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	st.wg.Add(1)
	go st.writer()
	return st, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

// RecordBatch implements sched.Recorder. A full queue drops the record; the
// scheduler must never block on history.
func (s *Store) RecordBatch(rec sched.BatchRecord) {
	if s == nil {
		return
	}
	select {
	case s.queue <- rec:
	default:
		s.log.Warn("history queue full, dropping record")
	}
}

func (s *Store) writer() {
	defer s.wg.Done()
	for {
		select {
		case rec := <-s.queue:
			s.insert(rec)
		case <-s.stop:
			// Drain what is already queued before exiting.
			for {
				select {
				case rec := <-s.queue:
					s.insert(rec)
				default:
					return
				}
			}
		}
	}
}

const pruneEvery = 256

func (s *Store) insert(rec sched.BatchRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO batches(perform_at, performed_at, jobs, weight, panics) VALUES(?,?,?,?,?)`,
		rec.PerformAt.UnixMilli(), rec.PerformedAt.UnixMilli(), rec.Jobs, rec.Weight, rec.Panics,
	)
	if err != nil {
		s.log.Warn("history insert failed", logx.Err(err))
		return
	}
	s.writes++
	if s.cfg.Retention > 0 && s.writes%pruneEvery == 0 {
		s.prune()
	}
}

func (s *Store) prune() {
	cutoff := time.Now().Add(-s.cfg.Retention).UnixMilli()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM batches WHERE performed_at < ?`, cutoff); err != nil {
		s.log.Warn("history prune failed", logx.Err(err))
	}
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if n <= 0 {
		n = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, perform_at, performed_at, jobs, weight, panics
		 FROM batches ORDER BY performed_at DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var performAt, performedAt int64
		if err := rows.Scan(&e.ID, &performAt, &performedAt, &e.Jobs, &e.Weight, &e.Panics); err != nil {
			return nil, err
		}
		e.PerformAt = time.UnixMilli(performAt)
		e.PerformedAt = time.UnixMilli(performedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close stops the writer (flushing queued records) and closes the database.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	close(s.stop)
	s.wg.Wait()
	return s.db.Close()
}
