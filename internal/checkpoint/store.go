// Package checkpoint persists which downloaded items are already complete so
// an interrupted bulk download can resume.
//
// The store is a sqlite database beneath the download root. It is read once
// when a run starts and written incrementally: marks are buffered and flushed
// in one transaction after FlushEvery marks or FlushInterval, whichever comes
// first, and on Close. A crash loses at most the buffered marks.
package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	ioutils "github.com/handiism/cog-bulk/internal/io"
	"github.com/handiism/cog-bulk/internal/logger"
	"github.com/handiism/cog-bulk/internal/model"
)

const (
	// Dir is created beneath the download root to hold the database.
	Dir = ".cog-bulk"
	// FileName is the database file inside Dir.
	FileName = "checkpoint.db"

	DefaultFlushEvery    = 25
	DefaultFlushInterval = 2 * time.Second
)

const schema = `CREATE TABLE IF NOT EXISTS completed (
	id TEXT PRIMARY KEY,
	done INTEGER NOT NULL,
	completed_at TEXT NOT NULL
)`

// Path returns the database location for a download root.
func Path(root string) string {
	return filepath.Join(root, Dir, FileName)
}

// Store is a persistent completed-id set.
type Store struct {
	db   *sql.DB
	stbl sq.StatementBuilderType
	log  logger.Logger

	flushEvery    int
	flushInterval time.Duration

	mu      sync.Mutex
	pending map[model.ID]time.Time
	done    map[model.ID]bool

	flushMu sync.Mutex
	stop    chan struct{}
	stopped chan struct{}
	closed  bool
}

// Option configures a Store.
type Option func(*Store)

// WithFlushEvery sets the number of marks that triggers a flush.
func WithFlushEvery(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.flushEvery = n
		}
	}
}

// WithFlushInterval sets the maximum time a mark stays buffered.
func WithFlushInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.flushInterval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// PrepareDSN adds the pragmas the store relies on to a sqlite file path.
func PrepareDSN(path string) string {
	query := url.Values{}
	query.Add("_pragma", "journal_mode(WAL)")
	query.Add("_pragma", "busy_timeout(5000)")
	query.Set("_txlock", "immediate")
	return path + "?" + query.Encode()
}

// Open creates or opens the checkpoint database beneath root.
func Open(ctx context.Context, root string, opts ...Option) (*Store, error) {
	path := Path(root)
	if err := ioutils.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}

	db, err := sql.Open("sqlite", PrepareDSN(path))
	if err != nil {
		return nil, fmt.Errorf("initialize sqlite connection: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create checkpoint schema: %w", err)
	}

	s := &Store{
		db:            db,
		stbl:          sq.StatementBuilder.RunWith(db),
		log:           logger.NewNoopLogger(),
		flushEvery:    DefaultFlushEvery,
		flushInterval: DefaultFlushInterval,
		pending:       make(map[model.ID]time.Time),
		done:          make(map[model.ID]bool),
		stop:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.flushLoop()
	return s, nil
}

// Load reads every completed id. It is meant to be called once at the start
// of a run; the result also backs Completed.
func (s *Store) Load(ctx context.Context) (map[model.ID]bool, error) {
	rows, err := s.stbl.
		Select("id").
		From("completed").
		Where(sq.Eq{"done": 1}).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	defer rows.Close()

	loaded := make(map[model.ID]bool)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("load checkpoint: %w", err)
		}
		id, err := model.ParseID(raw)
		if err != nil {
			s.log.Warn("skipping malformed checkpoint entry", zap.String("id", raw))
			continue
		}
		loaded[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	s.mu.Lock()
	for id := range loaded {
		s.done[id] = true
	}
	s.mu.Unlock()

	out := make(map[model.ID]bool, len(loaded))
	for id := range loaded {
		out[id] = true
	}
	return out, nil
}

// Completed reports whether id was loaded or marked during this run.
func (s *Store) Completed(id model.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done[id]
}

// Mark records id as complete. It is safe for concurrent use. The returned
// error comes from a flush triggered by this mark, if any.
func (s *Store) Mark(ctx context.Context, id model.ID) error {
	s.mu.Lock()
	s.done[id] = true
	s.pending[id] = time.Now().UTC()
	full := len(s.pending) >= s.flushEvery
	s.mu.Unlock()

	if full {
		return s.Flush(ctx)
	}
	return nil
}

// Pending returns the number of buffered marks.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Flush writes every buffered mark in a single transaction.
func (s *Store) Flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	batch := s.pending
	s.pending = make(map[model.ID]time.Time)
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	if err := s.write(ctx, batch); err != nil {
		// put the batch back so a later flush retries it
		s.mu.Lock()
		for id, at := range batch {
			if _, ok := s.pending[id]; !ok {
				s.pending[id] = at
			}
		}
		s.mu.Unlock()
		return err
	}

	s.log.Debug("checkpoint flushed", zap.Int("entries", len(batch)))
	return nil
}

func (s *Store) write(ctx context.Context, batch map[model.ID]time.Time) error {
	txn, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin checkpoint flush: %w", err)
	}
	defer func() { _ = txn.Rollback() }()

	insert := s.stbl.
		Insert("completed").
		Columns("id", "done", "completed_at").
		Suffix("ON CONFLICT(id) DO UPDATE SET done = excluded.done, completed_at = excluded.completed_at")
	for id, at := range batch {
		insert = insert.Values(id.String(), 1, at.Format(time.RFC3339Nano))
	}

	if _, err := insert.RunWith(txn).ExecContext(ctx); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("commit checkpoint: %w", err)
	}
	return nil
}

func (s *Store) flushLoop() {
	defer close(s.stopped)
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if err := s.Flush(context.Background()); err != nil {
				s.log.Warn("periodic checkpoint flush failed", zap.Error(err))
			}
		}
	}
}

// Close stops the periodic flush, writes the remaining marks and closes the
// database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stop)
	<-s.stopped

	flushErr := s.Flush(context.Background())
	if err := s.db.Close(); err != nil && flushErr == nil {
		return err
	}
	return flushErr
}
