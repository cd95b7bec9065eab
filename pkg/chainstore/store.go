package chainstore

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/CTAG07/Oneliner/pkg/markov"
)

// ErrNotFound is returned when no chain is stored under the requested name.
var ErrNotFound = errors.New("chainstore: chain not found")

// ChainInfo holds the metadata stored alongside a chain snapshot.
type ChainInfo struct {
	Id             int       `json:"id"`
	Name           string    `json:"name"`
	Tokens         int       `json:"tokens"`
	Links          int       `json:"links"`
	StartingTokens int       `json:"starting_tokens"`
	EndingTokens   int       `json:"ending_tokens"`
	Size           int       `json:"size"`
	Version        int       `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
}

// SetupSchema initializes the necessary tables in the provided database. It
// is idempotent and safe to call on an already-initialized database.
func SetupSchema(db *sql.DB) error {
	const schemaChains = `
CREATE TABLE IF NOT EXISTS oneliner_chains (
    chain_id INTEGER PRIMARY KEY,
    chain_name TEXT NOT NULL UNIQUE,
    token_count INTEGER NOT NULL,
    link_count INTEGER NOT NULL,
    start_count INTEGER NOT NULL,
    end_count INTEGER NOT NULL,
    data BLOB NOT NULL,
    version INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL
);
`
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	// If the transaction succeeds, tx.Commit() will be called first, and the rollback will do nothing.
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaChains); err != nil {
		return fmt.Errorf("could not create schema: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

// Store is the entry point for saving and loading chains. It holds the
// database connection and prepared SQL statements.
type Store struct {
	db         *sql.DB
	stmtSave   *sql.Stmt
	stmtLoad   *sql.Stmt
	stmtInfo   *sql.Stmt
	stmtList   *sql.Stmt
	stmtRemove *sql.Stmt
	logger     *slog.Logger
}

// New creates a Store over db, which must already have the schema from
// SetupSchema. It pre-compiles all SQL statements, returning an error if any
// preparation fails.
func New(db *sql.DB) (*Store, error) {
	stmtSave, err := db.Prepare(`
INSERT INTO oneliner_chains (chain_name, token_count, link_count, start_count, end_count, data, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(chain_name) DO UPDATE SET
    token_count = excluded.token_count,
    link_count = excluded.link_count,
    start_count = excluded.start_count,
    end_count = excluded.end_count,
    data = excluded.data,
    version = oneliner_chains.version + 1,
    created_at = excluded.created_at;`)
	if err != nil {
		return nil, err
	}

	stmtLoad, err := db.Prepare(`SELECT data FROM oneliner_chains WHERE chain_name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtInfo, err := db.Prepare(`SELECT chain_id, chain_name, token_count, link_count, start_count, end_count, length(data), version, created_at FROM oneliner_chains WHERE chain_name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtList, err := db.Prepare(`SELECT chain_id, chain_name, token_count, link_count, start_count, end_count, length(data), version, created_at FROM oneliner_chains ORDER BY chain_name;`)
	if err != nil {
		return nil, err
	}

	stmtRemove, err := db.Prepare(`DELETE FROM oneliner_chains WHERE chain_name = ?;`)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:         db,
		stmtSave:   stmtSave,
		stmtLoad:   stmtLoad,
		stmtInfo:   stmtInfo,
		stmtList:   stmtList,
		stmtRemove: stmtRemove,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// Close releases all prepared SQL statements held by the Store. It does not
// close the database.
func (s *Store) Close() {
	_ = s.stmtSave.Close()
	_ = s.stmtLoad.Close()
	_ = s.stmtInfo.Close()
	_ = s.stmtList.Close()
	_ = s.stmtRemove.Close()
}

// SetLogger sets the logger for the Store. By default, all logs are discarded.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Save stores c under name, replacing any chain previously saved with that
// name. Every replacement increments the stored version.
func (s *Store) Save(ctx context.Context, name string, c *markov.Chain) error {
	if name == "" {
		return errors.New("chainstore: empty chain name")
	}
	data, err := c.MarshalBinary()
	if err != nil {
		return fmt.Errorf("could not encode chain %q: %w", name, err)
	}

	stats := c.Stats()
	_, err = s.stmtSave.ExecContext(ctx, name, stats.Tokens, stats.Links, stats.StartingTokens, stats.EndingTokens, data, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("could not save chain %q: %w", name, err)
	}

	s.logger.InfoContext(ctx, "Chain saved",
		slog.String("chain_name", name),
		slog.Int("tokens", stats.Tokens),
		slog.Int("links", stats.Links),
		slog.Int("bytes", len(data)),
	)
	return nil
}

// Load decodes the chain stored under name. It returns an error wrapping
// ErrNotFound if there is none.
func (s *Store) Load(ctx context.Context, name string) (*markov.Chain, error) {
	var data []byte
	err := s.stmtLoad.QueryRowContext(ctx, name).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("chain %q: %w: %w", name, ErrNotFound, err)
		}
		return nil, fmt.Errorf("could not load chain %q: %w", name, err)
	}

	c, err := markov.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("could not decode chain %q: %w", name, err)
	}

	s.logger.DebugContext(ctx, "Chain loaded",
		slog.String("chain_name", name),
		slog.Int("tokens", c.Len()),
	)
	return c, nil
}

// Info returns the metadata of the chain stored under name.
func (s *Store) Info(ctx context.Context, name string) (ChainInfo, error) {
	info, err := scanInfo(s.stmtInfo.QueryRowContext(ctx, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ChainInfo{}, fmt.Errorf("chain %q: %w: %w", name, ErrNotFound, err)
		}
		return ChainInfo{}, err
	}
	return info, nil
}

// List returns the metadata of every stored chain, ordered by name.
func (s *Store) List(ctx context.Context) ([]ChainInfo, error) {
	rows, err := s.stmtList.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	infos := make([]ChainInfo, 0)
	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return infos, nil
}

// Remove deletes the chain stored under name. It returns an error wrapping
// ErrNotFound if there is none.
func (s *Store) Remove(ctx context.Context, name string) error {
	res, err := s.stmtRemove.ExecContext(ctx, name)
	if err != nil {
		return fmt.Errorf("could not remove chain %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("chain %q: %w", name, ErrNotFound)
	}

	s.logger.InfoContext(ctx, "Chain removed", slog.String("chain_name", name))
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInfo(row scanner) (ChainInfo, error) {
	var info ChainInfo
	var createdAt int64
	err := row.Scan(&info.Id, &info.Name, &info.Tokens, &info.Links, &info.StartingTokens, &info.EndingTokens, &info.Size, &info.Version, &createdAt)
	if err != nil {
		return ChainInfo{}, err
	}
	info.CreatedAt = time.Unix(createdAt, 0)
	return info, nil
}
