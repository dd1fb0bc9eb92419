package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/nopg/internal/querysql"
)

// Config is the connection configuration.
type Config struct {
	// Driver is "sqlite3" or "pgx".
	Driver string `mapstructure:"driver"`

	// DSN is a SQLite file path or a Postgres connection string.
	DSN string `mapstructure:"dsn"`

	// MaxOpenConns caps the pool. Zero leaves it unlimited. In-memory
	// SQLite always uses one connection.
	MaxOpenConns int `mapstructure:"max_open_conns"`
}

// Store provides transactional access to the document tables.
type Store struct {
	db       *sql.DB
	dialect  querysql.Dialect
	compiler *querysql.Compiler
	logger   *slog.Logger
	clock    func() time.Time
	ids      IDGenerator
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the statement logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock sets the timestamp source for managed attributes.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// WithIDGenerator sets the primary key generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) { s.ids = g }
}

// Open connects to the configured database and verifies the connection.
// It does not create tables; run migrations through a session for that.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	dialect, err := querysql.DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("empty dsn for driver %s", cfg.Driver)
	}

	dsn := cfg.DSN
	if _, ok := dialect.(querysql.SQLite); ok {
		dsn = sqliteDSN(dsn)
	}
	db, err := sql.Open(dialect.Name(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	switch {
	case isMemoryDSN(cfg.DSN):
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	case cfg.MaxOpenConns > 0:
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	s := &Store{
		db:       db,
		dialect:  dialect,
		compiler: querysql.NewCompiler(dialect),
		logger:   slog.Default(),
		clock:    time.Now,
		ids:      UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the SQL dialect of the connection.
func (s *Store) Dialect() querysql.Dialect { return s.dialect }

// Logger returns the store's logger.
func (s *Store) Logger() *slog.Logger { return s.logger }

// Begin opens a transaction. The returned Tx must be committed or rolled
// back by its single owner.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{tx: tx, store: s}, nil
}

// sqlitePragmas are applied by the driver to every new connection.
var sqlitePragmas = []string{
	"_journal_mode=WAL",
	"_synchronous=NORMAL",
	"_busy_timeout=5000",
	"_foreign_keys=1",
}

// sqliteDSN appends the connection pragmas to dsn.
func sqliteDSN(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(sqlitePragmas, "&")
}

// isMemoryDSN reports whether dsn names a private in-memory database.
func isMemoryDSN(dsn string) bool {
	return strings.HasPrefix(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
