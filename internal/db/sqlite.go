package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// ErrInvalidCollection is returned when a collection name is not a plain identifier
var ErrInvalidCollection = errors.New("invalid collection name")

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

func (d dialect) String() string {
	if d == dialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

// queries holds the SQL text bound to one table
type queries struct {
	createTable string
	selectLinks string
	updateLink  string
	upsert      string
	selectOne   string
	count       string
}

func buildQueries(d dialect, table string) queries {
	pick := func(sqlite, postgres string) string {
		if d == dialectPostgres {
			return fmt.Sprintf(postgres, table)
		}
		return fmt.Sprintf(sqlite, table)
	}
	return queries{
		createTable: pick(createInstancesTableSQLite, createInstancesTablePostgres),
		selectLinks: pick(selectLinksSQLite, selectLinksPostgres),
		updateLink:  pick(updateLinkSQLite, updateLinkPostgres),
		upsert:      pick(upsertInstanceSQLite, upsertInstancePostgres),
		selectOne:   pick(selectInstanceSQLite, selectInstancePostgres),
		count:       fmt.Sprintf(countInstances, table),
	}
}

// DB wraps a SQL connection holding one collection of instance documents
type DB struct {
	conn    *sql.DB
	dialect dialect
	table   string
	q       queries
}

// New opens (or creates) a SQLite database and initializes the collection table
func New(dbPath, collection string) (*DB, error) {
	// Ensure the directory exists
	dir := filepath.Dir(dbPath)
	if dbPath != ":memory:" && dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single writer; also keeps every query on the same :memory: database
	conn.SetMaxOpenConns(1)

	return initialize(conn, dialectSQLite, collection)
}

// NewPostgres connects to PostgreSQL through pgx and initializes the collection table
func NewPostgres(dsn, collection string) (*DB, error) {
	conn, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return initialize(conn, dialectPostgres, collection)
}

func initialize(conn *sql.DB, d dialect, collection string) (*DB, error) {
	if !identifierPattern.MatchString(collection) {
		conn.Close()
		return nil, fmt.Errorf("%w: %q", ErrInvalidCollection, collection)
	}

	db := &DB{
		conn:    conn,
		dialect: d,
		table:   collection,
		q:       buildQueries(d, collection),
	}

	// Initialize schema
	if _, err := conn.Exec(db.q.createTable); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create %s schema: %w", collection, err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// String describes the store for logs and prompts
func (db *DB) String() string {
	return db.dialect.String() + ":" + db.table
}

// pathArg converts a dotted field path to the dialect's JSON path argument
func (db *DB) pathArg(field string) string {
	segs := strings.Split(field, ".")
	if db.dialect == dialectPostgres {
		return "{" + strings.Join(segs, ",") + "}"
	}
	return "$." + strings.Join(segs, ".")
}
