package datastore

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// SQLStore reads rows through database/sql. It works with any driver whose
// dialect accepts backtick-quoted identifiers and LIMIT ? (sqlite, mysql).
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore wraps an existing connection.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// OpenMySQL connects to a MySQL database given a go-sql-driver DSN.
func OpenMySQL(dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("mysql dsn is required")
	}
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening mysql: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging mysql: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// DB exposes the underlying connection.
func (s *SQLStore) DB() *sqlx.DB {
	return s.db
}

// Rows returns up to limit rows of table. Byte slices are converted to
// strings so rows serialize as readable JSON.
func (s *SQLStore) Rows(ctx context.Context, table string, limit int) ([]Row, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryxContext(ctx, "SELECT * FROM `"+table+"` LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	result := []Row{}
	for rows.Next() {
		m := make(map[string]any)
		if err := rows.MapScan(m); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", table, err)
		}
		for k, v := range m {
			if b, ok := v.([]byte); ok {
				m[k] = string(b)
			}
		}
		result = append(result, Row(m))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", table, err)
	}
	return result, nil
}

// Tables lists user tables in name order.
func (s *SQLStore) Tables(ctx context.Context) ([]string, error) {
	var query string
	switch {
	case strings.HasPrefix(s.db.DriverName(), "mysql"):
		query = `SELECT table_name FROM information_schema.tables
			WHERE table_schema = DATABASE() ORDER BY table_name`
	default:
		query = `SELECT name FROM sqlite_master
			WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
			ORDER BY name`
	}

	var names []string
	if err := s.db.SelectContext(ctx, &names, query); err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	return names, nil
}
