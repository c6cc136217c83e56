// Package datastore provides read-only access to the business tables the
// assistant may quote from. Every backend answers the same question: give me
// up to N rows of table T.
package datastore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidTable is returned for table names that are not plain identifiers.
var ErrInvalidTable = errors.New("invalid table name")

// Row is one record keyed by column name.
type Row map[string]any

// RowReader reads at most limit rows from a table.
type RowReader interface {
	Rows(ctx context.Context, table string, limit int) ([]Row, error)
}

// TableLister is implemented by backends that can enumerate their tables.
type TableLister interface {
	Tables(ctx context.Context) ([]string, error)
}

// Store is a RowReader that owns a connection.
type Store interface {
	RowReader
	Close() error
}

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
	DriverREST   = "rest"
	DriverNone   = "none"
)

// Options selects and configures a backend.
type Options struct {
	Driver     string
	DataDir    string // sqlite
	DSN        string // mysql
	URL        string // rest
	ServiceKey string // rest
}

// Open returns the backend selected by opts.Driver. DriverNone yields a nil
// Store and no error.
func Open(opts Options) (Store, error) {
	var (
		s   Store
		err error
	)
	switch opts.Driver {
	case DriverSQLite:
		s, err = storeOrNil(OpenSQLite(opts.DataDir))
	case DriverMySQL:
		s, err = storeOrNil(OpenMySQL(opts.DSN))
	case DriverREST:
		var rs *RESTStore
		if rs, err = NewRESTStore(opts.URL, opts.ServiceKey, nil); err == nil {
			s = rs
		}
	case DriverNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown datastore driver %q", opts.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s datastore: %w", opts.Driver, err)
	}
	return s, nil
}

// storeOrNil keeps a failed open from yielding a non-nil interface.
func storeOrNil(s *SQLStore, err error) (Store, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkTable(table string) error {
	if !identRe.MatchString(table) {
		return fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	return nil
}
