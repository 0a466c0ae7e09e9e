package datarecording

import (
	"context"
	"database/sql"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// QueryParams narrows down and orders the rows returned by a query.
type QueryParams struct {
	// Where is a condition without the WHERE keyword, with ? placeholders,
	// for example "Size > ? AND Strategy = ?".
	Where string

	// Args fill the placeholders of Where.
	Args []any

	// OrderBy is a sort clause without the ORDER BY keywords.
	OrderBy string

	// Limit caps the number of rows, 0 for no limit. Offset skips rows and
	// only applies together with Limit.
	Limit  int
	Offset int
}

func (p QueryParams) filter() string {
	if p.Where == "" {
		return ""
	}

	return " WHERE " + p.Where
}

func (p QueryParams) page() string {
	var b strings.Builder

	if p.OrderBy != "" {
		b.WriteString(" ORDER BY " + p.OrderBy)
	}

	if p.Limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(p.Limit))

		if p.Offset > 0 {
			b.WriteString(" OFFSET " + strconv.Itoa(p.Offset))
		}
	}

	return b.String()
}

// DataReader reads back the entries stored by a DataRecorder.
type DataReader interface {
	// MapTable tells which struct the rows of a table decode into. A table
	// must be mapped before it is queried.
	MapTable(tableName string, sampleEntry any)

	// ListTables returns the mapped tables, sorted.
	ListTables() []string

	// Query returns pointers to the decoded rows that match params and the
	// number of rows that match params.Where regardless of paging.
	Query(ctx context.Context, tableName string, params QueryParams) (
		results []any,
		totalCount int,
		err error,
	)

	// Close closes the database.
	Close() error
}

type sqliteReader struct {
	*sql.DB

	typeMap map[string]reflect.Type
}

// NewReader opens a database file written by a DataRecorder.
func NewReader(dbFilename string) DataReader {
	db, err := sql.Open("sqlite3", dbFilename)
	if err != nil {
		log.Panic(errors.Wrap(err, "cannot open recording database"))
	}

	return NewReaderWithDB(db)
}

// NewReaderWithDB creates a DataReader on an open database.
func NewReaderWithDB(db *sql.DB) DataReader {
	return &sqliteReader{
		DB:      db,
		typeMap: make(map[string]reflect.Type),
	}
}

func (r *sqliteReader) MapTable(tableName string, sampleEntry any) {
	if err := checkStructFields(sampleEntry); err != nil {
		log.Panic(err)
	}

	r.typeMap[tableName] = reflect.TypeOf(sampleEntry)
}

func (r *sqliteReader) ListTables() []string {
	tables := make([]string, 0, len(r.typeMap))
	for table := range r.typeMap {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	return tables
}

func (r *sqliteReader) Query(
	ctx context.Context,
	tableName string,
	params QueryParams,
) ([]any, int, error) {
	structType, ok := r.typeMap[tableName]
	if !ok {
		return nil, 0, errors.Errorf("no mapping found for table %s", tableName)
	}

	var total int

	err := r.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+tableName+params.filter(),
		params.Args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "cannot count %s", tableName)
	}

	rows, err := r.QueryContext(ctx,
		"SELECT * FROM "+tableName+params.filter()+params.page(),
		params.Args...,
	)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "cannot query %s", tableName)
	}
	defer rows.Close()

	results, err := decodeRows(rows, structType)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "cannot decode %s", tableName)
	}

	return results, total, nil
}

// decodeRows fills one new struct per row, matching columns to fields by
// name. Columns without a field are skipped.
func decodeRows(rows *sql.Rows, structType reflect.Type) ([]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var (
		results []any
		skip    any
	)

	for rows.Next() {
		ptr := reflect.New(structType)
		targets := make([]any, len(columns))

		for i, col := range columns {
			field := ptr.Elem().FieldByName(col)
			if !field.IsValid() {
				targets[i] = &skip
				continue
			}

			targets[i] = field.Addr().Interface()
		}

		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}

		results = append(results, ptr.Interface())
	}

	return results, rows.Err()
}

// QueryAs runs Query and converts the results to values of T. T must be the
// type the table is mapped to.
func QueryAs[T any](
	ctx context.Context,
	r DataReader,
	tableName string,
	params QueryParams,
) ([]T, int, error) {
	results, total, err := r.Query(ctx, tableName, params)
	if err != nil {
		return nil, 0, err
	}

	typed := make([]T, 0, len(results))
	for _, res := range results {
		v, ok := res.(*T)
		if !ok {
			return nil, 0, errors.Errorf("table %s is not mapped to %T",
				tableName, *new(T))
		}

		typed = append(typed, *v)
	}

	return typed, total, nil
}
