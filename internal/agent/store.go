package agent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/KaramelBytes/csvoracle-cli/internal/table"
)

// TableName is the name the combined table is registered under.
const TableName = "df"

// ErrReadOnly is returned for any statement other than a single SELECT or WITH query.
var ErrReadOnly = errors.New("only a single read-only SELECT statement is allowed")

// Store holds the combined table in an in-memory SQLite database.
type Store struct {
	db      *sql.DB
	columns []string
	kinds   []table.Kind
}

// OpenStore copies t into a fresh in-memory database and switches the
// connection to query-only mode.
func OpenStore(ctx context.Context, t *table.Table) (*Store, error) {
	if t == nil || len(t.Columns) == 0 {
		return nil, errors.New("no table to load")
	}
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	s := &Store{db: db, columns: t.Columns, kinds: t.InferKinds()}
	if err := s.load(ctx, t); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable query_only: %w", err)
	}
	return s, nil
}

func (s *Store) load(ctx context.Context, t *table.Table) error {
	defs := make([]string, len(s.columns))
	marks := make([]string, len(s.columns))
	for i, c := range s.columns {
		defs[i] = quoteIdent(c) + " " + s.kinds[i].SQLType()
		marks[i] = "?"
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(TableName), strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(TableName), strings.Join(marks, ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(s.columns))
	for n, row := range t.Rows {
		for i := range s.columns {
			args[i] = sqlValue(row[i], s.kinds[i])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row %d: %w", n, err)
		}
	}
	return tx.Commit()
}

func sqlValue(raw string, k table.Kind) any {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	switch k {
	case table.KindInt:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	case table.KindFloat:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	case table.KindBool:
		if b, ok := table.ParseBool(v); ok {
			if b {
				return int64(1)
			}
			return int64(0)
		}
	}
	return raw
}

// Schema lists each column with its SQLite type, one per line.
func (s *Store) Schema() string {
	var b strings.Builder
	for i, c := range s.columns {
		fmt.Fprintf(&b, "%s %s\n", quoteIdent(c), s.kinds[i].SQLType())
	}
	return strings.TrimRight(b.String(), "\n")
}

// Query runs one read-only statement and returns its result set.
func (s *Store) Query(ctx context.Context, query string) (*table.Table, error) {
	q, err := checkReadOnly(query)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := table.New(cols...)
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			row[i] = formatValue(v)
		}
		out.Append(row)
	}
	return out, rows.Err()
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		if x {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(x)
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// checkReadOnly accepts exactly one SELECT or WITH statement, ignoring a
// trailing semicolon and leading comments.
func checkReadOnly(query string) (string, error) {
	q := strings.TrimSpace(stripLeadingComments(query))
	q = strings.TrimSpace(strings.TrimRight(q, "; \t\n\r"))
	if q == "" {
		return "", fmt.Errorf("%w: empty query", ErrReadOnly)
	}
	if hasStatementBreak(q) {
		return "", fmt.Errorf("%w: multiple statements", ErrReadOnly)
	}
	words := strings.FieldsFunc(q, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '('
	})
	if len(words) == 0 {
		return "", fmt.Errorf("%w: empty query", ErrReadOnly)
	}
	first := strings.ToUpper(words[0])
	if first != "SELECT" && first != "WITH" {
		return "", fmt.Errorf("%w: got %s", ErrReadOnly, first)
	}
	return q, nil
}

func stripLeadingComments(q string) string {
	for {
		q = strings.TrimSpace(q)
		switch {
		case strings.HasPrefix(q, "--"):
			i := strings.IndexByte(q, '\n')
			if i < 0 {
				return ""
			}
			q = q[i+1:]
		case strings.HasPrefix(q, "/*"):
			i := strings.Index(q, "*/")
			if i < 0 {
				return ""
			}
			q = q[i+2:]
		default:
			return q
		}
	}
}

// hasStatementBreak reports a ';' outside quoted text.
func hasStatementBreak(q string) bool {
	var quote byte
	for i := 0; i < len(q); i++ {
		c := q[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == ';':
			return true
		}
	}
	return false
}
