package store

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/vaultdb/vaultdb/internal/vaulterr"
)

// deniedTokens rejects any ad-hoc query whose normalized token stream
// contains a write or schema statement; the whole query fails with
// SqlDenied.
var deniedTokens = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "DROP": true,
	"ALTER": true, "CREATE": true, "REPLACE": true, "ATTACH": true,
	"DETACH": true, "PRAGMA": true, "VACUUM": true,
}

// SQLQueryInput is one ad-hoc SELECT request.
type SQLQueryInput struct {
	Query   string
	Params  []any
	Limit   int
	Timeout time.Duration
}

// SQLQueryResult is the evaluator's response: column names, rows (each
// a slice of driver-scanned values in column order), and the measured
// execution time.
type SQLQueryResult struct {
	Columns     []string
	Rows        [][]any
	QueryTimeMS float64
}

const defaultSQLTimeout = 5 * time.Second
const defaultSQLLimit = 1000

// ExecuteSQL runs a single read-only SELECT: rejects any normalized
// token in deniedTokens, enforces a caller limit and a
// wall-clock timeout, and reports query_time_ms.
func (s *Store) ExecuteSQL(ctx context.Context, in SQLQueryInput) (SQLQueryResult, error) {
	trimmed := strings.TrimSpace(in.Query)
	if trimmed == "" {
		return SQLQueryResult{}, vaulterr.ValidationFailed("query is empty")
	}

	if denied, token := findDeniedToken(trimmed); denied {
		return SQLQueryResult{}, vaulterr.SqlDenied(token)
	}

	if !strings.HasPrefix(strings.ToUpper(trimmed), "SELECT") {
		return SQLQueryResult{}, vaulterr.SqlDenied("non-select")
	}

	if strings.Contains(trimmed, ";") && strings.Index(trimmed, ";") != len(trimmed)-1 {
		return SQLQueryResult{}, vaulterr.SqlDenied(";")
	}

	timeout := in.Timeout
	if timeout <= 0 {
		timeout = defaultSQLTimeout
	}

	limit := in.Limit
	if limit <= 0 {
		limit = defaultSQLLimit
	}

	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	limited := wrapWithLimit(trimmed, limit)

	start := time.Now()

	var result SQLQueryResult

	err := s.QueryTx(func() error {
		rows, qerr := s.sql.QueryContext(queryCtx, limited, in.Params...)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()

		cols, cerr := rows.Columns()
		if cerr != nil {
			return cerr
		}

		result.Columns = cols

		for rows.Next() {
			vals := make([]any, len(cols))
			ptrs := make([]any, len(cols))

			for i := range vals {
				ptrs[i] = &vals[i]
			}

			if err := rows.Scan(ptrs...); err != nil {
				return err
			}

			result.Rows = append(result.Rows, vals)
		}

		return rows.Err()
	})

	result.QueryTimeMS = float64(time.Since(start).Microseconds()) / 1000.0

	if err != nil {
		if queryCtx.Err() != nil {
			return SQLQueryResult{}, vaulterr.Timeout("sql query timed out")
		}

		return SQLQueryResult{}, vaulterr.IndexError(err)
	}

	return result, nil
}

// wrapWithLimit appends a LIMIT clause by wrapping the caller's query
// as a subquery, so a caller-supplied LIMIT inside the query is still
// bounded by ours without textual surgery on their SQL.
func wrapWithLimit(query string, limit int) string {
	return fmt.Sprintf("SELECT * FROM (%s) LIMIT %d", query, limit)
}

// findDeniedToken tokenizes on non-letter boundaries (digits split
// tokens too) and checks each uppercased token against deniedTokens.
func findDeniedToken(query string) (bool, string) {
	var tok strings.Builder

	check := func() (bool, string) {
		word := strings.ToUpper(tok.String())
		tok.Reset()

		if deniedTokens[word] {
			return true, word
		}

		return false, ""
	}

	for _, r := range query {
		if unicode.IsLetter(r) {
			tok.WriteRune(r)
			continue
		}

		if tok.Len() > 0 {
			if denied, word := check(); denied {
				return true, word
			}
		}
	}

	if tok.Len() > 0 {
		return check()
	}

	return false, ""
}
