package database

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/camden-git/dopplerindex/catalog"
)

func checkTable(table string) error {
	for _, t := range Tables {
		if t == table {
			return nil
		}
	}
	return fmt.Errorf("unknown table %q", table)
}

// InsertRow inserts values into table and returns the new row id.
func InsertRow(ctx context.Context, q Querier, table string, values map[string]any) (int64, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}

	queryBuilder := psql.Insert(table).SetMap(values)

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build SQL query for InsertRow(%s): %w", table, err)
	}

	result, err := q.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", table, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted id for %s: %w", table, err)
	}
	return id, nil
}

// SelectRows returns every row of table matching all equality conditions in
// where (nil selects everything), ordered by id.
func SelectRows(ctx context.Context, q Querier, table string, where map[string]any) ([]map[string]any, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	queryBuilder := psql.Select("*").From(table).OrderBy("id")
	if len(where) > 0 {
		queryBuilder = queryBuilder.Where(sq.Eq(where))
	}

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for SelectRows(%s): %w", table, err)
	}

	rows, err := q.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row of %s: %w", table, err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows of %s: %w", table, err)
	}
	return out, nil
}

// CountRows returns the number of rows in table.
func CountRows(ctx context.Context, q Querier, table string) (int, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}

	sqlStr, args, err := psql.Select("COUNT(*)").From(table).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build SQL query for CountRows(%s): %w", table, err)
	}

	var n int
	if err := q.QueryRowContext(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows of %s: %w", table, err)
	}
	return n, nil
}

// CountAll returns the row count of every table.
func CountAll(ctx context.Context, q Querier) (catalog.Counts, error) {
	var counts catalog.Counts
	targets := map[string]*int{
		TableAcquisition:        &counts.Acquisitions,
		TablePreviewAsset:       &counts.Previews,
		TableIntermediateRender: &counts.Intermediates,
		TableFinalRender:        &counts.Finals,
	}
	for table, dst := range targets {
		n, err := CountRows(ctx, q, table)
		if err != nil {
			return catalog.Counts{}, err
		}
		*dst = n
	}
	return counts, nil
}

// Reset deletes every row, children first, and restarts id sequences.
func Reset(ctx context.Context, q Querier) error {
	for i := len(Tables) - 1; i >= 0; i-- {
		sqlStr, args, err := psql.Delete(Tables[i]).ToSql()
		if err != nil {
			return fmt.Errorf("failed to build SQL query for Reset(%s): %w", Tables[i], err)
		}
		if _, err := q.ExecContext(ctx, sqlStr, args...); err != nil {
			return fmt.Errorf("failed to clear %s: %w", Tables[i], err)
		}
	}

	sqlStr, args, err := psql.Delete("sqlite_sequence").Where(sq.Eq{"name": Tables}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for Reset(sqlite_sequence): %w", err)
	}
	if _, err := q.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("failed to reset id sequences: %w", err)
	}
	return nil
}
