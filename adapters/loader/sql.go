package loader

import (
	"context"
	"fmt"
	"time"

	"gocorr/domain/dataset"
	"gocorr/internal/errors"
)

// loadSQL runs a query against the configured database and converts the
// result set into a dataset, columns in select-list order.
func (l *Loader) loadSQL(ctx context.Context, query string) (*dataset.Dataset, error) {
	if l.db == nil {
		return nil, errors.DataLoadError("SQL source requested but no database is configured (set DATABASE_URL)")
	}

	start := time.Now()
	rows, err := l.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, errors.WithCode(errors.CodeDataLoad, fmt.Errorf("query failed: %w", err))
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.WithCode(errors.CodeDataLoad, err)
	}

	values := make(map[string][]dataset.Value, len(columns))
	count := 0
	for rows.Next() {
		record := make(map[string]interface{}, len(columns))
		if err := rows.MapScan(record); err != nil {
			return nil, errors.WithCode(errors.CodeDataLoad, fmt.Errorf("scanning row %d failed: %w", count, err))
		}
		for _, col := range columns {
			values[col] = append(values[col], coerceAny(record[col]))
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WithCode(errors.CodeDataLoad, err)
	}
	if count == 0 {
		return nil, errors.DataLoadError("query returned no rows")
	}

	ds := dataset.New()
	for _, col := range columns {
		if err := ds.SetColumn(col, values[col]); err != nil {
			return nil, errors.WithCode(errors.CodeDataLoad, err)
		}
	}

	normalized := ds.NormalizeTimeColumns(dataset.DefaultTimePatterns)
	if len(normalized) > 0 {
		l.logger.Debug("[Loader] parsed time columns: %v", normalized)
	}
	l.logger.Info("[Loader] query returned %d rows, %d columns in %.2fms",
		count, len(columns), float64(time.Since(start).Nanoseconds())/1e6)
	return ds, nil
}
