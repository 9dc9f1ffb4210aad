package loader

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/parquet-go/parquet-go"
	"github.com/xuri/excelize/v2"

	"gocorr/domain/dataset"
	"gocorr/internal"
	"gocorr/internal/errors"
	"gocorr/ports"
)

// Loader loads datasets from files or a SQL database. It implements
// ports.DataLoader.
type Loader struct {
	maxFileSizeMB int
	db            *sqlx.DB
	logger        *internal.Logger
}

// NewLoader creates a loader. db may be nil when no database is configured;
// SQL sources then fail with a typed error.
func NewLoader(maxFileSizeMB int, db *sqlx.DB, logger *internal.Logger) *Loader {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Loader{maxFileSizeMB: maxFileSizeMB, db: db, logger: logger}
}

// Load dispatches on the source method.
func (l *Loader) Load(ctx context.Context, src ports.Source) (*dataset.Dataset, error) {
	switch src.Method {
	case ports.SourceFile:
		return l.loadFile(src.Query)
	case ports.SourceSQL:
		return l.loadSQL(ctx, src.Query)
	default:
		return nil, errors.DataLoadError(fmt.Sprintf("unsupported data source method: %q", src.Method))
	}
}

func (l *Loader) loadFile(path string) (*dataset.Dataset, error) {
	start := time.Now()

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, errors.DataLoadError(fmt.Sprintf("file not found: %s", path))
	}
	if err != nil {
		return nil, errors.WithCode(errors.CodeDataLoad, err)
	}
	if sizeMB := float64(info.Size()) / (1024 * 1024); sizeMB > float64(l.maxFileSizeMB) {
		return nil, errors.DataLoadError(fmt.Sprintf("file too large: %.1fMB exceeds the %dMB limit", sizeMB, l.maxFileSizeMB))
	}

	var ds *dataset.Dataset
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv":
		ds, err = l.readDelimited(path, ',')
	case ".tsv", ".txt":
		ds, err = l.readDelimited(path, '\t')
	case ".xlsx", ".xls":
		ds, err = l.readExcel(path)
	case ".json":
		ds, err = l.readJSON(path)
	case ".parquet":
		ds, err = l.readParquet(path)
	case ".feather", ".h5", ".hdf":
		return nil, errors.DataLoadError(fmt.Sprintf("no reader available for %s files: %s", ext, path))
	default:
		return nil, errors.DataLoadError(fmt.Sprintf("unsupported file format %q: %s", ext, path))
	}
	if err != nil {
		return nil, err
	}

	normalized := ds.NormalizeTimeColumns(dataset.DefaultTimePatterns)
	if len(normalized) > 0 {
		l.logger.Debug("[Loader] parsed time columns: %v", normalized)
	}
	l.logger.Info("[Loader] loaded %s in %.2fms (%d rows, %d columns)",
		path, float64(time.Since(start).Nanoseconds())/1e6, ds.RowCount(), ds.ColumnCount())
	return ds, nil
}

func (l *Loader) readDelimited(path string, sep rune) (*dataset.Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.WithCode(errors.CodeDataLoad, fmt.Errorf("failed to open file: %w", err))
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = sep
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.WithCode(errors.CodeDataLoad, fmt.Errorf("failed to parse file: %w", err))
	}
	return rowsToDataset(rows)
}

func (l *Loader) readExcel(path string) (*dataset.Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.WithCode(errors.CodeDataLoad, fmt.Errorf("failed to open Excel file: %w", err))
	}
	defer f.Close()

	sheet := "Sheet1"
	if sheets := f.GetSheetList(); len(sheets) > 0 && !containsString(sheets, sheet) {
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.WithCode(errors.CodeDataLoad, fmt.Errorf("failed to read sheet %s: %w", sheet, err))
	}
	return rowsToDataset(rows)
}

func (l *Loader) readJSON(path string) (*dataset.Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.WithCode(errors.CodeDataLoad, fmt.Errorf("failed to open JSON file: %w", err))
	}
	defer file.Close()

	var records []map[string]interface{}
	if err := json.NewDecoder(file).Decode(&records); err != nil {
		return nil, errors.DataLoadError(fmt.Sprintf("JSON file must contain an array of record objects: %v", err))
	}
	if len(records) == 0 {
		return nil, errors.DataLoadError("JSON file contains no records")
	}

	order := recordColumnOrder(records)
	return recordsToDataset(order, records)
}

func (l *Loader) readParquet(path string) (*dataset.Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.WithCode(errors.CodeDataLoad, fmt.Errorf("failed to open parquet file: %w", err))
	}
	defer file.Close()

	reader := parquet.NewGenericReader[map[string]interface{}](file)
	defer reader.Close()

	var order []string
	for _, field := range reader.Schema().Fields() {
		order = append(order, field.Name())
	}

	var records []map[string]interface{}
	buf := make([]map[string]interface{}, 128)
	for {
		for i := range buf {
			buf[i] = make(map[string]interface{})
		}
		n, err := reader.Read(buf)
		records = append(records, buf[:n]...)
		if err != nil {
			break
		}
	}
	if len(records) == 0 {
		return nil, errors.DataLoadError("parquet file contains no rows")
	}
	return recordsToDataset(order, records)
}

// rowsToDataset converts header-plus-rows string data into a typed dataset,
// padding short rows with missing values.
func rowsToDataset(rows [][]string) (*dataset.Dataset, error) {
	if len(rows) < 2 {
		return nil, errors.DataLoadError("file must have a header row and at least one data row")
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		headers[i] = h
	}

	ds := dataset.New()
	for i, name := range headers {
		values := make([]dataset.Value, 0, len(rows)-1)
		for _, row := range rows[1:] {
			if i >= len(row) {
				values = append(values, dataset.NewMissingValue())
				continue
			}
			values = append(values, dataset.CoerceValue(row[i]))
		}
		if err := ds.SetColumn(name, values); err != nil {
			return nil, errors.WithCode(errors.CodeDataLoad, err)
		}
	}
	return ds, nil
}

func recordsToDataset(order []string, records []map[string]interface{}) (*dataset.Dataset, error) {
	ds := dataset.New()
	for _, name := range order {
		values := make([]dataset.Value, 0, len(records))
		for _, record := range records {
			values = append(values, coerceAny(record[name]))
		}
		if err := ds.SetColumn(name, values); err != nil {
			return nil, errors.WithCode(errors.CodeDataLoad, err)
		}
	}
	return ds, nil
}

// recordColumnOrder returns column names in first-encounter order across all
// records, so records with missing keys do not drop columns.
func recordColumnOrder(records []map[string]interface{}) []string {
	seen := make(map[string]bool)
	var order []string
	for _, record := range records {
		keys := make([]string, 0, len(record))
		for key := range record {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if !seen[key] {
				seen[key] = true
				order = append(order, key)
			}
		}
	}
	return order
}

func coerceAny(raw interface{}) dataset.Value {
	switch v := raw.(type) {
	case nil:
		return dataset.NewMissingValue()
	case float64:
		return dataset.NewNumericValue(v)
	case float32:
		return dataset.NewNumericValue(float64(v))
	case int:
		return dataset.NewNumericValue(float64(v))
	case int32:
		return dataset.NewNumericValue(float64(v))
	case int64:
		return dataset.NewNumericValue(float64(v))
	case bool:
		return dataset.NewBooleanValue(v)
	case time.Time:
		return dataset.NewTimestampValue(v)
	case []byte:
		return dataset.CoerceValue(string(v))
	case string:
		return dataset.CoerceValue(v)
	default:
		return dataset.CoerceValue(fmt.Sprintf("%v", v))
	}
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
