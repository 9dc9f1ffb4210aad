package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocorr/domain/dataset"
	"gocorr/internal/errors"
	"gocorr/ports"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func loadFile(t *testing.T, path string) (*dataset.Dataset, error) {
	t.Helper()
	l := NewLoader(100, nil, nil)
	return l.Load(context.Background(), ports.Source{Method: ports.SourceFile, Query: path})
}

func TestLoad_CSV(t *testing.T) {
	path := writeTempFile(t, "weather.csv", "城市,气温,销量\n北京,1.5,10\n上海,2.5,20\n")

	ds, err := loadFile(t, path)
	require.NoError(t, err)

	assert.Equal(t, []string{"城市", "气温", "销量"}, ds.Columns())
	assert.Equal(t, 2, ds.RowCount())

	temps, _ := ds.Column("气温")
	assert.Equal(t, dataset.ValueTypeNumeric, temps[0].Type)
	assert.Equal(t, 1.5, temps[0].Num)

	cities, _ := ds.Column("城市")
	assert.Equal(t, "北京", cities[0].Str)
}

func TestLoad_TSV(t *testing.T) {
	path := writeTempFile(t, "data.tsv", "a\tb\n1\t2\n")

	ds, err := loadFile(t, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ds.Columns())
	assert.Equal(t, 1, ds.RowCount())
}

func TestLoad_CSVShortRowsPadded(t *testing.T) {
	path := writeTempFile(t, "ragged.csv", "a,b,c\n1,2,3\n4,5\n")

	ds, err := loadFile(t, path)
	require.NoError(t, err)

	col, _ := ds.Column("c")
	assert.True(t, col[1].IsMissing(), "short rows are padded with missing values")
}

func TestLoad_CSVEmptyCellsBecomeMissing(t *testing.T) {
	path := writeTempFile(t, "gaps.csv", "a,b\n1,\n,2\n")

	ds, err := loadFile(t, path)
	require.NoError(t, err)

	a, _ := ds.Column("a")
	b, _ := ds.Column("b")
	assert.True(t, b[0].IsMissing())
	assert.True(t, a[1].IsMissing())
}

func TestLoad_TimeColumnsParsed(t *testing.T) {
	path := writeTempFile(t, "dated.csv", "日期,销量\n2024-03-15,10\n2024-07-01,20\n")

	ds, err := loadFile(t, path)
	require.NoError(t, err)

	dates, _ := ds.Column("日期")
	assert.Equal(t, dataset.ValueTypeTimestamp, dates[0].Type, "name-matched time columns are auto-parsed")
}

func TestLoad_JSONRecords(t *testing.T) {
	path := writeTempFile(t, "data.json", `[{"气温": 1.5, "城市": "北京"}, {"气温": 2.5, "城市": "上海"}]`)

	ds, err := loadFile(t, path)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.RowCount())

	temps, _ := ds.Column("气温")
	assert.Equal(t, 1.5, temps[0].Num)
}

func TestLoad_JSONMissingKeys(t *testing.T) {
	path := writeTempFile(t, "sparse.json", `[{"a": 1}, {"a": 2, "b": 3}]`)

	ds, err := loadFile(t, path)
	require.NoError(t, err)
	require.True(t, ds.HasColumn("b"), "keys appearing in later records still become columns")
	b, _ := ds.Column("b")
	assert.True(t, b[0].IsMissing())
}

func TestLoad_JSONNotAnArray(t *testing.T) {
	path := writeTempFile(t, "object.json", `{"a": 1}`)

	_, err := loadFile(t, path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeDataLoad))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := loadFile(t, filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeDataLoad))
	assert.Contains(t, err.Error(), "not found")
}

func TestLoad_HeaderOnlyFile(t *testing.T) {
	path := writeTempFile(t, "empty.csv", "a,b\n")

	_, err := loadFile(t, path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeDataLoad))
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := writeTempFile(t, "data.xml", "<rows/>")

	_, err := loadFile(t, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file format")
}

func TestLoad_FeatherRecognizedButUnreadable(t *testing.T) {
	path := writeTempFile(t, "data.feather", "FEA1")

	_, err := loadFile(t, path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeDataLoad))
	assert.Contains(t, err.Error(), "no reader available")
}

func TestLoad_FileSizeLimit(t *testing.T) {
	path := writeTempFile(t, "big.csv", "a,b\n1,2\n")

	l := NewLoader(0, nil, nil)
	_, err := l.Load(context.Background(), ports.Source{Method: ports.SourceFile, Query: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestLoad_SQLWithoutDatabase(t *testing.T) {
	l := NewLoader(100, nil, nil)
	_, err := l.Load(context.Background(), ports.Source{Method: ports.SourceSQL, Query: "SELECT 1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no database")
}

func TestLoad_UnknownMethod(t *testing.T) {
	l := NewLoader(100, nil, nil)
	_, err := l.Load(context.Background(), ports.Source{Method: "FTP", Query: "x"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeDataLoad))
}
