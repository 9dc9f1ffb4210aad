package corr

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	dcorr "gocorr/domain/corr"
	"gocorr/domain/dataset"
	"gocorr/internal"
	"gocorr/internal/errors"
)

// Engine computes pairwise correlations and correlation matrices with
// grouping, numeric coercion, and minimum-sample-size gating
type Engine struct {
	minSampleSize int
	precision     int
	maxParallel   int
	logger        *internal.Logger
}

// NewEngine creates an engine. minSampleSize gates every group and pair;
// precision is the rounding applied to computed values.
func NewEngine(minSampleSize, precision, maxParallel int, logger *internal.Logger) *Engine {
	if minSampleSize < 1 {
		minSampleSize = 1
	}
	if precision < 0 {
		precision = 3
	}
	if maxParallel < 1 {
		maxParallel = 1
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Engine{
		minSampleSize: minSampleSize,
		precision:     precision,
		maxParallel:   maxParallel,
		logger:        logger,
	}
}

// Compute calculates the correlation between two variables, optionally per
// group. Rows missing either variable are dropped globally before grouping and
// again within each group.
func (e *Engine) Compute(ctx context.Context, ds *dataset.Dataset, var1, var2 string, groupBy []string, method dcorr.Method) (dcorr.Result, error) {
	frame, err := e.prepare(ds, []string{var1, var2}, groupBy)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("[Corr] Pairwise preprocessing kept %d/%d rows", frame.rows(), ds.RowCount())

	x := frame.numeric[var1]
	y := frame.numeric[var2]

	result := make(dcorr.Result)
	if len(groupBy) == 0 {
		result[dcorr.PairKey(var1, var2)] = e.pairCell(x, y, method)
		return result, nil
	}

	groups := frame.groupRows(groupBy)

	var mu sync.Mutex
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(e.maxParallel)
	for _, grp := range groups {
		grp := grp
		g.Go(func() error {
			gx, gy := pairSubset(x, y, grp.rows)
			cell := e.pairCell(gx, gy, method)
			mu.Lock()
			result[grp.key] = cell
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}

// ComputeMatrix calculates a full variable-by-variable correlation matrix,
// optionally per group. A single shared drop of rows missing any variable is
// applied before grouping; a group's total valid row count gates all its
// off-diagonal entries, while the diagonal is always exactly 1.
func (e *Engine) ComputeMatrix(ctx context.Context, ds *dataset.Dataset, vars []string, groupBy []string, method dcorr.Method) (*dcorr.MatrixResult, error) {
	frame, err := e.prepare(ds, vars, groupBy)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("[Corr] Matrix preprocessing kept %d/%d rows across %d variables",
		frame.rows(), ds.RowCount(), len(vars))

	result := &dcorr.MatrixResult{
		Variables: append([]string(nil), vars...),
		Method:    method,
		Grouped:   len(groupBy) > 0,
	}

	if !result.Grouped {
		all := make([]int, frame.rows())
		for i := range all {
			all[i] = i
		}
		result.Matrix = e.matrixFor(frame, vars, all, method)
		return result, nil
	}

	groups := frame.groupRows(groupBy)
	result.Groups = make(map[string]dcorr.Matrix, len(groups))

	var mu sync.Mutex
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(e.maxParallel)
	for _, grp := range groups {
		grp := grp
		g.Go(func() error {
			m := e.matrixFor(frame, vars, grp.rows, method)
			mu.Lock()
			result.Groups[grp.key] = m
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}

// matrixFor builds one matrix over the given rows. Insufficiency is judged on
// the group's total row count, not pair by pair.
func (e *Engine) matrixFor(frame *cleanFrame, vars []string, rows []int, method dcorr.Method) dcorr.Matrix {
	m := make(dcorr.Matrix, len(vars))
	for _, v := range vars {
		m[v] = make(map[string]dcorr.Cell, len(vars))
	}

	insufficient := len(rows) < e.minSampleSize
	for i, v1 := range vars {
		for j, v2 := range vars {
			switch {
			case i == j:
				m[v1][v2] = dcorr.NumericCell(1.0)
			case insufficient:
				m[v1][v2] = dcorr.InsufficientCell()
			case j < i:
				m[v1][v2] = m[v2][v1]
			default:
				x := subset(frame.numeric[v1], rows)
				y := subset(frame.numeric[v2], rows)
				m[v1][v2] = e.valueCell(x, y, method)
			}
		}
	}
	return m
}

// pairCell applies the local pair drop and the sample-size gate, then computes
func (e *Engine) pairCell(x, y []float64, method dcorr.Method) dcorr.Cell {
	px, py := dropPairsWithNaN(x, y)
	if len(px) < e.minSampleSize {
		return dcorr.InsufficientCell()
	}
	return e.valueCell(px, py, method)
}

// valueCell computes the statistic, degrading any failure to null so one bad
// group never aborts the request
func (e *Engine) valueCell(x, y []float64, method dcorr.Method) (cell dcorr.Cell) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("[Corr] %s computation panicked: %v", method, r)
			cell = dcorr.NullCell()
		}
	}()

	v := computeCorrelation(x, y, method)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return dcorr.NullCell()
	}
	return dcorr.NumericCell(roundTo(v, e.precision))
}

func computeCorrelation(x, y []float64, method dcorr.Method) float64 {
	switch method {
	case dcorr.MethodSpearman:
		return stat.Correlation(tieAveragedRanks(x), tieAveragedRanks(y), nil)
	case dcorr.MethodKendall:
		return stat.Kendall(x, y, nil)
	default:
		return stat.Correlation(x, y, nil)
	}
}

func roundTo(v float64, precision int) float64 {
	scale := math.Pow(10, float64(precision))
	return math.Round(v*scale) / scale
}

// cleanFrame holds the numeric views of the correlation variables and the
// group-key columns, restricted to rows that survived the shared drop
type cleanFrame struct {
	numeric map[string][]float64
	keys    map[string][]dataset.Value
}

func (f *cleanFrame) rows() int {
	for _, col := range f.numeric {
		return len(col)
	}
	return 0
}

type rowGroup struct {
	key  string
	rows []int
}

// groupRows partitions row indices by the joined group-key string, preserving
// first-seen order. Rows with a missing group value are skipped.
func (f *cleanFrame) groupRows(groupBy []string) []rowGroup {
	index := make(map[string]int)
	var groups []rowGroup

	n := f.rows()
	parts := make([]string, len(groupBy))
rows:
	for i := 0; i < n; i++ {
		for gi, g := range groupBy {
			v := f.keys[g][i]
			if v.IsMissing() {
				continue rows
			}
			parts[gi] = v.String()
		}
		key := strings.Join(parts, dcorr.GroupKeySeparator)
		gi, ok := index[key]
		if !ok {
			gi = len(groups)
			index[key] = gi
			groups = append(groups, rowGroup{key: key})
		}
		groups[gi].rows = append(groups[gi].rows, i)
	}

	return groups
}

// prepare coerces the correlation variables to numeric (unparsable entries
// become missing) and applies the shared drop of rows missing any variable
func (e *Engine) prepare(ds *dataset.Dataset, vars []string, groupBy []string) (*cleanFrame, error) {
	var missing []string
	for _, name := range append(append([]string(nil), vars...), groupBy...) {
		if !ds.HasColumn(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, errors.ValidationError(fmt.Sprintf("columns do not exist in the data: %v", missing))
	}

	numeric := make(map[string][]float64, len(vars))
	for _, v := range vars {
		col, _ := ds.Column(v)
		nums := make([]float64, len(col))
		for i, cell := range col {
			if f, ok := cell.AsFloat(); ok {
				nums[i] = f
			} else {
				nums[i] = math.NaN()
			}
		}
		numeric[v] = nums
	}

	keep := make([]int, 0, ds.RowCount())
rows:
	for i := 0; i < ds.RowCount(); i++ {
		for _, v := range vars {
			if math.IsNaN(numeric[v][i]) {
				continue rows
			}
		}
		keep = append(keep, i)
	}

	frame := &cleanFrame{
		numeric: make(map[string][]float64, len(vars)),
		keys:    make(map[string][]dataset.Value, len(groupBy)),
	}
	for _, v := range vars {
		frame.numeric[v] = subset(numeric[v], keep)
	}
	for _, g := range groupBy {
		col, _ := ds.Column(g)
		vals := make([]dataset.Value, len(keep))
		for i, idx := range keep {
			vals[i] = col[idx]
		}
		frame.keys[g] = vals
	}

	return frame, nil
}

func subset(data []float64, rows []int) []float64 {
	out := make([]float64, len(rows))
	for i, idx := range rows {
		out[i] = data[idx]
	}
	return out
}

func pairSubset(x, y []float64, rows []int) ([]float64, []float64) {
	return subset(x, rows), subset(y, rows)
}

// dropPairsWithNaN removes rows where either side is missing
func dropPairsWithNaN(x, y []float64) ([]float64, []float64) {
	px := make([]float64, 0, len(x))
	py := make([]float64, 0, len(y))
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		px = append(px, x[i])
		py = append(py, y[i])
	}
	return px, py
}
