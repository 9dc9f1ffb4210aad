package corr

import (
	"context"
	"math"
	"testing"

	dcorr "gocorr/domain/corr"
	"gocorr/domain/dataset"
)

func numericColumn(values ...float64) []dataset.Value {
	out := make([]dataset.Value, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = dataset.NewMissingValue()
			continue
		}
		out[i] = dataset.NewNumericValue(v)
	}
	return out
}

func stringColumn(values ...string) []dataset.Value {
	out := make([]dataset.Value, len(values))
	for i, v := range values {
		out[i] = dataset.NewStringValue(v)
	}
	return out
}

func buildDataset(t *testing.T, columns map[string][]dataset.Value, order []string) *dataset.Dataset {
	t.Helper()
	ds := dataset.New()
	for _, name := range order {
		if err := ds.SetColumn(name, columns[name]); err != nil {
			t.Fatalf("SetColumn(%s) failed: %v", name, err)
		}
	}
	return ds
}

// TestCompute_PerfectLinearCorrelation verifies a perfectly linear pair yields 1.0
func TestCompute_PerfectLinearCorrelation(t *testing.T) {
	ds := buildDataset(t, map[string][]dataset.Value{
		"x": numericColumn(1, 2, 3, 4, 5),
		"y": numericColumn(2, 4, 6, 8, 10),
	}, []string{"x", "y"})

	engine := NewEngine(3, 3, 1, nil)
	result, err := engine.Compute(context.Background(), ds, "x", "y", nil, dcorr.MethodPearson)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	cell, ok := result[dcorr.PairKey("x", "y")]
	if !ok {
		t.Fatalf("Expected key %q, got %v", dcorr.PairKey("x", "y"), result)
	}
	v, ok := cell.Value()
	if !ok {
		t.Fatal("Expected a numeric cell")
	}
	if math.Abs(v-1.0) > 1e-9 {
		t.Errorf("Expected correlation 1.0, got %f", v)
	}
}

// TestCompute_MissingColumn verifies unknown columns fail before computation
func TestCompute_MissingColumn(t *testing.T) {
	ds := buildDataset(t, map[string][]dataset.Value{
		"x": numericColumn(1, 2, 3),
	}, []string{"x"})

	engine := NewEngine(1, 3, 1, nil)
	if _, err := engine.Compute(context.Background(), ds, "x", "nope", nil, dcorr.MethodPearson); err == nil {
		t.Fatal("Expected an error for a missing column")
	}
}

// TestCompute_InsufficientSamples verifies the minimum-sample gate
func TestCompute_InsufficientSamples(t *testing.T) {
	ds := buildDataset(t, map[string][]dataset.Value{
		"x": numericColumn(1, 2, 3),
		"y": numericColumn(3, 2, 1),
	}, []string{"x", "y"})

	engine := NewEngine(10, 3, 1, nil)
	result, err := engine.Compute(context.Background(), ds, "x", "y", nil, dcorr.MethodPearson)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	cell := result[dcorr.PairKey("x", "y")]
	if !cell.IsInsufficient() {
		t.Errorf("Expected insufficient-data sentinel, got %+v", cell)
	}
	if cell.IsNull() {
		t.Error("Insufficient must be distinct from null")
	}
}

// TestCompute_ConstantColumnYieldsNull verifies a degenerate input degrades to null
func TestCompute_ConstantColumnYieldsNull(t *testing.T) {
	ds := buildDataset(t, map[string][]dataset.Value{
		"x": numericColumn(5, 5, 5, 5, 5),
		"y": numericColumn(1, 2, 3, 4, 5),
	}, []string{"x", "y"})

	engine := NewEngine(3, 3, 1, nil)
	result, err := engine.Compute(context.Background(), ds, "x", "y", nil, dcorr.MethodPearson)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	cell := result[dcorr.PairKey("x", "y")]
	if !cell.IsNull() {
		t.Errorf("Expected null cell for zero-variance input, got %+v", cell)
	}
}

// TestCompute_MissingValuesDropped verifies rows missing either side are removed
func TestCompute_MissingValuesDropped(t *testing.T) {
	nan := math.NaN()
	ds := buildDataset(t, map[string][]dataset.Value{
		"x": numericColumn(1, 2, nan, 4, 5, 6),
		"y": numericColumn(2, 4, 6, nan, 10, 12),
	}, []string{"x", "y"})

	engine := NewEngine(4, 3, 1, nil)
	result, err := engine.Compute(context.Background(), ds, "x", "y", nil, dcorr.MethodPearson)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	v, ok := result[dcorr.PairKey("x", "y")].Value()
	if !ok {
		t.Fatal("Expected a numeric result after dropping incomplete rows")
	}
	if math.Abs(v-1.0) > 1e-9 {
		t.Errorf("Expected correlation 1.0 on the 4 complete rows, got %f", v)
	}
}

// TestCompute_GroupedBySingleDimension verifies per-group keys and values
func TestCompute_GroupedBySingleDimension(t *testing.T) {
	ds := buildDataset(t, map[string][]dataset.Value{
		"g": stringColumn("a", "a", "a", "b", "b", "b"),
		"x": numericColumn(1, 2, 3, 1, 2, 3),
		"y": numericColumn(2, 4, 6, 6, 4, 2),
	}, []string{"g", "x", "y"})

	engine := NewEngine(3, 3, 2, nil)
	result, err := engine.Compute(context.Background(), ds, "x", "y", []string{"g"}, dcorr.MethodPearson)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if len(result) != 2 {
		t.Fatalf("Expected 2 groups, got %d: %v", len(result), result)
	}
	va, _ := result["a"].Value()
	vb, _ := result["b"].Value()
	if math.Abs(va-1.0) > 1e-9 {
		t.Errorf("Group a: expected 1.0, got %f", va)
	}
	if math.Abs(vb+1.0) > 1e-9 {
		t.Errorf("Group b: expected -1.0, got %f", vb)
	}
}

// TestCompute_GroupKeyJoinsDimensions verifies multi-dimension group keys
func TestCompute_GroupKeyJoinsDimensions(t *testing.T) {
	ds := buildDataset(t, map[string][]dataset.Value{
		"g1": stringColumn("a", "a", "a", "a"),
		"g2": stringColumn("p", "p", "p", "p"),
		"x":  numericColumn(1, 2, 3, 4),
		"y":  numericColumn(1, 2, 3, 4),
	}, []string{"g1", "g2", "x", "y"})

	engine := NewEngine(2, 3, 1, nil)
	result, err := engine.Compute(context.Background(), ds, "x", "y", []string{"g1", "g2"}, dcorr.MethodPearson)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if _, ok := result["a"+dcorr.GroupKeySeparator+"p"]; !ok {
		t.Errorf("Expected group key %q, got %v", "a"+dcorr.GroupKeySeparator+"p", result)
	}
}

// TestCompute_MissingGroupValueSkipsRow verifies rows without a group value are excluded
func TestCompute_MissingGroupValueSkipsRow(t *testing.T) {
	ds := buildDataset(t, map[string][]dataset.Value{
		"g": {
			dataset.NewStringValue("a"),
			dataset.NewStringValue("a"),
			dataset.NewMissingValue(),
			dataset.NewStringValue("a"),
		},
		"x": numericColumn(1, 2, 3, 4),
		"y": numericColumn(1, 2, 100, 4),
	}, []string{"g", "x", "y"})

	engine := NewEngine(3, 3, 1, nil)
	result, err := engine.Compute(context.Background(), ds, "x", "y", []string{"g"}, dcorr.MethodPearson)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if len(result) != 1 {
		t.Fatalf("Expected a single group, got %v", result)
	}
	v, _ := result["a"].Value()
	if math.Abs(v-1.0) > 1e-9 {
		t.Errorf("Expected 1.0 over the 3 rows with a group value, got %f", v)
	}
}

// TestCompute_SpearmanMonotonic verifies spearman on a monotonic non-linear pair
func TestCompute_SpearmanMonotonic(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = v * v * v
	}
	ds := buildDataset(t, map[string][]dataset.Value{
		"x": numericColumn(x...),
		"y": numericColumn(y...),
	}, []string{"x", "y"})

	engine := NewEngine(3, 3, 1, nil)
	result, err := engine.Compute(context.Background(), ds, "x", "y", nil, dcorr.MethodSpearman)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	v, _ := result[dcorr.PairKey("x", "y")].Value()
	if math.Abs(v-1.0) > 1e-9 {
		t.Errorf("Spearman on a strictly increasing pair should be 1.0, got %f", v)
	}
}

// TestCompute_KendallOppositeOrder verifies kendall on a strictly decreasing pair
func TestCompute_KendallOppositeOrder(t *testing.T) {
	ds := buildDataset(t, map[string][]dataset.Value{
		"x": numericColumn(1, 2, 3, 4, 5),
		"y": numericColumn(10, 8, 6, 4, 2),
	}, []string{"x", "y"})

	engine := NewEngine(3, 3, 1, nil)
	result, err := engine.Compute(context.Background(), ds, "x", "y", nil, dcorr.MethodKendall)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	v, _ := result[dcorr.PairKey("x", "y")].Value()
	if math.Abs(v+1.0) > 1e-9 {
		t.Errorf("Kendall on a strictly decreasing pair should be -1.0, got %f", v)
	}
}

// TestCompute_RoundsToPrecision verifies rounding of computed values
func TestCompute_RoundsToPrecision(t *testing.T) {
	ds := buildDataset(t, map[string][]dataset.Value{
		"x": numericColumn(1, 2, 3, 4, 5, 6, 7),
		"y": numericColumn(2, 1, 4, 3, 6, 5, 8),
	}, []string{"x", "y"})

	engine := NewEngine(3, 3, 1, nil)
	result, err := engine.Compute(context.Background(), ds, "x", "y", nil, dcorr.MethodPearson)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	v, _ := result[dcorr.PairKey("x", "y")].Value()
	if v != roundTo(v, 3) {
		t.Errorf("Value %v is not rounded to 3 decimals", v)
	}
}

// TestComputeMatrix_DiagonalAlwaysOne verifies the diagonal is forced to exactly 1
func TestComputeMatrix_DiagonalAlwaysOne(t *testing.T) {
	ds := buildDataset(t, map[string][]dataset.Value{
		"a": numericColumn(1, 2, 3, 4, 5),
		"b": numericColumn(5, 3, 8, 1, 9),
		"c": numericColumn(2, 2, 2, 2, 2),
	}, []string{"a", "b", "c"})

	engine := NewEngine(3, 3, 1, nil)
	result, err := engine.ComputeMatrix(context.Background(), ds, []string{"a", "b", "c"}, nil, dcorr.MethodPearson)
	if err != nil {
		t.Fatalf("ComputeMatrix failed: %v", err)
	}

	for _, v := range result.Variables {
		cell := result.Matrix[v][v]
		got, ok := cell.Value()
		if !ok || got != 1.0 {
			t.Errorf("Diagonal [%s][%s] should be exactly 1.0, got %+v", v, v, cell)
		}
	}

	// c has zero variance: off-diagonal cells involving it must be null
	if !result.Matrix["a"]["c"].IsNull() {
		t.Error("Expected null for the zero-variance column's off-diagonal cell")
	}
}

// TestComputeMatrix_Symmetry verifies m[i][j] == m[j][i]
func TestComputeMatrix_Symmetry(t *testing.T) {
	ds := buildDataset(t, map[string][]dataset.Value{
		"a": numericColumn(1, 2, 3, 4, 5, 6),
		"b": numericColumn(2, 1, 4, 3, 7, 5),
		"c": numericColumn(9, 7, 5, 4, 2, 1),
	}, []string{"a", "b", "c"})

	engine := NewEngine(3, 3, 1, nil)
	result, err := engine.ComputeMatrix(context.Background(), ds, []string{"a", "b", "c"}, nil, dcorr.MethodPearson)
	if err != nil {
		t.Fatalf("ComputeMatrix failed: %v", err)
	}

	for _, v1 := range result.Variables {
		for _, v2 := range result.Variables {
			a, aok := result.Matrix[v1][v2].Value()
			b, bok := result.Matrix[v2][v1].Value()
			if aok != bok || a != b {
				t.Errorf("Matrix not symmetric at [%s][%s]: %v vs %v", v1, v2, a, b)
			}
		}
	}
}

// TestComputeMatrix_GroupGating verifies a small group blanks its whole off-diagonal
func TestComputeMatrix_GroupGating(t *testing.T) {
	ds := buildDataset(t, map[string][]dataset.Value{
		"g": stringColumn("big", "big", "big", "big", "small"),
		"a": numericColumn(1, 2, 3, 4, 5),
		"b": numericColumn(2, 4, 6, 8, 10),
	}, []string{"g", "a", "b"})

	engine := NewEngine(3, 3, 2, nil)
	result, err := engine.ComputeMatrix(context.Background(), ds, []string{"a", "b"}, []string{"g"}, dcorr.MethodPearson)
	if err != nil {
		t.Fatalf("ComputeMatrix failed: %v", err)
	}

	if !result.Grouped {
		t.Fatal("Expected a grouped result")
	}
	small, ok := result.Groups["small"]
	if !ok {
		t.Fatalf("Expected group %q, got %v", "small", result.Groups)
	}
	if !small["a"]["b"].IsInsufficient() {
		t.Error("Off-diagonal of an undersized group should be the insufficient sentinel")
	}
	if v, ok := small["a"]["a"].Value(); !ok || v != 1.0 {
		t.Error("Diagonal must stay 1.0 even in an undersized group")
	}

	big := result.Groups["big"]
	if v, _ := big["a"]["b"].Value(); math.Abs(v-1.0) > 1e-9 {
		t.Errorf("Big group should correlate at 1.0, got %f", v)
	}
}

// TestTieAveragedRanks verifies tie handling in the rank transform
func TestTieAveragedRanks(t *testing.T) {
	ranks := tieAveragedRanks([]float64{10, 20, 20, 30})
	expected := []float64{1, 2.5, 2.5, 4}
	for i := range expected {
		if math.Abs(ranks[i]-expected[i]) > 1e-9 {
			t.Errorf("Rank[%d]: expected %f, got %f", i, expected[i], ranks[i])
		}
	}
}
