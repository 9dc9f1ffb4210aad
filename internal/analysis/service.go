package analysis

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	dcorr "gocorr/domain/corr"
	"gocorr/domain/dataset"
	"gocorr/internal"
	"gocorr/internal/config"
	"gocorr/internal/corr"
	"gocorr/internal/derive"
	"gocorr/internal/errors"
	"gocorr/internal/mapping"
	"gocorr/internal/profile"
	"gocorr/internal/render"
	"gocorr/ports"
)

const (
	minVariables = 2
	maxVariables = 10
)

// Request describes one correlation analysis. Filters, GroupBy, and
// CorrelationVars hold the user's own terms; the resolver maps them to actual
// dataset columns.
type Request struct {
	Source          ports.Source      `json:"data_source"`
	Filters         map[string]string `json:"filters,omitempty"`
	GroupBy         []string          `json:"group_by,omitempty"`
	CorrelationVars []string          `json:"correlation_vars"`
	Method          string            `json:"method,omitempty"`
	MinSampleSize   int               `json:"min_sample_size,omitempty"`
}

// Service wires the loader, resolver, derived-field engine, and renderer into
// the end-to-end analysis pipeline.
type Service struct {
	loader   ports.DataLoader
	resolver *mapping.Resolver
	derive   *derive.Engine
	renderer *render.Renderer
	profiler *profile.Profiler
	cfg      config.AnalysisConfig
	logger   *internal.Logger
}

func NewService(loader ports.DataLoader, resolver *mapping.Resolver, deriveEngine *derive.Engine, cfg config.AnalysisConfig, logger *internal.Logger) *Service {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Service{
		loader:   loader,
		resolver: resolver,
		derive:   deriveEngine,
		renderer: render.NewRenderer(logger),
		profiler: profile.NewProfiler(cfg.CorrelationPrecision, logger),
		cfg:      cfg,
		logger:   logger,
	}
}

// AnalyzeCorrelation runs one analysis end to end and returns the rendered
// markdown table. Two variables produce a pairwise result; three or more
// produce a correlation matrix.
func (s *Service) AnalyzeCorrelation(ctx context.Context, req Request) (string, error) {
	requestID := uuid.New().String()[:8]
	s.logger.Info("[Analysis] %s: starting, vars=%v group_by=%v method=%q", requestID, req.CorrelationVars, req.GroupBy, req.Method)

	method, err := s.validate(req)
	if err != nil {
		return "", err
	}

	ds, err := s.loader.Load(ctx, req.Source)
	if err != nil {
		return "", errors.Wrapf(err, "loading data from %s source failed", req.Source.Method)
	}
	s.logger.Debug("[Analysis] %s: loaded %d rows, %d columns", requestID, ds.RowCount(), ds.ColumnCount())

	columnMap, err := s.resolveNames(ctx, ds, req)
	if err != nil {
		return "", err
	}

	if err := s.derive.Materialize(ctx, ds, columnMap, s.resolver); err != nil {
		return "", err
	}

	if err := s.applyFilters(ds, columnMap, req.Filters); err != nil {
		return "", err
	}
	if ds.RowCount() == 0 {
		return "", errors.ValidationError("no rows remain after applying filters")
	}

	groupCols, err := s.mappedColumns(ds, columnMap, req.GroupBy, "group-by term")
	if err != nil {
		return "", err
	}
	varCols, err := s.mappedColumns(ds, columnMap, req.CorrelationVars, "correlation variable")
	if err != nil {
		return "", err
	}
	mapped := make(map[string]string, len(varCols))
	for i, col := range varCols {
		if prev, dup := mapped[col]; dup {
			return "", errors.ValidationError(fmt.Sprintf("correlation variables %q and %q both map to column %q", prev, req.CorrelationVars[i], col))
		}
		mapped[col] = req.CorrelationVars[i]
	}

	minSample := req.MinSampleSize
	if minSample <= 0 {
		minSample = s.cfg.MinSampleSize
	}
	engine := corr.NewEngine(minSample, s.cfg.CorrelationPrecision, s.cfg.MaxGroupParallelism, s.logger)

	if len(varCols) == 2 {
		result, err := engine.Compute(ctx, ds, varCols[0], varCols[1], groupCols, method)
		if err != nil {
			return "", err
		}
		s.logger.Info("[Analysis] %s: pairwise computation done, %d result rows", requestID, len(result))
		return s.renderer.RenderPairwise(result, varCols[0], varCols[1], groupCols), nil
	}

	result, err := engine.ComputeMatrix(ctx, ds, varCols, groupCols, method)
	if err != nil {
		return "", err
	}
	s.logger.Info("[Analysis] %s: matrix computation done over %d variables", requestID, len(varCols))
	return s.renderer.RenderMatrix(result, groupCols), nil
}

// Describe loads a source and returns per-column descriptive statistics with
// a rendered markdown report.
func (s *Service) Describe(ctx context.Context, src ports.Source) ([]profile.ColumnProfile, string, error) {
	ds, err := s.loader.Load(ctx, src)
	if err != nil {
		return nil, "", errors.Wrapf(err, "loading data from %s source failed", src.Method)
	}
	profiles := s.profiler.Describe(ds)
	return profiles, profile.RenderMarkdown(profiles), nil
}

func (s *Service) validate(req Request) (dcorr.Method, error) {
	if len(req.CorrelationVars) < minVariables || len(req.CorrelationVars) > maxVariables {
		return "", errors.ValidationError(fmt.Sprintf("correlation requires between %d and %d variables, got %d", minVariables, maxVariables, len(req.CorrelationVars)))
	}
	seen := make(map[string]bool, len(req.CorrelationVars))
	for _, v := range req.CorrelationVars {
		if seen[v] {
			return "", errors.ValidationError(fmt.Sprintf("duplicate correlation variable %q", v))
		}
		seen[v] = true
	}
	method, err := dcorr.ParseMethod(req.Method)
	if err != nil {
		return "", errors.ValidationError(err.Error())
	}
	return method, nil
}

// resolveNames maps every user term to a dataset column in one batched call,
// then retries whatever stayed unresolved against the derived-field registry
// so terms like 季节 can map to a generated column.
func (s *Service) resolveNames(ctx context.Context, ds *dataset.Dataset, req Request) (mapping.Mapping, error) {
	intents := collectIntents(req)
	columnMap, err := s.resolver.Resolve(ctx, ds.Columns(), intents)
	if err != nil {
		return nil, err
	}

	unresolved := columnMap.Unresolved()
	if len(unresolved) == 0 {
		return columnMap, nil
	}

	derivedMap, err := s.resolver.Resolve(ctx, s.derive.Names(), unresolved)
	if err != nil {
		return nil, err
	}
	for intent, col := range derivedMap {
		if col != nil {
			columnMap[intent] = col
		}
	}
	return columnMap, nil
}

func (s *Service) applyFilters(ds *dataset.Dataset, columnMap mapping.Mapping, filters map[string]string) error {
	keys := make([]string, 0, len(filters))
	for key := range filters {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		col := resolveColumn(columnMap, key)
		if !ds.HasColumn(col) {
			return errors.ValidationError(fmt.Sprintf("filter column %q (from term %q) does not exist in the data", col, key))
		}
		if err := ds.FilterEqual(col, filters[key]); err != nil {
			return errors.Wrapf(err, "applying filter %q=%q failed", key, filters[key])
		}
		s.logger.Debug("[Analysis] filter %q=%q left %d rows", key, filters[key], ds.RowCount())
	}
	return nil
}

func (s *Service) mappedColumns(ds *dataset.Dataset, columnMap mapping.Mapping, terms []string, kind string) ([]string, error) {
	cols := make([]string, 0, len(terms))
	for _, term := range terms {
		col := resolveColumn(columnMap, term)
		if !ds.HasColumn(col) {
			return nil, errors.ColumnMappingError(fmt.Sprintf("%s %q maps to column %q, which does not exist in the data", kind, term, col))
		}
		cols = append(cols, col)
	}
	return cols, nil
}

// resolveColumn falls back to the term itself when the resolver produced no
// mapping, so exact column names keep working without an LLM round trip.
func resolveColumn(m mapping.Mapping, term string) string {
	if col, ok := m.Resolved(term); ok {
		return col
	}
	return term
}

func collectIntents(req Request) []string {
	seen := make(map[string]bool)
	var intents []string
	add := func(term string) {
		if term == "" || seen[term] {
			return
		}
		seen[term] = true
		intents = append(intents, term)
	}
	filterKeys := make([]string, 0, len(req.Filters))
	for key := range req.Filters {
		filterKeys = append(filterKeys, key)
	}
	sort.Strings(filterKeys)
	for _, key := range filterKeys {
		add(key)
	}
	for _, term := range req.GroupBy {
		add(term)
	}
	for _, term := range req.CorrelationVars {
		add(term)
	}
	return intents
}
