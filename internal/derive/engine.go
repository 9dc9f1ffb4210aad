package derive

import (
	"context"
	"fmt"
	"sort"

	"gocorr/domain/dataset"
	"gocorr/internal"
	"gocorr/internal/errors"
	"gocorr/internal/mapping"
)

// Field is one derived-field definition: a name, the dependencies it needs
// (by semantic intent, not raw column name), and a generator that mutates the
// dataset given the resolved dependency columns.
type Field interface {
	Name() string
	DependsOn() []string
	Generate(ds *dataset.Dataset, deps []string) error
}

// Engine maintains the static derived-field registry and materializes the
// fields a request actually references
type Engine struct {
	order  []string
	fields map[string]Field
	logger *internal.Logger
}

// NewEngine creates an engine pre-loaded with the built-in fields
func NewEngine(logger *internal.Logger) *Engine {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	e := &Engine{
		fields: make(map[string]Field),
		logger: logger,
	}
	e.Register(&TimeField{})
	e.Register(&SeasonField{})
	e.Register(&WindDirectionField{})
	return e
}

// Register adds a field to the registry, replacing any field of the same name
func (e *Engine) Register(f Field) {
	if _, exists := e.fields[f.Name()]; !exists {
		e.order = append(e.order, f.Name())
	}
	e.fields[f.Name()] = f
}

// Names returns the registered derived-field names in registration order
func (e *Engine) Names() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// IsDerived reports whether the name belongs to a registered derived field
func (e *Engine) IsDerived(name string) bool {
	_, ok := e.fields[name]
	return ok
}

// Materialize generates every derived field that appears as a value of the
// column mapping. Each field is generated at most once per call. Dependencies
// resolve through the mapping first, then verbatim column names, then a
// single-name resolver lookup against the dataset's actual columns.
func (e *Engine) Materialize(ctx context.Context, ds *dataset.Dataset, columnMap mapping.Mapping, resolver *mapping.Resolver) error {
	required := e.requiredFields(columnMap)
	if len(required) == 0 {
		return nil
	}
	e.logger.Info("[Derive] Derived fields required: %v", sortedKeys(required))

	generated := make(map[string]bool)
	for _, name := range e.order {
		if !required[name] || generated[name] {
			continue
		}
		field := e.fields[name]

		deps, err := e.resolveDependencies(ctx, ds, field, columnMap, resolver)
		if err != nil {
			return err
		}

		e.logger.Info("[Derive] Generating %q from %v", name, deps)
		if err := field.Generate(ds, deps); err != nil {
			return errors.ComputationError(fmt.Sprintf("generating derived field %q failed", name), err)
		}
		generated[name] = true
	}

	return nil
}

func (e *Engine) requiredFields(columnMap mapping.Mapping) map[string]bool {
	required := make(map[string]bool)
	for intent := range columnMap {
		if col, ok := columnMap.Resolved(intent); ok && e.IsDerived(col) {
			required[col] = true
		}
	}
	return required
}

func (e *Engine) resolveDependencies(ctx context.Context, ds *dataset.Dataset, field Field, columnMap mapping.Mapping, resolver *mapping.Resolver) ([]string, error) {
	deps := make([]string, 0, len(field.DependsOn()))
	for _, dep := range field.DependsOn() {
		col, ok := columnMap.Resolved(dep)
		if !ok {
			if ds.HasColumn(dep) {
				col = dep
			} else {
				e.logger.Info("[Derive] Dependency %q not present, resolving against dataset columns", dep)
				m, err := resolver.Resolve(ctx, ds.Columns(), []string{dep})
				if err != nil {
					return nil, err
				}
				col, ok = m.Resolved(dep)
				if !ok {
					return nil, errors.ColumnMappingError(fmt.Sprintf(
						"dependency %q of derived field %q could not be resolved to any column", dep, field.Name()))
				}
			}
		}
		if !ds.HasColumn(col) {
			return nil, errors.ColumnMappingError(fmt.Sprintf(
				"dependency %q of derived field %q resolved to %q, which does not exist in the data", dep, field.Name(), col))
		}
		deps = append(deps, col)
	}
	return deps, nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
