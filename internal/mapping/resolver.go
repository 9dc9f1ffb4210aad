package mapping

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"gocorr/adapters/llm"
	"gocorr/internal"
	"gocorr/internal/errors"
	"gocorr/ports"
)

// Mapping maps a user-intent name to a resolved column name; nil means the
// matcher found no plausible column. Keys are unique, values need not be.
type Mapping map[string]*string

// Resolved returns the mapped column for an intent, or false when the intent
// is absent or unresolved
func (m Mapping) Resolved(intent string) (string, bool) {
	v, ok := m[intent]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

// Unresolved returns the intents that mapped to nothing, sorted
func (m Mapping) Unresolved() []string {
	var out []string
	for k, v := range m {
		if v == nil {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Resolver maps user-intent names to actual column names through the external
// semantic matcher, with retry-with-repair parsing and a process-lifetime cache.
type Resolver struct {
	client     ports.LLMClient
	maxRetries int
	logger     *internal.Logger

	mu    sync.RWMutex
	cache map[string]Mapping
	group singleflight.Group
}

// NewResolver creates a resolver with the given retry budget
func NewResolver(client ports.LLMClient, maxRetries int, logger *internal.Logger) *Resolver {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Resolver{
		client:     client,
		maxRetries: maxRetries,
		logger:     logger,
		cache:      make(map[string]Mapping),
	}
}

// Resolve maps every intent name to a best-guess existing column name or nil.
// Identical (existing, intents) inputs hit the cache and never re-invoke the
// external matcher; concurrent identical misses share a single call.
func (r *Resolver) Resolve(ctx context.Context, existing []string, intents []string) (Mapping, error) {
	if len(intents) == 0 {
		return Mapping{}, nil
	}

	key := cacheKey(existing, intents)

	r.mu.RLock()
	cached, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		r.logger.Debug("[Resolver] Cache hit for %d intents", len(intents))
		return cached.clone(), nil
	}

	result, err, _ := r.group.Do(key, func() (interface{}, error) {
		m, err := r.resolveUncached(ctx, existing, intents)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.cache[key] = m
		r.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(Mapping).clone(), nil
}

func (r *Resolver) resolveUncached(ctx context.Context, existing []string, intents []string) (Mapping, error) {
	prompt := buildMappingPrompt(existing, intents)

	var lastErr error
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		r.logger.Info("[Resolver] Column mapping attempt %d/%d (%d intents)", attempt, r.maxRetries, len(intents))

		raw, err := r.client.ChatCompletion(ctx, prompt)
		if err != nil {
			lastErr = err
			r.logger.Warn("[Resolver] Matcher call failed (attempt %d): %v", attempt, err)
			continue
		}

		var parsed map[string]interface{}
		if err := llm.ExtractJSONObject(raw, &parsed); err != nil {
			lastErr = err
			r.logger.Warn("[Resolver] Malformed matcher output (attempt %d): %v", attempt, err)
			continue
		}

		m := normalizeMapping(parsed, intents)
		r.logger.Info("[Resolver] Column mapping succeeded: %s", m.describe())
		return m, nil
	}

	return nil, errors.ColumnMappingError(
		fmt.Sprintf("no valid column mapping after %d attempts: %v", r.maxRetries, lastErr))
}

// normalizeMapping converts the raw parsed object into a Mapping, tolerating
// wrong null representations and filling in omitted intents as unresolved
func normalizeMapping(parsed map[string]interface{}, intents []string) Mapping {
	m := make(Mapping, len(intents))
	for _, intent := range intents {
		m[intent] = nil
		raw, ok := parsed[intent]
		if !ok {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "", "none", "null", "nil":
			continue
		}
		col := s
		m[intent] = &col
	}
	return m
}

func buildMappingPrompt(existing []string, intents []string) string {
	var b strings.Builder
	b.WriteString("Given the existing dataset columns, decide which column best matches each user-supplied variable name.\n\n")
	b.WriteString("Existing columns:\n")
	b.WriteString(formatNameList(existing))
	b.WriteString("\n\nUser variables:\n")
	b.WriteString(formatNameList(intents))
	b.WriteString("\n\nOutput a single JSON object mapping each user variable to the best-matching existing column, or null when no column plausibly matches. ")
	b.WriteString("Rules: output only the JSON object; never invent column names; ")
	b.WriteString("do not map a wind degree column to a compass-direction variable or vice versa.")
	return b.String()
}

func formatNameList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func cacheKey(existing []string, intents []string) string {
	e := append([]string(nil), existing...)
	i := append([]string(nil), intents...)
	sort.Strings(e)
	sort.Strings(i)
	return strings.Join(e, "\x1f") + "\x1e" + strings.Join(i, "\x1f")
}

func (m Mapping) clone() Mapping {
	out := make(Mapping, len(m))
	for k, v := range m {
		if v == nil {
			out[k] = nil
			continue
		}
		col := *v
		out[k] = &col
	}
	return out
}

func (m Mapping) describe() string {
	parts := make([]string, 0, len(m))
	for k, v := range m {
		if v == nil {
			parts = append(parts, k+"->?")
		} else {
			parts = append(parts, k+"->"+*v)
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}
