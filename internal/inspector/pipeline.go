package inspector

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog"

	"github.com/lueurxax/generation-inspector/internal/platform/observability"
)

// FilterMode selects the granularity of a filter operation.
type FilterMode string

const (
	// FilterFiles re-evaluates per-model file lists independently; a
	// question is dropped entirely when any model's list becomes empty.
	FilterFiles FilterMode = "files"
	// FilterQuestions keeps or drops whole question entries.
	FilterQuestions FilterMode = "questions"
)

// Pipeline implements the filter / sort / update operations over a session's
// working table. Operations are synchronous and safe to re-invoke; the API
// boundary serializes them per session.
type Pipeline struct {
	engine *Engine
	logger *zerolog.Logger
}

func NewPipeline(engine *Engine, logger *zerolog.Logger) *Pipeline {
	return &Pipeline{engine: engine, logger: logger}
}

// Filter applies a user predicate. Unless applyOnFiltered is set, it restarts
// from a fresh copy of the cached load, discarding prior filter/sort/update
// effects. The final line of the expression may chain several segments with
// "&&"; every segment must pass.
func (p *Pipeline) Filter(ctx context.Context, s *Session, mode FilterMode, expression string, applyOnFiltered bool) error {
	if !applyOnFiltered {
		if err := s.rebuildWorkingTable(ctx); err != nil {
			observability.PipelineOperations.WithLabelValues("filter", "error").Inc()
			return err
		}
		s.filterLog = nil
	}
	if strings.TrimSpace(expression) == "" {
		observability.PipelineOperations.WithLabelValues("filter", "ok").Inc()
		return nil
	}

	acc := NewErrorAccumulator()
	statErrs := make(map[string]*ErrorAccumulator)
	allowed := s.loader.Models()

	switch mode {
	case FilterFiles:
		programs, err := CompileFilter(expression)
		if err != nil {
			observability.PipelineOperations.WithLabelValues("filter", "error").Inc()
			return err
		}
		kept := make(Table, 0, len(s.table))
		for _, entry := range s.table {
			good := true
			for model, records := range entry {
				filtered := make([]Record, 0, len(records))
				for _, record := range records {
					if p.passesAll(programs, map[string]any{model: record}, s.baseModel, allowed, acc) {
						filtered = append(filtered, record)
					}
				}
				stats := p.engine.Compute(filtered, s.inlineStatList(), s.baseModel, statErrs)
				p.engine.Enrich(filtered, stats)
				entry[model] = filtered
				if len(filtered) == 0 {
					good = false
				}
			}
			if good {
				kept = append(kept, entry)
			}
		}
		s.table = kept
	case FilterQuestions:
		prog, err := CompileExpression(expression)
		if err != nil {
			observability.PipelineOperations.WithLabelValues("filter", "error").Inc()
			return err
		}
		kept := make(Table, 0, len(s.table))
		for _, entry := range s.table {
			if truthy(Evaluate(prog, recordEnv(entry, s.baseModel), true, nil, acc)) {
				kept = append(kept, entry)
			}
		}
		s.table = kept
	default:
		observability.PipelineOperations.WithLabelValues("filter", "error").Inc()
		return fmt.Errorf("unknown filter mode %q", mode)
	}

	s.filterLog = append(s.filterLog, expression)
	p.report("filtering", acc)
	p.reportStats(statErrs)
	observability.PipelineOperations.WithLabelValues("filter", "ok").Inc()
	return nil
}

func (p *Pipeline) passesAll(programs []*vm.Program, data map[string]any, baseModel string, allowed []string, acc *ErrorAccumulator) bool {
	for _, prog := range programs {
		if !truthy(Evaluate(prog, recordEnv(data, baseModel), true, allowed, acc)) {
			return false
		}
	}
	return true
}

// Sort reorders the working table: per-model file lists within each question
// are sorted independently by the evaluated key, then the question sequence
// is sorted by the tuple of the base model's per-file keys. Both sorts are
// stable; a failing key evaluation sorts as zero. Counts never change.
func (p *Pipeline) Sort(s *Session, expression string) error {
	if strings.TrimSpace(expression) == "" {
		return nil
	}
	prog, err := CompileExpression(expression)
	if err != nil {
		observability.PipelineOperations.WithLabelValues("sort", "error").Inc()
		return err
	}

	acc := NewErrorAccumulator()
	allowed := s.loader.Models()
	key := func(record Record) any {
		return Evaluate(prog, recordEnv(record, s.baseModel), 0, allowed, acc)
	}

	for _, entry := range s.table {
		for model, records := range entry {
			keys := make([]any, len(records))
			for i, record := range records {
				keys[i] = key(record)
			}
			order := make([]int, len(records))
			for i := range order {
				order[i] = i
			}
			sort.SliceStable(order, func(a, b int) bool {
				return compareValues(keys[order[a]], keys[order[b]]) < 0
			})
			sorted := make([]Record, len(records))
			for i, from := range order {
				sorted[i] = records[from]
			}
			entry[model] = sorted
		}
	}

	tuples := make([][]any, len(s.table))
	for i, entry := range s.table {
		for _, record := range entry[s.baseModel] {
			tuples[i] = append(tuples[i], key(record))
		}
	}
	order := make([]int, len(s.table))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return compareTuples(tuples[order[a]], tuples[order[b]]) < 0
	})
	sorted := make(Table, len(s.table))
	for i, from := range order {
		sorted[i] = s.table[from]
	}
	s.table = sorted

	p.report("sorting", acc)
	observability.PipelineOperations.WithLabelValues("sort", "ok").Inc()
	return nil
}

// Update rewrites every base-model record through a transform expression. The
// returned mapping is the complete new record: keys absent from it are
// deleted. A failing evaluation leaves that record untouched. Other models
// are never modified.
func (p *Pipeline) Update(s *Session, expression string) error {
	if strings.TrimSpace(expression) == "" {
		return nil
	}
	prog, err := CompileExpression(expression)
	if err != nil {
		observability.PipelineOperations.WithLabelValues("update", "error").Inc()
		return err
	}

	acc := NewErrorAccumulator()
	statErrs := make(map[string]*ErrorAccumulator)
	allowed := s.loader.Models()

	for _, entry := range s.table {
		records := entry[s.baseModel]
		for _, record := range records {
			out := Evaluate(prog, recordEnv(record, s.baseModel), nil, allowed, acc)
			if out == nil {
				continue
			}
			replacement, ok := asMapping(out)
			if !ok {
				acc.Record("update expression must return a mapping")
				continue
			}
			for name, value := range replacement {
				record[name] = value
			}
			for name := range record {
				if _, keep := replacement[name]; !keep {
					delete(record, name)
				}
			}
		}
		stats := p.engine.Compute(records, s.inlineStatList(), s.baseModel, statErrs)
		p.engine.Enrich(records, stats)
	}

	p.report("update_dataset", acc)
	p.reportStats(statErrs)
	observability.PipelineOperations.WithLabelValues("update", "ok").Inc()
	return nil
}

func (p *Pipeline) report(operation string, acc *ErrorAccumulator) {
	if !acc.Empty() {
		observability.ExpressionErrors.WithLabelValues(operation).Add(float64(len(acc.Counts())))
	}
	p.engine.reportErrors(operation, acc)
}

func (p *Pipeline) reportStats(statErrs map[string]*ErrorAccumulator) {
	names := make([]string, 0, len(statErrs))
	for name := range statErrs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p.engine.reportErrors("statistic "+name, statErrs[name])
	}
}

func asMapping(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case Record:
		return m, true
	case map[string]any:
		return m, true
	default:
		return nil, false
	}
}

// truthy mirrors expression-language truthiness so filters may return more
// than strict booleans.
func truthy(v any) bool {
	switch value := v.(type) {
	case nil:
		return false
	case bool:
		return value
	case int:
		return value != 0
	case int64:
		return value != 0
	case float64:
		return value != 0
	case string:
		return value != ""
	default:
		return true
	}
}

// compareValues orders sort keys of mixed dynamic types: numbers before
// anything comparable as numbers, then strings, booleans as false < true,
// anything else by its printed form.
func compareValues(a, b any) int {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			return strings.Compare(as, bs)
		}
	}
	if ab, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok {
			switch {
			case ab == bb:
				return 0
			case bb:
				return -1
			default:
				return 1
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func compareTuples(a, b []any) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := compareValues(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

func toFloat(v any) (float64, bool) {
	switch value := v.(type) {
	case int:
		return float64(value), true
	case int32:
		return float64(value), true
	case int64:
		return float64(value), true
	case uint:
		return float64(value), true
	case uint64:
		return float64(value), true
	case float32:
		return float64(value), true
	case float64:
		return value, true
	default:
		return 0, false
	}
}
