package inspector

import (
	"math"
	"sort"

	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog"
)

// Built-in statistic names merged into every record of a group.
const (
	StatCorrectResponses = "correct_responses"
	StatWrongResponses   = "wrong_responses"
	StatNoResponse       = "no_response"
)

// Built-in whole-dataset statistic names.
const (
	StatDatasetSize          = "dataset size"
	StatOverallSamples       = "overall number of samples"
	StatGenerationsPerSample = "generations per sample"
)

// statErrorValue replaces a custom statistic whose function failed.
const statErrorValue = "error"

// StatFunc is a registered custom statistic: its name, the compiled program
// and the raw source it was compiled from.
type StatFunc struct {
	Name    string
	Program *vm.Program
	Source  string
}

// Engine computes built-in and custom statistics over record groups.
type Engine struct {
	logger *zerolog.Logger
}

func NewEngine(logger *zerolog.Logger) *Engine {
	return &Engine{logger: logger}
}

// Fractions classifies every record and returns the correct / wrong /
// no-response fractions. An empty input reports -1 for all three, a sentinel
// distinct from a valid zero.
func (e *Engine) Fractions(records []Record) (correct, wrong, noResponse float64) {
	if len(records) == 0 {
		return -1, -1, -1
	}
	var correctN, wrongN, noResponseN int
	for _, record := range records {
		if record[FieldPredictedAnswer] == nil {
			noResponseN++
			continue
		}
		judgement, _ := record[FieldJudgement].(string)
		if IsCorrectJudgement(judgement) {
			correctN++
		} else {
			wrongN++
		}
	}
	total := float64(len(records))
	return float64(correctN) / total, float64(wrongN) / total, float64(noResponseN) / total
}

// Compute returns the built-in fractions plus every registered inline custom
// statistic evaluated over records. Failures of a custom function are caught
// per function: the statistic reports an error placeholder and the failure
// lands in that function's accumulator in errs.
func (e *Engine) Compute(records []Record, inline []StatFunc, baseModel string, errs map[string]*ErrorAccumulator) map[string]any {
	correct, wrong, noResponse := e.Fractions(records)
	stats := map[string]any{
		StatCorrectResponses: round2(correct),
		StatWrongResponses:   round2(wrong),
		StatNoResponse:       round2(noResponse),
	}
	for _, fn := range inline {
		acc := errs[fn.Name]
		if acc == nil {
			acc = NewErrorAccumulator()
			if errs != nil {
				errs[fn.Name] = acc
			}
		}
		stats[fn.Name] = Evaluate(fn.Program, groupEnv(records, baseModel), statErrorValue, nil, acc)
	}
	return stats
}

// BuiltinStatNames lists the statistic columns always present on enriched
// records, in display order.
func (e *Engine) BuiltinStatNames() []string {
	return []string{StatCorrectResponses, StatWrongResponses, StatNoResponse}
}

// Enrich shallow-merges stats into every record of the group they were
// computed from.
func (e *Engine) Enrich(records []Record, stats map[string]any) {
	for _, record := range records {
		for name, value := range stats {
			record[name] = value
		}
	}
}

// ComputeWholeDataset returns dataset-level summaries for one model: dataset
// size, total sample count, samples-per-question average, merged with the
// general custom statistics evaluated on the full per-question grouping.
func (e *Engine) ComputeWholeDataset(table Table, model string, general []StatFunc) map[string]any {
	perQuestion := make([][]Record, 0, len(table))
	var overallSamples, datasetSize int
	for _, entry := range table {
		records := entry[model]
		perQuestion = append(perQuestion, records)
		overallSamples += len(records)
		if len(records) > 0 {
			datasetSize++
		}
	}

	var perSample float64
	if datasetSize > 0 {
		perSample = float64(overallSamples) / float64(datasetSize)
	}
	stats := map[string]any{
		StatDatasetSize:          datasetSize,
		StatOverallSamples:       overallSamples,
		StatGenerationsPerSample: perSample,
	}
	for _, fn := range general {
		acc := NewErrorAccumulator()
		stats[fn.Name] = Evaluate(fn.Program, groupEnv(perQuestion, model), statErrorValue, nil, acc)
		e.reportErrors("general statistic "+fn.Name, acc)
	}
	return stats
}

// reportErrors surfaces one aggregated diagnostic per batch operation.
func (e *Engine) reportErrors(operation string, acc *ErrorAccumulator) {
	if acc == nil || acc.Empty() {
		return
	}
	counts := acc.Counts()
	messages := acc.Messages()
	event := e.logger.Error().Str("operation", operation).Int("distinct_errors", len(messages))
	dict := zerolog.Dict()
	for _, message := range messages {
		dict.Int(message, counts[message])
	}
	event.Dict("errors", dict).Msg("expression evaluation errors")
}

// sortedStatNames returns registry names in stable order.
func sortedStatNames(registry map[string]StatFunc) []StatFunc {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	funcs := make([]StatFunc, 0, len(names))
	for _, name := range names {
		funcs = append(funcs, registry[name])
	}
	return funcs
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
