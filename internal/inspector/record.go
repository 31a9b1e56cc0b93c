package inspector

import (
	"regexp"
	"sort"

	"github.com/tiendc/go-deepcopy"
)

// Well-known record fields. Provenance fields are attached by the loader;
// the answer fields come from the generation pipeline that produced the file.
const (
	FieldFileName        = "file_name"
	FieldQuestionIndex   = "question_index"
	FieldPageIndex       = "page_index"
	FieldLabels          = "labels"
	FieldPredictedAnswer = "predicted_answer"
	FieldJudgement       = "judgement"
)

// exportStripFields are removed from records when the dataset is written back to disk.
var exportStripFields = []string{FieldPageIndex, FieldFileName}

// Record holds one model generation for one question from one result file.
// Result-file schemas vary by pipeline, so it stays a dynamically-keyed map;
// only the fields the engine depends on are ever interpreted.
type Record map[string]any

// QuestionEntry maps a model name to its records for one question, one record
// per result file, in file discovery order unless resorted.
type QuestionEntry map[string][]Record

// Table is the question-indexed working set: one entry per dataset question.
type Table []QuestionEntry

func (r Record) FileName() string {
	name, _ := r[FieldFileName].(string)
	return name
}

// Labels returns the record's label set. Labels survive JSON and expression
// round trips as either []string or []any, so both shapes are accepted.
func (r Record) Labels() []string {
	switch v := r[FieldLabels].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// AddLabel attaches label to the record if not already present.
func (r Record) AddLabel(label string) bool {
	labels := r.Labels()
	for _, existing := range labels {
		if existing == label {
			return false
		}
	}
	r[FieldLabels] = append(labels, label)
	return true
}

// RemoveLabel detaches label from the record.
func (r Record) RemoveLabel(label string) bool {
	labels := r.Labels()
	for i, existing := range labels {
		if existing == label {
			r[FieldLabels] = append(labels[:i:i], labels[i+1:]...)
			return true
		}
	}
	return false
}

// Exportable returns a copy of the record without the fields that only make
// sense inside a live session.
func (r Record) Exportable() Record {
	out := make(Record, len(r))
	for key, value := range r {
		out[key] = value
	}
	for _, key := range exportStripFields {
		delete(out, key)
	}
	return out
}

// Clone deep-copies the table so the working copy can be mutated freely
// without touching the cached load.
func (t Table) Clone() Table {
	if t == nil {
		return nil
	}
	var out Table
	if err := deepcopy.Copy(&out, t); err != nil {
		// Table contents come from json.Unmarshal and expression results,
		// all of which are plain values the copier handles.
		panic(err)
	}
	return out
}

// Models returns the model names present anywhere in the table, sorted.
func (t Table) Models() []string {
	seen := map[string]struct{}{}
	var models []string
	for _, entry := range t {
		for model := range entry {
			if _, ok := seen[model]; !ok {
				seen[model] = struct{}{}
				models = append(models, model)
			}
		}
	}
	sort.Strings(models)
	return models
}

var correctJudgementRe = regexp.MustCompile(`(?i)judg[e]?ment:\s*yes`)

// IsCorrectJudgement reports whether a judgement string marks the answer as
// correct. Judgements are produced as free text ending in "Judgement: Yes/No".
func IsCorrectJudgement(judgement string) bool {
	return correctJudgementRe.MatchString(judgement)
}
