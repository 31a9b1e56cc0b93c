package inspector

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// FieldQuestion is the source-dataset field holding the question statement;
// it stays visible in detailed rows even though stat columns are filtered out.
const FieldQuestion = "question"

// StatScope selects a custom-statistic registry.
type StatScope string

const (
	// ScopeInline statistics consume a flat record list (one file group).
	ScopeInline StatScope = "inline"
	// ScopeGeneral statistics consume the whole per-question grouping.
	ScopeGeneral StatScope = "general"
)

// Session is the explicit per-process state: the cached load's working copy,
// the selected base model, and every auxiliary registry the dashboard
// mutates. It replaces process-wide globals so tests get a fresh context.
// No internal locking: a single active session is assumed and the API
// boundary serializes operations.
type Session struct {
	loader *Loader
	engine *Engine
	logger *zerolog.Logger

	baseModel string
	table     Table
	filterLog []string

	labels       []string
	excludedRows map[string]struct{}
	editableRows map[string]struct{}
	comparedRows map[string]struct{}

	inlineStats  map[string]StatFunc
	generalStats map[string]StatFunc
	deletedStats map[string]struct{}
}

func NewSession(loader *Loader, engine *Engine, logger *zerolog.Logger) *Session {
	return &Session{
		loader:       loader,
		engine:       engine,
		logger:       logger,
		excludedRows: make(map[string]struct{}),
		editableRows: make(map[string]struct{}),
		comparedRows: make(map[string]struct{}),
		inlineStats:  make(map[string]StatFunc),
		generalStats: make(map[string]StatFunc),
		deletedStats: make(map[string]struct{}),
	}
}

// SelectBaseModel switches the reference model, clears the excluded-row set
// and rebuilds the working table from the cached load.
func (s *Session) SelectBaseModel(ctx context.Context, model string) error {
	found := false
	for _, known := range s.loader.Models() {
		if known == model {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("unknown model %q", model)
	}
	s.baseModel = model
	s.excludedRows = make(map[string]struct{})
	s.filterLog = nil
	return s.rebuildWorkingTable(ctx)
}

// Reload discards the cached load and rebuilds the working table from disk.
func (s *Session) Reload(ctx context.Context) error {
	s.loader.Invalidate()
	s.filterLog = nil
	return s.rebuildWorkingTable(ctx)
}

// rebuildWorkingTable deep-copies the cached load and enriches every
// per-model file list with the current statistics.
func (s *Session) rebuildWorkingTable(ctx context.Context) error {
	cached, err := s.loader.Load(ctx)
	if err != nil {
		return err
	}
	table := cached.Clone()
	statErrs := make(map[string]*ErrorAccumulator)
	inline := s.inlineStatList()
	for _, entry := range table {
		for _, records := range entry {
			stats := s.engine.Compute(records, inline, s.baseModel, statErrs)
			s.engine.Enrich(records, stats)
		}
	}
	for name, acc := range statErrs {
		s.engine.reportErrors("statistic "+name, acc)
	}
	s.table = table
	return nil
}

func (s *Session) BaseModel() string { return s.baseModel }

func (s *Session) Table() Table { return s.table }

// Models lists every model configured for the session.
func (s *Session) Models() []string { return s.loader.Models() }

// FilterLog returns the filter expressions composed onto the current working
// table, in application order.
func (s *Session) FilterLog() []string { return s.filterLog }

// AddLabel registers a label name. Labels are append-only and deduplicated;
// there is no deletion, an unused label simply stops being applied.
func (s *Session) AddLabel(label string) bool {
	label = strings.TrimSpace(label)
	if label == "" {
		return false
	}
	for _, existing := range s.labels {
		if existing == label {
			return false
		}
	}
	s.labels = append(s.labels, label)
	return true
}

// Labels returns every label ever created, in creation order.
func (s *Session) Labels() []string { return s.labels }

// ChangeLabel applies or removes a label on matching records of the working
// table. questionIndex < 0 matches all questions, empty model means the base
// model, empty fileName matches all files. Returns the number of records
// changed.
func (s *Session) ChangeLabel(questionIndex int, model, fileName, label string, remove bool) (int, error) {
	known := false
	for _, existing := range s.labels {
		if existing == label {
			known = true
			break
		}
	}
	if !known {
		return 0, fmt.Errorf("unknown label %q", label)
	}
	if model == "" {
		model = s.baseModel
	}

	changed := 0
	for i, entry := range s.table {
		if questionIndex >= 0 && i != questionIndex {
			continue
		}
		for _, record := range entry[model] {
			if fileName != "" && record.FileName() != fileName {
				continue
			}
			if remove {
				if record.RemoveLabel(label) {
					changed++
				}
			} else if record.AddLabel(label) {
				changed++
			}
		}
	}
	return changed, nil
}

// Row sets describe which displayed attribute rows are hidden, editable or
// diffed. They apply dashboard-wide, not per record.

func (s *Session) SetRowExcluded(key string, excluded bool) { setMember(s.excludedRows, key, excluded) }

func (s *Session) SetRowEditable(key string, editable bool) { setMember(s.editableRows, key, editable) }

func (s *Session) SetRowCompared(key string, compared bool) { setMember(s.comparedRows, key, compared) }

func (s *Session) ExcludedRows() []string { return sortedKeys(s.excludedRows) }

func (s *Session) EditableRows() []string { return sortedKeys(s.editableRows) }

func (s *Session) ComparedRows() []string { return sortedKeys(s.comparedRows) }

func (s *Session) RowExcluded(key string) bool {
	_, ok := s.excludedRows[key]
	return ok
}

// AddStat compiles and registers a custom statistic. The source follows the
// expression contract: statements, then a final value expression over
// "datas". Registering an inline statistic recomputes the base model's
// metrics so the new column appears immediately.
func (s *Session) AddStat(scope StatScope, name, source string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("empty statistic name")
	}
	prog, err := CompileExpression(source)
	if err != nil {
		return err
	}
	fn := StatFunc{Name: name, Program: prog, Source: source}
	switch scope {
	case ScopeInline:
		s.inlineStats[name] = fn
	case ScopeGeneral:
		s.generalStats[name] = fn
	default:
		return fmt.Errorf("unknown statistic scope %q", scope)
	}
	delete(s.deletedStats, name)
	if scope == ScopeInline && s.baseModel != "" {
		s.RecomputeMetrics()
	}
	return nil
}

// DeleteStat removes a statistic from its registry and remembers the name so
// default display columns exclude it.
func (s *Session) DeleteStat(scope StatScope, name string) {
	switch scope {
	case ScopeInline:
		delete(s.inlineStats, name)
	case ScopeGeneral:
		delete(s.generalStats, name)
	}
	s.deletedStats[name] = struct{}{}
}

// StatSources returns the raw source text of every registered statistic in a
// scope.
func (s *Session) StatSources(scope StatScope) map[string]string {
	registry := s.inlineStats
	if scope == ScopeGeneral {
		registry = s.generalStats
	}
	sources := make(map[string]string, len(registry))
	for name, fn := range registry {
		sources[name] = fn.Source
	}
	return sources
}

// RecomputeMetrics re-enriches every base-model file list of the working
// table with built-in and inline statistics.
func (s *Session) RecomputeMetrics() {
	statErrs := make(map[string]*ErrorAccumulator)
	inline := s.inlineStatList()
	for _, entry := range s.table {
		records := entry[s.baseModel]
		stats := s.engine.Compute(records, inline, s.baseModel, statErrs)
		s.engine.Enrich(records, stats)
	}
	for name, acc := range statErrs {
		s.engine.reportErrors("statistic "+name, acc)
	}
}

// GeneralStats returns the dataset-level summary for the base model.
func (s *Session) GeneralStats() map[string]any {
	return s.engine.ComputeWholeDataset(s.table, s.baseModel, s.generalStatList())
}

// DetailedRowKeys lists the record fields shown as detailed attribute rows:
// everything except deleted statistics, index fields and statistic columns.
// The question field stays visible regardless.
func (s *Session) DetailedRowKeys() []string {
	if len(s.table) == 0 || len(s.table[0][s.baseModel]) == 0 {
		return nil
	}
	statColumns := make(map[string]struct{})
	for _, name := range s.engine.BuiltinStatNames() {
		statColumns[name] = struct{}{}
	}
	for name := range s.inlineStats {
		statColumns[name] = struct{}{}
	}

	var keys []string
	for key := range s.table[0][s.baseModel][0] {
		if key == FieldQuestion {
			keys = append(keys, key)
			continue
		}
		if _, deleted := s.deletedStats[key]; deleted {
			continue
		}
		if strings.Contains(key, "index") {
			continue
		}
		if _, isStat := statColumns[key]; isStat {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (s *Session) inlineStatList() []StatFunc { return sortedStatNames(s.inlineStats) }

func (s *Session) generalStatList() []StatFunc { return sortedStatNames(s.generalStats) }

func setMember(set map[string]struct{}, key string, on bool) {
	if on {
		set[key] = struct{}{}
	} else {
		delete(set, key)
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
