package inspector

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lueurxax/generation-inspector/internal/platform/observability"
)

const (
	scannerInitialBuffer = 64 * 1024
	scannerMaxBuffer     = 16 * 1024 * 1024
)

// LoaderConfig identifies one load: the optional source dataset and the
// result files of every model. The config is the cache key, so two loaders
// with equal configs read disk once.
type LoaderConfig struct {
	// InputFile is the source dataset, one JSON object per question.
	// Missing file means records carry no merged dataset fields.
	InputFile string
	// ModelFiles maps a model name to its result files, in discovery order.
	ModelFiles map[string][]string
	// Workers bounds the parallel file processing. Zero means one worker
	// per model.
	Workers int
}

// Loader reads per-model result files into a question-indexed table and
// memoizes the result until the inputs change or Invalidate is called.
type Loader struct {
	cfg    LoaderConfig
	logger *zerolog.Logger

	mu     sync.Mutex
	cached Table
	key    string
}

func NewLoader(cfg LoaderConfig, logger *zerolog.Logger) *Loader {
	return &Loader{cfg: cfg, logger: logger}
}

// Models returns the configured model names, sorted.
func (l *Loader) Models() []string {
	models := make([]string, 0, len(l.cfg.ModelFiles))
	for model := range l.cfg.ModelFiles {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}

// SetConfig replaces the loader inputs. The next Load re-reads disk if the
// inputs actually changed.
func (l *Loader) SetConfig(cfg LoaderConfig) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg = cfg
}

// Invalidate drops the cached table so the next Load re-reads disk.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cached = nil
	l.key = ""
}

// Load builds the question-indexed table. Results for the same inputs are
// served from cache; callers must Clone before mutating. An unreadable file
// or malformed JSON line fails the whole load.
func (l *Loader) Load(ctx context.Context) (Table, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := l.cacheKey()
	if l.cached != nil && l.key == key {
		return l.cached, nil
	}

	start := time.Now()

	dataset, err := l.readDataset()
	if err != nil {
		observability.DatasetLoads.WithLabelValues("error").Inc()
		return nil, err
	}

	models := l.Models()
	perModel := make([]map[int][]Record, len(models))

	g, ctx := errgroup.WithContext(ctx)
	if l.cfg.Workers > 0 {
		g.SetLimit(l.cfg.Workers)
	}
	for i, model := range models {
		i, model := i, model
		g.Go(func() error {
			data, err := l.loadModel(ctx, model, l.cfg.ModelFiles[model], dataset)
			if err != nil {
				return fmt.Errorf("load model %s: %w", model, err)
			}
			perModel[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		observability.DatasetLoads.WithLabelValues("error").Inc()
		return nil, err
	}

	// Merge deterministically, model by model in sorted order.
	var table Table
	for i, model := range models {
		indices := make([]int, 0, len(perModel[i]))
		for questionIndex := range perModel[i] {
			indices = append(indices, questionIndex)
		}
		sort.Ints(indices)
		for _, questionIndex := range indices {
			for len(table) <= questionIndex {
				table = append(table, QuestionEntry{})
			}
			table[questionIndex][model] = perModel[i][questionIndex]
		}
	}

	l.cached = table
	l.key = key
	observability.DatasetLoads.WithLabelValues("ok").Inc()
	observability.DatasetLoadDuration.Observe(time.Since(start).Seconds())
	l.logger.Info().
		Int("questions", len(table)).
		Int("models", len(models)).
		Msg("dataset loaded")
	return table, nil
}

// loadModel reads all result files of one model, pairing each line with the
// source-dataset record at the same position.
func (l *Loader) loadModel(ctx context.Context, model string, paths []string, dataset []map[string]any) (map[int][]Record, error) {
	data := make(map[int][]Record)
	stems := make(map[string]int)
	for pageIndex, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fileName := fileStem(path)
		stems[fileName]++
		if n := stems[fileName]; n > 1 {
			fileName = fmt.Sprintf("%s_%d", fileName, n)
		}
		answers, err := readJSONLines(path)
		if err != nil {
			return nil, err
		}
		for questionIndex, answer := range answers {
			record := make(Record, len(answer)+4)
			if questionIndex < len(dataset) {
				for key, value := range dataset[questionIndex] {
					record[key] = value
				}
			}
			for key, value := range answer {
				record[key] = value
			}
			record[FieldFileName] = fileName
			record[FieldQuestionIndex] = questionIndex + 1
			record[FieldPageIndex] = pageIndex
			if _, ok := record[FieldLabels]; !ok {
				record[FieldLabels] = []string{}
			}
			data[questionIndex] = append(data[questionIndex], record)
		}
		l.logger.Debug().
			Str("model", model).
			Str("file", fileName).
			Int("records", len(answers)).
			Msg("result file loaded")
	}
	return data, nil
}

// readDataset reads the optional source dataset. A missing file is not an
// error; records simply get no merged dataset fields.
func (l *Loader) readDataset() ([]map[string]any, error) {
	if l.cfg.InputFile == "" {
		return nil, nil
	}
	if _, err := os.Stat(l.cfg.InputFile); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat input file: %w", err)
	}
	return readJSONLines(l.cfg.InputFile)
}

func (l *Loader) cacheKey() string {
	models := l.Models()
	parts := make([]string, 0, len(models)+1)
	parts = append(parts, l.cfg.InputFile)
	for _, model := range models {
		parts = append(parts, model+"="+strings.Join(l.cfg.ModelFiles[model], ","))
	}
	return strings.Join(parts, ";")
}

func readJSONLines(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var records []map[string]any
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, scannerInitialBuffer), scannerMaxBuffer)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return nil, fmt.Errorf("parse %s line %d: %w", path, lineNo, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return records, nil
}

// fileStem is the final path segment without its extension; it becomes the
// record's file_name.
func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
