package inspector

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoader(t *testing.T) *Loader {
	t.Helper()

	input, modelFiles := newTestFiles(t)
	logger := zerolog.Nop()

	return NewLoader(LoaderConfig{InputFile: input, ModelFiles: modelFiles}, &logger)
}

func TestLoaderModels(t *testing.T) {
	loader := newTestLoader(t)

	assert.Equal(t, []string{testModelA, testModelB}, loader.Models())
}

func TestLoadBuildsTable(t *testing.T) {
	loader := newTestLoader(t)

	table, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, table, 3)

	for i, entry := range table {
		assert.Len(t, entry[testModelA], 2, "question %d", i)
		assert.Len(t, entry[testModelB], 1, "question %d", i)
	}
}

func TestLoadProvenanceFields(t *testing.T) {
	loader := newTestLoader(t)

	table, err := loader.Load(context.Background())
	require.NoError(t, err)

	first := table[0][testModelA][0]
	assert.Equal(t, "alpha", first[FieldFileName])
	assert.Equal(t, 1, first[FieldQuestionIndex])
	assert.Equal(t, 0, first[FieldPageIndex])
	assert.Equal(t, []string{}, first[FieldLabels])

	second := table[0][testModelA][1]
	assert.Equal(t, "beta", second[FieldFileName])
	assert.Equal(t, 1, second[FieldPageIndex])

	third := table[2][testModelA][0]
	assert.Equal(t, 3, third[FieldQuestionIndex])
}

func TestLoadMergesDatasetFields(t *testing.T) {
	loader := newTestLoader(t)

	table, err := loader.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2+2?", table[0][testModelA][0]["question"])
	assert.Equal(t, "10-4?", table[2][testModelB][0]["question"])
}

func TestLoadWithoutInputFile(t *testing.T) {
	_, modelFiles := newTestFiles(t)
	logger := zerolog.Nop()
	loader := NewLoader(LoaderConfig{ModelFiles: modelFiles}, &logger)

	table, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, table, 3)
	assert.NotContains(t, table[0][testModelA][0], "question")
}

func TestLoadCachesUntilInvalidated(t *testing.T) {
	input, modelFiles := newTestFiles(t)
	logger := zerolog.Nop()
	loader := NewLoader(LoaderConfig{InputFile: input, ModelFiles: modelFiles}, &logger)

	_, err := loader.Load(context.Background())
	require.NoError(t, err)

	// Removing the files does not matter while the cache holds.
	for _, paths := range modelFiles {
		for _, path := range paths {
			require.NoError(t, os.Remove(path))
		}
	}
	_, err = loader.Load(context.Background())
	require.NoError(t, err)

	loader.Invalidate()
	_, err = loader.Load(context.Background())
	assert.Error(t, err)
}

func TestLoadFileStemCollision(t *testing.T) {
	dir := t.TempDir()
	subA := dir + "/runA"
	subB := dir + "/runB"
	require.NoError(t, os.Mkdir(subA, 0o755))
	require.NoError(t, os.Mkdir(subB, 0o755))

	first := writeLines(t, subA, "run.jsonl", `{"predicted_answer": "1"}`)
	second := writeLines(t, subB, "run.jsonl", `{"predicted_answer": "2"}`)

	logger := zerolog.Nop()
	loader := NewLoader(LoaderConfig{ModelFiles: map[string][]string{testModelA: {first, second}}}, &logger)

	table, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, table, 1)
	require.Len(t, table[0][testModelA], 2)

	assert.Equal(t, "run", table[0][testModelA][0][FieldFileName])
	assert.Equal(t, "run_2", table[0][testModelA][1][FieldFileName])
}

func TestLoadSkipsBlankLines(t *testing.T) {
	dir := t.TempDir()
	path := writeLines(t, dir, "sparse.jsonl",
		`{"predicted_answer": "1"}`,
		``,
		`   `,
		`{"predicted_answer": "2"}`,
	)

	logger := zerolog.Nop()
	loader := NewLoader(LoaderConfig{ModelFiles: map[string][]string{testModelA: {path}}}, &logger)

	table, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, table, 2)
}

func TestLoadMalformedLine(t *testing.T) {
	dir := t.TempDir()
	path := writeLines(t, dir, "broken.jsonl",
		`{"predicted_answer": "1"}`,
		`not json`,
	)

	logger := zerolog.Nop()
	loader := NewLoader(LoaderConfig{ModelFiles: map[string][]string{testModelA: {path}}}, &logger)

	_, err := loader.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLoadParallelWorkers(t *testing.T) {
	input, modelFiles := newTestFiles(t)
	logger := zerolog.Nop()
	loader := NewLoader(LoaderConfig{InputFile: input, ModelFiles: modelFiles, Workers: 2}, &logger)

	table, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, table, 3)
}

func TestSetConfigChangesKey(t *testing.T) {
	input, modelFiles := newTestFiles(t)
	logger := zerolog.Nop()
	loader := NewLoader(LoaderConfig{InputFile: input, ModelFiles: modelFiles}, &logger)

	_, err := loader.Load(context.Background())
	require.NoError(t, err)

	loader.SetConfig(LoaderConfig{ModelFiles: map[string][]string{testModelA: modelFiles[testModelA]}})

	table, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{testModelA}, table.Models())
	assert.NotContains(t, table[0][testModelA][0], "question")
}

func TestFileStem(t *testing.T) {
	assert.Equal(t, "output", fileStem("/tmp/results/output.jsonl"))
	assert.Equal(t, "output", fileStem("output.jsonl"))
	assert.Equal(t, "output-greedy", fileStem("a/output-greedy"))
}
