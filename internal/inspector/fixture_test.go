package inspector

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testModelA = "modelA"
	testModelB = "modelB"
)

func writeLines(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	content := ""
	for i, line := range lines {
		if i > 0 {
			content += "\n"
		}
		content += line
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

// newTestFiles lays out a three-question dataset with two result files for
// modelA and one for modelB.
func newTestFiles(t *testing.T) (input string, modelFiles map[string][]string) {
	t.Helper()

	dir := t.TempDir()
	input = writeLines(t, dir, "input.jsonl",
		`{"question": "2+2?"}`,
		`{"question": "3*3?"}`,
		`{"question": "10-4?"}`,
	)
	alpha := writeLines(t, dir, "alpha.jsonl",
		`{"predicted_answer": "4", "judgement": "Judgement: Yes", "score": 0.9}`,
		`{"predicted_answer": "8", "judgement": "Judgement: No", "score": 0.2}`,
		`{"predicted_answer": null, "judgement": "", "score": 0.5}`,
	)
	beta := writeLines(t, dir, "beta.jsonl",
		`{"predicted_answer": "4", "judgement": "Judgement: Yes", "score": 0.7}`,
		`{"predicted_answer": "9", "judgement": "Judgement: Yes", "score": 0.8}`,
		`{"predicted_answer": "6", "judgement": "Judgement: Yes", "score": 0.6}`,
	)
	gamma := writeLines(t, dir, "gamma.jsonl",
		`{"predicted_answer": "4", "judgement": "Judgement: Yes", "score": 0.4}`,
		`{"predicted_answer": "9", "judgement": "Judgement: Yes", "score": 0.5}`,
		`{"predicted_answer": "6", "judgement": "Judgement: Yes", "score": 0.99}`,
	)

	return input, map[string][]string{
		testModelA: {alpha, beta},
		testModelB: {gamma},
	}
}

// newTestSession loads the fixture files and selects modelA as the base.
func newTestSession(t *testing.T) (*Session, *Pipeline) {
	t.Helper()

	input, modelFiles := newTestFiles(t)
	logger := zerolog.Nop()
	loader := NewLoader(LoaderConfig{InputFile: input, ModelFiles: modelFiles}, &logger)
	engine := NewEngine(&logger)
	session := NewSession(loader, engine, &logger)
	require.NoError(t, session.SelectBaseModel(context.Background(), testModelA))

	return session, NewPipeline(engine, &logger)
}
