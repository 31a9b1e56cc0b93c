package inspector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectBaseModelUnknown(t *testing.T) {
	session, _ := newTestSession(t)

	assert.Error(t, session.SelectBaseModel(context.Background(), "missing"))
	assert.Equal(t, testModelA, session.BaseModel())
}

func TestSelectBaseModelClearsRowsAndLog(t *testing.T) {
	session, pipeline := newTestSession(t)

	session.SetRowExcluded("judgement", true)
	require.NoError(t, pipeline.Filter(context.Background(), session, FilterFiles, "data.modelA.score > 0.5", false))
	require.NotEmpty(t, session.FilterLog())

	require.NoError(t, session.SelectBaseModel(context.Background(), testModelB))

	assert.Empty(t, session.ExcludedRows())
	assert.Empty(t, session.FilterLog())
	assert.Len(t, session.Table(), 3)
}

func TestReloadRestoresFullTable(t *testing.T) {
	session, pipeline := newTestSession(t)

	require.NoError(t, pipeline.Filter(context.Background(), session, FilterFiles, "data.modelA.score > 0.85", false))
	require.Len(t, session.Table(), 1)

	require.NoError(t, session.Reload(context.Background()))

	assert.Len(t, session.Table(), 3)
	assert.Empty(t, session.FilterLog())
}

func TestWorkingTableIsEnriched(t *testing.T) {
	session, _ := newTestSession(t)

	// q0: both files correct; q1: one wrong, one correct; q2: one missing
	// answer, one correct.
	table := session.Table()
	assert.Equal(t, 1.0, table[0][testModelA][0][StatCorrectResponses])
	assert.Equal(t, 0.5, table[1][testModelA][0][StatCorrectResponses])
	assert.Equal(t, 0.5, table[1][testModelA][0][StatWrongResponses])
	assert.Equal(t, 0.5, table[2][testModelA][0][StatNoResponse])
}

func TestWorkingTableMutationsDoNotLeakIntoCache(t *testing.T) {
	session, _ := newTestSession(t)

	session.Table()[0][testModelA][0]["score"] = 123.0

	require.NoError(t, session.SelectBaseModel(context.Background(), testModelA))
	assert.Equal(t, 0.9, session.Table()[0][testModelA][0]["score"])
}

func TestSessionLabels(t *testing.T) {
	session, _ := newTestSession(t)

	assert.True(t, session.AddLabel("hard"))
	assert.False(t, session.AddLabel("hard"))
	assert.False(t, session.AddLabel("  "))
	assert.True(t, session.AddLabel("reviewed"))
	assert.Equal(t, []string{"hard", "reviewed"}, session.Labels())
}

func TestChangeLabelUnknown(t *testing.T) {
	session, _ := newTestSession(t)

	_, err := session.ChangeLabel(-1, "", "", "hard", false)
	assert.Error(t, err)
}

func TestChangeLabelAllQuestions(t *testing.T) {
	session, _ := newTestSession(t)
	session.AddLabel("hard")

	changed, err := session.ChangeLabel(-1, "", "", "hard", false)
	require.NoError(t, err)
	assert.Equal(t, 6, changed)

	for _, entry := range session.Table() {
		for _, record := range entry[testModelA] {
			assert.Contains(t, record.Labels(), "hard")
		}
		for _, record := range entry[testModelB] {
			assert.NotContains(t, record.Labels(), "hard")
		}
	}
}

func TestChangeLabelScoped(t *testing.T) {
	session, _ := newTestSession(t)
	session.AddLabel("hard")

	changed, err := session.ChangeLabel(1, testModelA, "alpha", "hard", false)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	assert.Equal(t, []string{"hard"}, session.Table()[1][testModelA][0].Labels())
	assert.Empty(t, session.Table()[0][testModelA][0].Labels())

	changed, err = session.ChangeLabel(1, testModelA, "alpha", "hard", true)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
}

func TestChangeLabelIdempotent(t *testing.T) {
	session, _ := newTestSession(t)
	session.AddLabel("hard")

	_, err := session.ChangeLabel(-1, "", "", "hard", false)
	require.NoError(t, err)

	changed, err := session.ChangeLabel(-1, "", "", "hard", false)
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestRowSets(t *testing.T) {
	session, _ := newTestSession(t)

	session.SetRowExcluded("judgement", true)
	session.SetRowEditable("question", true)
	session.SetRowCompared("score", true)

	assert.Equal(t, []string{"judgement"}, session.ExcludedRows())
	assert.True(t, session.RowExcluded("judgement"))
	assert.Equal(t, []string{"question"}, session.EditableRows())
	assert.Equal(t, []string{"score"}, session.ComparedRows())

	session.SetRowExcluded("judgement", false)
	assert.Empty(t, session.ExcludedRows())
	assert.False(t, session.RowExcluded("judgement"))
}

func TestAddStatInline(t *testing.T) {
	session, _ := newTestSession(t)

	require.NoError(t, session.AddStat(ScopeInline, "samples", "len(datas)"))

	for _, entry := range session.Table() {
		for _, record := range entry[testModelA] {
			assert.Equal(t, 2, record["samples"])
		}
	}
	assert.Equal(t, map[string]string{"samples": "len(datas)"}, session.StatSources(ScopeInline))
}

func TestAddStatValidation(t *testing.T) {
	session, _ := newTestSession(t)

	assert.Error(t, session.AddStat(ScopeInline, "  ", "len(datas)"))
	assert.Error(t, session.AddStat(ScopeInline, "bad", "len(datas) >"))
	assert.Error(t, session.AddStat(StatScope("weekly"), "bad", "len(datas)"))
}

func TestAddStatGeneral(t *testing.T) {
	session, _ := newTestSession(t)

	require.NoError(t, session.AddStat(ScopeGeneral, "questions", "len(datas)"))

	stats := session.GeneralStats()
	assert.Equal(t, 3, stats["questions"])
	assert.Equal(t, 3, stats[StatDatasetSize])
	assert.Equal(t, 6, stats[StatOverallSamples])
	assert.Equal(t, 2.0, stats[StatGenerationsPerSample])
}

func TestDeleteStatHidesColumn(t *testing.T) {
	session, _ := newTestSession(t)

	require.NoError(t, session.AddStat(ScopeInline, "samples", "len(datas)"))
	session.DeleteStat(ScopeInline, "samples")

	assert.Empty(t, session.StatSources(ScopeInline))
	assert.NotContains(t, session.DetailedRowKeys(), "samples")

	// Re-adding brings the column back.
	require.NoError(t, session.AddStat(ScopeInline, "samples", "len(datas)"))
	assert.Equal(t, 2, session.Table()[0][testModelA][0]["samples"])
}

func TestDetailedRowKeys(t *testing.T) {
	session, _ := newTestSession(t)

	keys := session.DetailedRowKeys()

	assert.Contains(t, keys, FieldQuestion)
	assert.Contains(t, keys, "score")
	assert.Contains(t, keys, FieldJudgement)
	assert.NotContains(t, keys, FieldQuestionIndex)
	assert.NotContains(t, keys, FieldPageIndex)
	assert.NotContains(t, keys, StatCorrectResponses)
	assert.NotContains(t, keys, StatNoResponse)
}
