package inspector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSeparators = Separators{
	CodeBegin:   "{code_begin}",
	CodeEnd:     "{code_end}",
	OutputBegin: "{code_output_begin}",
	OutputEnd:   "{code_output_end}",
}

func TestParseAnswerPlainText(t *testing.T) {
	fragments := ParseAnswer("The answer is 4.", testSeparators)

	require.Len(t, fragments, 1)
	assert.Equal(t, "The answer is 4.", fragments[0].Explanation)
	assert.Nil(t, fragments[0].Code)
	assert.Nil(t, fragments[0].Output)
}

func TestParseAnswerEmpty(t *testing.T) {
	assert.Empty(t, ParseAnswer("", testSeparators))
}

func TestParseAnswerCodeWithOutput(t *testing.T) {
	answer := "Let me compute.{code_begin}print(2+2){code_end}{code_output_begin}4{code_output_end}So the answer is 4."

	fragments := ParseAnswer(answer, testSeparators)

	require.Len(t, fragments, 2)
	assert.Equal(t, "Let me compute.", fragments[0].Explanation)
	require.NotNil(t, fragments[0].Code)
	assert.Equal(t, "print(2+2)", *fragments[0].Code)
	require.NotNil(t, fragments[0].Output)
	assert.Equal(t, "4", *fragments[0].Output)
	assert.False(t, fragments[0].WrongCodeBlock)

	assert.Equal(t, "So the answer is 4.", fragments[1].Explanation)
	assert.Nil(t, fragments[1].Code)
}

func TestParseAnswerCodeWithoutOutput(t *testing.T) {
	answer := "Setup:{code_begin}x = 1{code_end}done"

	fragments := ParseAnswer(answer, testSeparators)

	require.Len(t, fragments, 2)
	require.NotNil(t, fragments[0].Code)
	assert.Equal(t, "x = 1", *fragments[0].Code)
	assert.Nil(t, fragments[0].Output)
	assert.Equal(t, "done", fragments[1].Explanation)
}

func TestParseAnswerMultipleBlocks(t *testing.T) {
	answer := "First.{code_begin}a = 1{code_end}{code_output_begin}ok{code_output_end}" +
		"Then.{code_begin}b = 2{code_end}{code_output_begin}done{code_output_end}"

	fragments := ParseAnswer(answer, testSeparators)

	require.Len(t, fragments, 2)
	assert.Equal(t, "First.", fragments[0].Explanation)
	assert.Equal(t, "a = 1", *fragments[0].Code)
	assert.Equal(t, "ok", *fragments[0].Output)
	assert.Equal(t, "Then.", fragments[1].Explanation)
	assert.Equal(t, "b = 2", *fragments[1].Code)
	assert.Equal(t, "done", *fragments[1].Output)
}

func TestParseAnswerOutputNotAdjacent(t *testing.T) {
	// Text between the code end and the output begin breaks the pair; the
	// output span stays part of the following explanation.
	answer := "{code_begin}x{code_end}gap{code_output_begin}4{code_output_end}"

	fragments := ParseAnswer(answer, testSeparators)

	require.Len(t, fragments, 2)
	assert.Nil(t, fragments[0].Output)
	assert.Contains(t, fragments[1].Explanation, "gap")
}

func TestParseAnswerUnterminatedCodeBlock(t *testing.T) {
	answer := "Think.{code_begin}while True: pass"

	fragments := ParseAnswer(answer, testSeparators)

	require.Len(t, fragments, 1)
	assert.Equal(t, "Think.", fragments[0].Explanation)
	require.NotNil(t, fragments[0].Code)
	assert.Equal(t, "while True: pass", *fragments[0].Code)
	require.NotNil(t, fragments[0].Output)
	assert.Equal(t, UnfinishedCodeBlock, *fragments[0].Output)
	assert.True(t, fragments[0].WrongCodeBlock)
}

func TestParseAnswerUnterminatedAfterCompleteBlock(t *testing.T) {
	answer := "{code_begin}a = 1{code_end}next{code_begin}b ="

	fragments := ParseAnswer(answer, testSeparators)

	require.Len(t, fragments, 2)
	assert.Equal(t, "a = 1", *fragments[0].Code)
	assert.True(t, fragments[1].WrongCodeBlock)
	assert.Equal(t, "b =", *fragments[1].Code)
	assert.Equal(t, "next", fragments[1].Explanation)
}

func TestParseAnswerMultilineCode(t *testing.T) {
	answer := "{code_begin}\nfor i in range(3):\n    print(i)\n{code_end}"

	fragments := ParseAnswer(answer, testSeparators)

	require.Len(t, fragments, 1)
	assert.Equal(t, "for i in range(3):\n    print(i)", *fragments[0].Code)
}
