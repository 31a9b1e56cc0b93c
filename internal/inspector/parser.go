package inspector

import (
	"regexp"
	"strings"
)

// Separators configure how a raw generation is segmented into explanation,
// code and code-output spans.
type Separators struct {
	CodeBegin   string
	CodeEnd     string
	OutputBegin string
	OutputEnd   string
}

// Fragment is one parsed piece of a model answer. Code and Output are nil
// when the fragment carries none.
type Fragment struct {
	Explanation    string  `json:"explanation"`
	Code           *string `json:"code"`
	Output         *string `json:"output"`
	WrongCodeBlock bool    `json:"wrong_code_block,omitempty"`
}

// UnfinishedCodeBlock marks the output of a code span whose end separator
// never appeared.
const UnfinishedCodeBlock = "code_block was not finished"

// ParseAnswer segments a raw model generation into an ordered sequence of
// {explanation, code, output} fragments. Code spans are matched non-greedily
// and may cover multiple lines; an output span counts only when it
// immediately follows its code span. A trailing unmatched code-begin token
// yields a final fragment flagged as a wrong code block.
func ParseAnswer(answer string, seps Separators) []Fragment {
	codeBegin := regexp.QuoteMeta(seps.CodeBegin)
	codeEnd := regexp.QuoteMeta(seps.CodeEnd)
	outputBegin := regexp.QuoteMeta(seps.OutputBegin)
	outputEnd := regexp.QuoteMeta(seps.OutputEnd)

	codeRe := regexp.MustCompile(`(?s)` + codeBegin + `(.*?)` + codeEnd)
	pairRe := regexp.MustCompile(`(?s)` + codeBegin + `(.*?)` + codeEnd + `\s*` + outputBegin + `(.*?)` + outputEnd)

	codeMatches := codeRe.FindAllStringSubmatchIndex(answer, -1)
	pairMatches := pairRe.FindAllStringSubmatchIndex(answer, -1)

	var fragments []Fragment
	lastIndex := 0
	for _, code := range codeMatches {
		explanation := strings.TrimSpace(answer[lastIndex:code[0]])
		codeText := strings.TrimSpace(answer[code[2]:code[3]])
		var output *string
		lastIndex = code[1]
		if len(pairMatches) > 0 && pairMatches[0][0] == code[0] {
			pair := pairMatches[0]
			pairMatches = pairMatches[1:]
			outputText := strings.TrimSpace(answer[pair[4]:pair[5]])
			output = &outputText
			lastIndex = pair[1]
		}
		fragments = append(fragments, Fragment{
			Explanation: explanation,
			Code:        &codeText,
			Output:      output,
		})
	}

	if lastIndex < len(answer) {
		trailing := strings.TrimSpace(answer[lastIndex:])
		if idx := strings.Index(trailing, seps.CodeBegin); idx >= 0 {
			code := trailing[idx+len(seps.CodeBegin):]
			output := UnfinishedCodeBlock
			fragments = append(fragments, Fragment{
				Explanation:    strings.TrimSpace(trailing[:idx]),
				Code:           &code,
				Output:         &output,
				WrongCodeBlock: true,
			})
			trailing = ""
		}
		if trailing != "" {
			fragments = append(fragments, Fragment{Explanation: trailing})
		}
	}
	return fragments
}
