package inspector

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Expression environment bindings. Filter, sort and update expressions see one
// record (or one question entry) as "data"; custom statistics see the record
// group as "datas"; the selected base model is always bound as
// "base_generation".
const (
	envData           = "data"
	envDatas          = "datas"
	envBaseGeneration = "base_generation"
)

// segmentSeparator splits the final line of a filter into independently
// evaluated predicates, all of which must pass. Inside a segment the usual
// "and"/"or" operators apply.
const segmentSeparator = "&&"

// CompileExpression turns user-authored text into a compiled program. Every
// line but the last is a preceding statement (a "let" binding), the last line
// is the value expression. A malformed source fails here, before any record
// is touched.
func CompileExpression(text string) (*vm.Program, error) {
	lines := splitLines(text)
	if len(lines) == 0 {
		return nil, fmt.Errorf("empty expression")
	}
	return compile(lines[:len(lines)-1], lines[len(lines)-1])
}

// CompileFilter compiles a filter expression into one program per
// "&&"-separated segment of the final line. Segments share the preceding
// statements.
func CompileFilter(text string) ([]*vm.Program, error) {
	lines := splitLines(text)
	if len(lines) == 0 {
		return nil, fmt.Errorf("empty expression")
	}
	statements, last := lines[:len(lines)-1], lines[len(lines)-1]
	segments := strings.Split(last, segmentSeparator)
	programs := make([]*vm.Program, 0, len(segments))
	for _, segment := range segments {
		prog, err := compile(statements, segment)
		if err != nil {
			return nil, err
		}
		programs = append(programs, prog)
	}
	return programs, nil
}

func compile(statements []string, final string) (*vm.Program, error) {
	parts := make([]string, 0, len(statements)+1)
	parts = append(parts, statements...)
	parts = append(parts, strings.TrimSpace(final))
	source := strings.Join(parts, ";\n")
	prog, err := expr.Compile(source, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compile expression: %w", err)
	}
	return prog, nil
}

func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// recordEnv builds the evaluation environment for a single-record expression.
func recordEnv(data any, baseModel string) map[string]any {
	return map[string]any{
		envData:           data,
		envBaseGeneration: baseModel,
	}
}

// groupEnv builds the evaluation environment for a custom statistic.
func groupEnv(datas any, baseModel string) map[string]any {
	return map[string]any{
		envDatas:          datas,
		envBaseGeneration: baseModel,
	}
}
