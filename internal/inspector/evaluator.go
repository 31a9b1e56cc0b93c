package inspector

import (
	"fmt"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ErrorAccumulator counts distinct runtime failures produced while evaluating
// a compiled expression over a batch of records. Batch operations never abort
// on a bad record; the accumulated summary is surfaced once afterwards.
type ErrorAccumulator struct {
	counts map[string]int
}

func NewErrorAccumulator() *ErrorAccumulator {
	return &ErrorAccumulator{counts: make(map[string]int)}
}

func (a *ErrorAccumulator) Record(message string) {
	a.counts[message]++
}

func (a *ErrorAccumulator) Empty() bool {
	return len(a.counts) == 0
}

// Counts returns the message -> occurrence map.
func (a *ErrorAccumulator) Counts() map[string]int {
	return a.counts
}

// Messages returns the distinct failure messages, sorted for stable reporting.
func (a *ErrorAccumulator) Messages() []string {
	messages := make([]string, 0, len(a.counts))
	for message := range a.counts {
		messages = append(messages, message)
	}
	sort.Strings(messages)
	return messages
}

// Evaluate runs a compiled expression against env and returns its value.
// Any runtime failure (error or panic) yields def instead, and the failure
// message is recorded in acc unless its last token names an entry of allowed.
// The allow-list suppresses noise from expressions that legitimately
// reference a model absent from the current comparison.
func Evaluate(prog *vm.Program, env map[string]any, def any, allowed []string, acc *ErrorAccumulator) (out any) {
	if prog == nil {
		return def
	}
	defer func() {
		if r := recover(); r != nil {
			record(fmt.Sprint(r), allowed, acc)
			out = def
		}
	}()
	result, err := expr.Run(prog, env)
	if err != nil {
		record(err.Error(), allowed, acc)
		return def
	}
	return result
}

func record(message string, allowed []string, acc *ErrorAccumulator) {
	if acc == nil {
		return
	}
	fields := strings.Fields(message)
	if len(fields) > 0 {
		last := strings.Trim(fields[len(fields)-1], `'"()[]`)
		for _, name := range allowed {
			if last == name {
				return
			}
		}
	}
	acc.Record(message)
}
