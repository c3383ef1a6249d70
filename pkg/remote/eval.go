package remote

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultProgramCache = 128

// Evaluator compiles and runs expressions sent by the debug client. Compiled
// programs are cached by source.
type Evaluator struct {
	programs *lru.Cache[string, *vm.Program]
}

// NewEvaluator creates an evaluator caching up to size programs.
func NewEvaluator(size int) *Evaluator {
	if size <= 0 {
		size = defaultProgramCache
	}
	cache, err := lru.New[string, *vm.Program](size)
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	return &Evaluator{programs: cache}
}

// Eval runs code against env. Variables missing from env evaluate to nil.
func (e *Evaluator) Eval(code string, env map[string]any) (any, error) {
	program, err := e.compile(code)
	if err != nil {
		return nil, err
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("evaluating %q: %w", code, err)
	}
	return out, nil
}

// Cached reports how many compiled programs are held.
func (e *Evaluator) Cached() int {
	return e.programs.Len()
}

func (e *Evaluator) compile(code string) (*vm.Program, error) {
	if p, ok := e.programs.Get(code); ok {
		return p, nil
	}
	p, err := expr.Compile(code, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compiling %q: %w", code, err)
	}
	e.programs.Add(code, p)
	return p, nil
}
