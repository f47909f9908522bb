// Package cel evaluates CEL access expressions against HTTP requests.
package cel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
)

// Limits applied to every access expression.
const (
	maxExpressionLength = 1024
	maxNestingDepth     = 50
	maxCostBudget       = 100_000
	// comprehension iterations between cancellation checks
	interruptCheckFreq = 100
	evalTimeout        = 5 * time.Second
)

// Evaluator compiles and evaluates access expressions.
type Evaluator struct {
	env *cel.Env
}

// NewEvaluator creates an evaluator over the request environment.
func NewEvaluator() (*Evaluator, error) {
	env, err := NewRequestEnvironment()
	if err != nil {
		return nil, fmt.Errorf("request environment: %w", err)
	}
	return &Evaluator{env: env}, nil
}

// Compile checks the size limits of expr, type-checks it and builds a
// cost-limited program. The expression must yield bool (or dyn, checked
// at evaluation).
func (e *Evaluator) Compile(expr string) (cel.Program, error) {
	if err := checkLimits(expr); err != nil {
		return nil, err
	}

	ast, issues := e.env.Compile(expr)
	if err := issues.Err(); err != nil {
		return nil, fmt.Errorf("invalid CEL expression: %w", err)
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("invalid CEL expression: yields %s, want bool", out)
	}

	prg, err := e.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
		cel.InterruptCheckFrequency(interruptCheckFreq),
	)
	if err != nil {
		return nil, fmt.Errorf("build program: %w", err)
	}
	return prg, nil
}

// ValidateExpression reports whether expr would compile.
func (e *Evaluator) ValidateExpression(expr string) error {
	_, err := e.Compile(expr)
	return err
}

func checkLimits(expr string) error {
	switch {
	case expr == "":
		return errors.New("expression is empty")
	case len(expr) > maxExpressionLength:
		return fmt.Errorf("expression too long: %d bytes, limit %d", len(expr), maxExpressionLength)
	}

	depth, deepest := 0, 0
	for _, ch := range expr {
		switch ch {
		case '(', '[', '{':
			depth++
			deepest = max(deepest, depth)
		case ')', ']', '}':
			depth--
		}
	}
	if deepest > maxNestingDepth {
		return fmt.Errorf("expression nesting too deep: %d, limit %d", deepest, maxNestingDepth)
	}
	return nil
}

// Evaluate runs prg against in, bounded by ctx and evalTimeout.
func (e *Evaluator) Evaluate(ctx context.Context, prg cel.Program, in Input) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, evalTimeout)
	defer cancel()

	val, _, err := prg.ContextEval(ctx, in.activation())
	if err != nil {
		return false, fmt.Errorf("evaluate: %w", err)
	}
	allowed, ok := val.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression yielded %T, want bool", val.Value())
	}
	return allowed, nil
}
