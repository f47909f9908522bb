package cel

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/google/cel-go/cel"

	"github.com/Sentinel-Gate/wiregate/pkg/http1"
)

// Rule is an http1.AccessRule backed by a compiled expression. A request
// is allowed when the expression yields true.
type Rule struct {
	expr   string
	eval   *Evaluator
	prg    cel.Program
	logger *slog.Logger
}

// NewRule compiles expr.
func NewRule(eval *Evaluator, expr string, logger *slog.Logger) (*Rule, error) {
	prg, err := eval.Compile(expr)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Rule{expr: expr, eval: eval, prg: prg, logger: logger}, nil
}

// Expression returns the source expression.
func (r *Rule) Expression() string { return r.expr }

// Allow implements http1.AccessRule.
func (r *Rule) Allow(ctx context.Context, remote netip.Addr, req *http1.Request) (bool, error) {
	ok, err := r.eval.Evaluate(ctx, r.prg, InputFromRequest(remote, req))
	if err != nil {
		r.logger.Debug("access rule evaluation failed", "rule", r.expr, "path", req.Path(), "error", err)
		return false, fmt.Errorf("rule %q: %w", r.expr, err)
	}
	return ok, nil
}

var _ http1.AccessRule = (*Rule)(nil)
