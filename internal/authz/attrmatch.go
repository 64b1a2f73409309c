package authz

import (
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-bexpr"
)

// attrMatchCache stores compiled go-bexpr evaluators keyed by expression text.
var attrMatchCache = &sync.Map{}

// AttrMatchFunction returns the attrMatch function registered on every
// enforcer build. Model matchers use it to evaluate the v5 extension field
// as a boolean attribute expression, e.g.
//
//	m = g(r.sub, p.sub, r.dom) && r.obj == p.obj && attrMatch(p.v5, r.attrs)
func AttrMatchFunction() func(args ...any) (any, error) {
	return func(args ...any) (any, error) {
		if len(args) != 2 {
			return false, fmt.Errorf("attrMatch requires 2 arguments: expr, attrs")
		}

		expr, ok := args[0].(string)
		if !ok {
			return false, fmt.Errorf("attrMatch: first argument must be string (expr)")
		}

		attrs, ok := args[1].(map[string]any)
		if !ok {
			return false, fmt.Errorf("attrMatch: second argument must be map[string]any (attrs)")
		}

		return EvaluateAttrExpr(expr, attrs), nil
	}
}

// EvaluateAttrExpr evaluates a go-bexpr expression against request attributes.
// An empty expression means no constraint. Invalid syntax and evaluation
// failures (e.g. a missing attribute key) deny.
func EvaluateAttrExpr(expr string, attrs map[string]any) bool {
	if strings.TrimSpace(expr) == "" {
		return true
	}

	if cached, ok := attrMatchCache.Load(expr); ok {
		matches, err := cached.(*bexpr.Evaluator).Evaluate(attrs)
		if err != nil {
			return false
		}
		return matches
	}

	evaluator, err := bexpr.CreateEvaluator(expr)
	if err != nil {
		return false
	}
	attrMatchCache.Store(expr, evaluator)

	matches, err := evaluator.Evaluate(attrs)
	if err != nil {
		return false
	}
	return matches
}
