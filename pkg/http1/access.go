package http1

import (
	"context"
	"net/netip"
)

// AccessRule decides whether a request may reach its handler. A denied
// request is answered with 403 and its connection is closed.
type AccessRule interface {
	Allow(ctx context.Context, remote netip.Addr, r *Request) (bool, error)
}

// AccessRuleFunc adapts a function to AccessRule.
type AccessRuleFunc func(ctx context.Context, remote netip.Addr, r *Request) (bool, error)

// Allow implements AccessRule.
func (f AccessRuleFunc) Allow(ctx context.Context, remote netip.Addr, r *Request) (bool, error) {
	return f(ctx, remote, r)
}

// AllRules returns a rule that allows a request only if every non-nil rule
// does. Evaluation stops at the first denial or error.
func AllRules(rules ...AccessRule) AccessRule {
	var kept []AccessRule
	for _, r := range rules {
		if r != nil {
			kept = append(kept, r)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return AccessRuleFunc(func(ctx context.Context, remote netip.Addr, r *Request) (bool, error) {
		for _, rule := range kept {
			ok, err := rule.Allow(ctx, remote, r)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	})
}
