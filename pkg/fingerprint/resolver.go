package fingerprint

import (
	"context"
	"slices"
)

// RuleResolver matches banners against static rules in order; the first
// rule that matches wins.
type RuleResolver struct {
	rules []Rule
}

// NewRuleResolver builds a resolver over rules returned by ParseRules.
func NewRuleResolver(rules []Rule) *RuleResolver {
	return &RuleResolver{rules: rules}
}

// Rules returns the number of loaded rules.
func (r *RuleResolver) Rules() int { return len(r.rules) }

func (r *RuleResolver) Resolve(ctx context.Context, in Input) (Result, error) {
	if in.Banner == "" {
		return Result{}, ErrNoMatch
	}
	for i := range r.rules {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		rule := &r.rules[i]
		if len(rule.Ports) > 0 && !slices.Contains(rule.Ports, in.Port) {
			continue
		}
		if rule.matchRegex == nil || !rule.matchRegex.MatchString(in.Banner) {
			continue
		}
		if excluded(rule, in.Banner) {
			continue
		}

		res := Result{
			RuleID:     rule.ID,
			Product:    rule.Product,
			Vendor:     rule.Vendor,
			CPE:        rule.CPE,
			Confidence: rule.PatternStrength,
		}
		if rule.versionRegex != nil {
			if m := rule.versionRegex.FindStringSubmatch(in.Banner); len(m) >= 2 && m[1] != "" {
				res.Version = m[1]
				res.Confidence = 1.0
			}
		}
		return res, nil
	}
	return Result{}, ErrNoMatch
}

func excluded(rule *Rule, banner string) bool {
	for _, re := range rule.excludeRegex {
		if re.MatchString(banner) {
			return true
		}
	}
	return false
}
