package fingerprint

import (
	_ "embed"
	"fmt"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed data/rules.yaml
var builtinRulesYAML []byte

const defaultPatternStrength = 0.8

// Rule maps a banner pattern to a product. Match and VersionExtraction are
// case-insensitive regular expressions; VersionExtraction needs one
// capturing group.
type Rule struct {
	ID                string   `yaml:"id" validate:"required"`
	Product           string   `yaml:"product" validate:"required"`
	Vendor            string   `yaml:"vendor" validate:"required"`
	CPE               string   `yaml:"cpe"`
	Match             string   `yaml:"match" validate:"required"`
	VersionExtraction string   `yaml:"version_extraction"`
	ExcludePatterns   []string `yaml:"exclude_patterns"`
	// Ports restricts the rule to these ports; empty matches any port.
	Ports []int `yaml:"ports" validate:"dive,min=1,max=65535"`
	// PatternStrength is the confidence of a versionless match.
	PatternStrength float64 `yaml:"pattern_strength" validate:"gte=0,lte=1"`

	matchRegex   *regexp.Regexp
	versionRegex *regexp.Regexp
	excludeRegex []*regexp.Regexp
}

var validate = validator.New()

// ParseRules decodes a rule list, either a bare sequence or a document
// with a top-level rules key, and compiles its expressions.
func ParseRules(data []byte) ([]Rule, error) {
	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil || len(rules) == 0 {
		var doc struct {
			Rules []Rule `yaml:"rules"`
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse fingerprint rules: %w", err)
		}
		rules = doc.Rules
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("parse fingerprint rules: no rules found")
	}

	seen := make(map[string]struct{}, len(rules))
	for i := range rules {
		r := &rules[i]
		if err := validate.Struct(r); err != nil {
			return nil, fmt.Errorf("fingerprint rule %d (%s): %w", i, r.ID, err)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("fingerprint rule %d: duplicate id %q", i, r.ID)
		}
		seen[r.ID] = struct{}{}
		if err := r.compile(); err != nil {
			return nil, fmt.Errorf("fingerprint rule %s: %w", r.ID, err)
		}
	}
	return rules, nil
}

func (r *Rule) compile() error {
	var err error
	if r.matchRegex, err = regexp.Compile("(?i)" + r.Match); err != nil {
		return fmt.Errorf("match: %w", err)
	}
	if r.VersionExtraction != "" {
		if r.versionRegex, err = regexp.Compile("(?i)" + r.VersionExtraction); err != nil {
			return fmt.Errorf("version_extraction: %w", err)
		}
		if r.versionRegex.NumSubexp() < 1 {
			return fmt.Errorf("version_extraction needs a capturing group")
		}
	}
	r.excludeRegex = r.excludeRegex[:0]
	for _, p := range r.ExcludePatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return fmt.Errorf("exclude pattern %q: %w", p, err)
		}
		r.excludeRegex = append(r.excludeRegex, re)
	}
	if r.PatternStrength == 0 {
		r.PatternStrength = defaultPatternStrength
	}
	return nil
}

var (
	builtinOnce     sync.Once
	builtinResolver *RuleResolver
)

// Builtin returns a resolver over the rules shipped with the console.
func Builtin() *RuleResolver {
	builtinOnce.Do(func() {
		rules, err := ParseRules(builtinRulesYAML)
		if err != nil {
			panic(fmt.Sprintf("fingerprint: builtin rules: %v", err))
		}
		builtinResolver = NewRuleResolver(rules)
	})
	return builtinResolver
}
