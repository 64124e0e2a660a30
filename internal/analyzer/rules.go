// Package analyzer implements the Rule Engine and Intervention Generator
// (§4.5): a pure function mapping raw session-log text to typed anomalies,
// and a confidence-bucketed mapper from anomalies to responses.
package analyzer

import "regexp"

// RuleMatch is the Rule Engine's output for a matching line. Confidence
// feeds the Intervention Generator's bucketing (GenerateResponse) and
// reflects how reliably the pattern signals a genuine, actionable anomaly
// rather than incidental log noise.
type RuleMatch struct {
	Priority       string
	AnomalyType    string
	Prompt         string
	SuggestedAgent string
	Context        map[string]any
	Confidence     float64
}

// Rule is a single ordered rule: if Match returns true, Build produces the
// RuleMatch.
type Rule struct {
	Name  string
	Match func(text string) bool
	Build func(text string) RuleMatch
}

var failedPattern = regexp.MustCompile(`(?i)\bFAILED\b`)
var errorPattern = regexp.MustCompile(`(?i)\berror\b`)
var timeoutPattern = regexp.MustCompile(`(?i)\btimed?\s*out\b`)

// DefaultRules is the built-in, ordered rule set. New rules are added
// without changing callers (§4.5): append here.
var DefaultRules = []Rule{
	{
		Name:  "test_failed",
		Match: func(text string) bool { return failedPattern.MatchString(text) },
		Build: func(text string) RuleMatch {
			return RuleMatch{
				Priority:       "high",
				AnomalyType:    "test_failure",
				Prompt:         "A test failed: " + text,
				SuggestedAgent: "test-engineer",
				Confidence:     0.95,
			}
		},
	},
	{
		Name:  "timeout",
		Match: func(text string) bool { return timeoutPattern.MatchString(text) },
		Build: func(text string) RuleMatch {
			return RuleMatch{
				Priority:       "medium",
				AnomalyType:    "operation_timeout",
				Prompt:         "An operation timed out: " + text,
				SuggestedAgent: "debugger",
				Confidence:     0.8,
			}
		},
	},
	{
		Name:  "error",
		Match: func(text string) bool { return errorPattern.MatchString(text) },
		Build: func(text string) RuleMatch {
			return RuleMatch{
				Priority:    "medium",
				AnomalyType: "session_error",
				Prompt:      "An error was logged: " + text,
				Confidence:  0.55,
			}
		},
	},
}

// Analyze is the pure function analyze(text) -> RuleMatch? from §4.5.
// Rules are evaluated in order; the first match wins.
func Analyze(text string, rules []Rule) *RuleMatch {
	for _, r := range rules {
		if r.Match(text) {
			m := r.Build(text)
			return &m
		}
	}
	return nil
}
