package schema

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/facts"
)

// Op is a comparison operator used by rule conditions.
type Op string

const (
	OpGreater   Op = ">"
	OpGreaterEq Op = ">="
	OpLess      Op = "<"
	OpLessEq    Op = "<="
	OpEqual     Op = "=="
)

// Compare applies the operator as "v op threshold".
func (o Op) Compare(v, threshold float64) bool {
	switch o {
	case OpGreater:
		return v > threshold
	case OpGreaterEq:
		return v >= threshold
	case OpLess:
		return v < threshold
	case OpLessEq:
		return v <= threshold
	case OpEqual:
		return v == threshold
	default:
		return false
	}
}

var builtins = map[string]Op{
	"swrlb:greaterThan":        OpGreater,
	"swrlb:greaterThanOrEqual": OpGreaterEq,
	"swrlb:lessThan":           OpLess,
	"swrlb:lessThanOrEqual":    OpLessEq,
	"swrlb:equal":              OpEqual,
}

// Condition is one numeric comparison in a rule body. Predicate is empty
// when the compared variable is not bound by a data atom.
type Condition struct {
	Predicate facts.PredicateID `json:"predicate,omitempty"`
	Variable  string            `json:"variable"`
	Op        Op                `json:"op"`
	Threshold float64           `json:"threshold"`
}

// Rule is one parsed block of the rule corpus.
type Rule struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
	Text        string `json:"rule"`
	Explanation string `json:"explanation,omitempty"`

	Conditions []Condition `json:"conditions"`

	// SetsRiskLevel is true when the head asserts hasRiskLevel; Produces is
	// the asserted level.
	SetsRiskLevel bool             `json:"sets_risk_level"`
	Produces      domain.RiskLevel `json:"produces"`
	// Alert is AlertRaised when the head asserts an early-warning status.
	Alert domain.AlertStatus `json:"alert_status"`
	// Mentions lists every risk level named anywhere in the rule text.
	Mentions []domain.RiskLevel `json:"mentions,omitempty"`

	Precedence int `json:"precedence"`
}

// ThresholdPredicate is the predicate of the primary condition.
func (r Rule) ThresholdPredicate() facts.PredicateID {
	if len(r.Conditions) == 0 {
		return ""
	}
	return r.Conditions[0].Predicate
}

// ComparisonOp is the operator of the primary condition.
func (r Rule) ComparisonOp() Op {
	if len(r.Conditions) == 0 {
		return ""
	}
	return r.Conditions[0].Op
}

// ThresholdValue is the threshold of the primary condition.
func (r Rule) ThresholdValue() float64 {
	if len(r.Conditions) == 0 {
		return 0
	}
	return r.Conditions[0].Threshold
}

// MentionsLevel reports whether the rule text names level l.
func (r Rule) MentionsLevel(l domain.RiskLevel) bool {
	for _, m := range r.Mentions {
		if m == l {
			return true
		}
	}
	return false
}

var (
	ruleHeaderRe = regexp.MustCompile(`(?m)^#\s*Rule\s+(\d+)\s*:\s*(.*)$`)
	atomRe       = regexp.MustCompile(`([A-Za-z_]\w*(?::[A-Za-z_]\w*)?)\s*\(([^()]*)\)`)
	arrowRe      = regexp.MustCompile(`\s*(?:->|→)\s*`)
	alertRe      = regexp.MustCompile(`(?i)alert`)

	// Accepted spellings of the three level individuals: HighRisk, High_Risk,
	// "High Risk", high-risk and so on. ModerateRisk is an alias of MediumRisk.
	levelVariants = []struct {
		level domain.RiskLevel
		re    *regexp.Regexp
	}{
		{domain.RiskHigh, regexp.MustCompile(`(?i)\bhigh[\s_-]?risk\b`)},
		{domain.RiskModerate, regexp.MustCompile(`(?i)\b(?:medium|moderate)[\s_-]?risk\b`)},
		{domain.RiskLow, regexp.MustCompile(`(?i)\blow[\s_-]?risk\b`)},
	}
)

// MatchRiskLevel returns the level whose variant spells s exactly.
func MatchRiskLevel(s string) (domain.RiskLevel, bool) {
	s = strings.TrimSpace(s)
	for _, v := range levelVariants {
		if loc := v.re.FindStringIndex(s); loc != nil && loc[0] == 0 && loc[1] == len(s) {
			return v.level, true
		}
	}
	return 0, false
}

// mentionedLevels returns the levels named anywhere in text, High first.
func mentionedLevels(text string) []domain.RiskLevel {
	var out []domain.RiskLevel
	for _, v := range levelVariants {
		if v.re.MatchString(text) {
			out = append(out, v.level)
		}
	}
	return out
}

// ParseRules splits a corpus into "# Rule N: description" blocks. The lines
// following a header up to the first blank line are the rule text; any
// further lines before the next header are its explanation. Other lines
// starting with '#' are comments.
func ParseRules(source string, corpus []byte) ([]Rule, error) {
	headers := ruleHeaderRe.FindAllSubmatchIndex(corpus, -1)
	if len(headers) == 0 {
		if len(bytes.TrimSpace(stripComments(corpus))) > 0 {
			return nil, loadErr(source, "%w: rule corpus has text but no \"# Rule N:\" blocks", ErrInvalid)
		}
		return nil, nil
	}

	rules := make([]Rule, 0, len(headers))
	seen := make(map[int]bool)
	for i, h := range headers {
		id, err := strconv.Atoi(string(corpus[h[2]:h[3]]))
		if err != nil {
			return nil, loadErr(source, "%w: rule id %q", ErrInvalid, corpus[h[2]:h[3]])
		}
		if seen[id] {
			return nil, loadErr(source, "%w: rule %d", ErrDuplicate, id)
		}
		seen[id] = true

		end := len(corpus)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}
		text, explanation := splitBlock(corpus[h[1]:end])
		if text == "" {
			return nil, loadErr(source, "%w: rule %d has no rule text", ErrInvalid, id)
		}

		r, err := parseRule(text)
		if err != nil {
			return nil, loadErr(source, "rule %d: %w", id, err)
		}
		r.ID = id
		r.Description = strings.TrimSpace(string(corpus[h[4]:h[5]]))
		r.Explanation = explanation
		r.Precedence = i + 1
		rules = append(rules, r)
	}
	return rules, nil
}

func stripComments(b []byte) []byte {
	var out bytes.Buffer
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "#") {
			continue
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return out.Bytes()
}

func splitBlock(block []byte) (text, explanation string) {
	var ruleLines, explLines []string
	inRule := true
	started := false
	for _, raw := range strings.Split(string(block), "\n") {
		line := strings.TrimSpace(raw)
		if strings.HasPrefix(line, "#") {
			continue
		}
		if line == "" {
			if started {
				inRule = false
			}
			continue
		}
		started = true
		if inRule {
			ruleLines = append(ruleLines, line)
		} else {
			explLines = append(explLines, line)
		}
	}
	return strings.Join(ruleLines, " "), strings.Join(explLines, " ")
}

func parseRule(text string) (Rule, error) {
	parts := arrowRe.Split(text, -1)
	if len(parts) != 2 {
		return Rule{}, fmt.Errorf("%w: want exactly one '->' in %q", ErrInvalid, text)
	}
	body, head := parts[0], parts[1]

	r := Rule{Text: text, Mentions: mentionedLevels(text)}

	bindings := make(map[string]facts.PredicateID)
	type pending struct {
		variable string
		op       Op
		value    string
	}
	var comparisons []pending
	for _, m := range atomRe.FindAllStringSubmatch(body, -1) {
		name, args := m[1], splitArgs(m[2])
		if op, ok := builtins[name]; ok {
			if len(args) != 2 {
				return Rule{}, fmt.Errorf("%w: %s takes two arguments", ErrInvalid, name)
			}
			comparisons = append(comparisons, pending{variable: strings.TrimPrefix(args[0], "?"), op: op, value: args[1]})
			continue
		}
		if len(args) == 2 && strings.HasPrefix(args[1], "?") {
			v := strings.TrimPrefix(args[1], "?")
			if _, ok := bindings[v]; !ok {
				bindings[v] = facts.PredicateID(name)
			}
		}
	}
	for _, c := range comparisons {
		th, err := strconv.ParseFloat(c.value, 64)
		if err != nil {
			return Rule{}, fmt.Errorf("%w: threshold %q is not a number", ErrInvalid, c.value)
		}
		r.Conditions = append(r.Conditions, Condition{
			Predicate: bindings[c.variable],
			Variable:  c.variable,
			Op:        c.op,
			Threshold: th,
		})
	}

	for _, m := range atomRe.FindAllStringSubmatch(head, -1) {
		args := splitArgs(m[2])
		switch facts.PredicateID(m[1]) {
		case domain.PredRiskLevel:
			if len(args) != 2 {
				return Rule{}, fmt.Errorf("%w: hasRiskLevel takes two arguments", ErrInvalid)
			}
			l, ok := MatchRiskLevel(args[1])
			if !ok {
				return Rule{}, fmt.Errorf("%w: unknown risk level %q", ErrInvalid, args[1])
			}
			r.SetsRiskLevel = true
			r.Produces = l
		case domain.PredWarningStatus:
			if len(args) == 2 && alertRe.MatchString(args[1]) {
				r.Alert = domain.AlertRaised
			}
		}
	}
	return r, nil
}

func splitArgs(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
