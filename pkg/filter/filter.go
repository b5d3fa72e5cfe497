// Package filter provides PSM acceptance rules applied after normalisation
package filter

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/phrp/pkg/core"
)

// Config holds filtering configuration
type Config struct {
	MaxAbsPPM         float64          `yaml:"max_abs_ppm"`         // Keep only PSMs within this |ppm| (0 = no limit)
	MaxAbsDa          float64          `yaml:"max_abs_da"`          // Keep only PSMs within this |Da| (0 = no limit)
	MinTrypticTermini int              `yaml:"min_tryptic_termini"` // 0, 1 or 2
	Charges           []int            `yaml:"charges"`             // Keep only these charges (nil = all)
	DropAutoDefined   bool             `yaml:"drop_auto_defined"`   // Reject PSMs carrying auto-defined mods
	Scores            []ScoreThreshold `yaml:"-"`                   // Parsed from ScoreRules
	ScoreRules        []string         `yaml:"scores"`              // e.g. "SpecEValue<=1e-10"
}

// ScoreThreshold compares a named engine score against a value
type ScoreThreshold struct {
	Name  string
	Op    string
	Value float64
}

// Reason explains why a PSM was rejected
type Reason string

const (
	Accepted        Reason = ""
	RejectPPM       Reason = "mass error"
	RejectTermini   Reason = "tryptic termini"
	RejectCharge    Reason = "charge"
	RejectAutoMod   Reason = "auto-defined modification"
	RejectScore     Reason = "score"
	RejectNoScoreOf Reason = "missing score"
)

// Enabled reports whether any rule is configured.
func (c *Config) Enabled() bool {
	return c.MaxAbsPPM > 0 || c.MaxAbsDa > 0 || c.MinTrypticTermini > 0 || len(c.Charges) > 0 || c.DropAutoDefined || len(c.Scores) > 0
}

// Compile parses ScoreRules into Scores.
func (c *Config) Compile() error {
	c.Scores = c.Scores[:0]
	for _, rule := range c.ScoreRules {
		t, err := ParseScoreThreshold(rule)
		if err != nil {
			return err
		}
		c.Scores = append(c.Scores, t)
	}
	return nil
}

// Apply reports whether the PSM passes every configured rule
func (c *Config) Apply(psm *core.PSM) (bool, Reason) {
	// Mass error first; it rejects the most
	if c.MaxAbsPPM > 0 && math.Abs(psm.MassErrorPPM) > c.MaxAbsPPM {
		return false, RejectPPM
	}
	if c.MaxAbsDa > 0 && math.Abs(psm.MassErrorDa) > c.MaxAbsDa {
		return false, RejectPPM
	}

	if psm.TrypticTermini < c.MinTrypticTermini {
		return false, RejectTermini
	}

	if len(c.Charges) > 0 && !containsInt(c.Charges, psm.Charge) {
		return false, RejectCharge
	}

	if c.DropAutoDefined && psm.HasAutoDefinedMods() {
		return false, RejectAutoMod
	}

	for _, t := range c.Scores {
		v, ok := psm.ScoreFloat(t.Name)
		if !ok {
			return false, RejectNoScoreOf
		}
		if !t.Passes(v) {
			return false, RejectScore
		}
	}

	return true, Accepted
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// scoreRuleRegex matches "Name<=1e-10", "XCorr >= 2.5", "QValue<0.01"
var scoreRuleRegex = regexp.MustCompile(`^\s*([^<>=!\s]+)\s*(<=|>=|<|>|==|!=)\s*(\S+)\s*$`)

// ParseScoreThreshold parses a rule like "SpecEValue<=1e-10"
func ParseScoreThreshold(rule string) (ScoreThreshold, error) {
	matches := scoreRuleRegex.FindStringSubmatch(rule)
	if matches == nil {
		return ScoreThreshold{}, fmt.Errorf("invalid score rule format: %s", rule)
	}

	value, err := strconv.ParseFloat(matches[3], 64)
	if err != nil {
		return ScoreThreshold{}, fmt.Errorf("invalid value in score rule %s: %w", rule, err)
	}

	return ScoreThreshold{Name: matches[1], Op: matches[2], Value: value}, nil
}

// Passes applies the comparison to v
func (t ScoreThreshold) Passes(v float64) bool {
	switch t.Op {
	case "<=":
		return v <= t.Value
	case ">=":
		return v >= t.Value
	case "<":
		return v < t.Value
	case ">":
		return v > t.Value
	case "==":
		return v == t.Value
	case "!=":
		return v != t.Value
	}
	return false
}

func (t ScoreThreshold) String() string {
	return fmt.Sprintf("%s%s%s", t.Name, t.Op, strconv.FormatFloat(t.Value, 'g', -1, 64))
}

// ParseCharges parses a comma separated charge list like "2,3,4"
func ParseCharges(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		z, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid charge '%s': %w", part, err)
		}
		out = append(out, z)
	}
	return out, nil
}
