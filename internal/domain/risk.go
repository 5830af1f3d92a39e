package domain

import (
	"fmt"
	"strings"

	"github.com/couchcryptid/flood-risk-service/internal/facts"
)

// RiskLevel is ordered: Low < Moderate < High.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskModerate
	RiskHigh
)

func (l RiskLevel) String() string {
	switch l {
	case RiskLow:
		return "Low"
	case RiskModerate:
		return "Moderate"
	case RiskHigh:
		return "High"
	default:
		return fmt.Sprintf("RiskLevel(%d)", int(l))
	}
}

// Entity returns the vocabulary individual naming this level.
func (l RiskLevel) Entity() facts.EntityID {
	switch l {
	case RiskLow:
		return EntityLowRisk
	case RiskModerate:
		return EntityMediumRisk
	case RiskHigh:
		return EntityHighRisk
	default:
		return ""
	}
}

// Max returns the higher of l and o.
func (l RiskLevel) Max(o RiskLevel) RiskLevel {
	if o > l {
		return o
	}
	return l
}

func (l RiskLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *RiskLevel) UnmarshalText(b []byte) error {
	v, err := ParseRiskLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// ParseRiskLevel accepts level names ("High") and vocabulary individuals
// ("HighRisk", "MediumRisk"), case-insensitively.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "lowrisk":
		return RiskLow, nil
	case "moderate", "medium", "mediumrisk", "moderaterisk":
		return RiskModerate, nil
	case "high", "highrisk":
		return RiskHigh, nil
	default:
		return 0, fmt.Errorf("unknown risk level %q", s)
	}
}

// AlertStatus is Normal unless an early-warning rule fired.
type AlertStatus int

const (
	AlertNormal AlertStatus = iota
	AlertRaised
)

func (a AlertStatus) String() string {
	switch a {
	case AlertNormal:
		return "Normal"
	case AlertRaised:
		return "Alert"
	default:
		return fmt.Sprintf("AlertStatus(%d)", int(a))
	}
}

// Entity returns the vocabulary individual naming this status.
func (a AlertStatus) Entity() facts.EntityID {
	if a == AlertRaised {
		return EntityAlert
	}
	return EntityNormal
}

func (a AlertStatus) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *AlertStatus) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "normal":
		*a = AlertNormal
	case "alert":
		*a = AlertRaised
	default:
		return fmt.Errorf("unknown alert status %q", string(b))
	}
	return nil
}

var recommendations = map[RiskLevel][]string{
	RiskLow: {
		"No specific action required",
		"Stay informed through weather bulletins",
	},
	RiskModerate: {
		"Monitor water levels in at-risk areas",
		"Prepare emergency equipment",
		"Limit travel in sensitive areas during rain",
	},
	RiskHigh: {
		"Evacuate high-risk areas",
		"Activate local emergency centres",
		"Strictly follow instructions from the authorities",
		"Avoid all non-essential travel",
	},
}

// Recommendations returns a fresh copy of the fixed advice for level l.
func Recommendations(l RiskLevel) []string {
	r := recommendations[l]
	out := make([]string, len(r))
	copy(out, r)
	return out
}
