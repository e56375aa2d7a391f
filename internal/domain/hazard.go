package domain

import (
	"strings"
	"time"
)

// RiskLevel grades a reported hazard.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

// ParseRiskLevel validates a risk level.
func ParseRiskLevel(raw string) (RiskLevel, bool) {
	switch r := RiskLevel(strings.ToLower(raw)); r {
	case RiskLevelLow, RiskLevelMedium, RiskLevelHigh:
		return r, true
	default:
		return "", false
	}
}

// Hazard is a site danger engineers should know about before dispatch.
type Hazard struct {
	ID          string
	HazardType  string
	Description string
	RiskLevel   RiskLevel
	Address     string
	Pincode     string
	Location    *Location
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
