package classify

import "fmt"

// Severity is the risk tier derived from a phishing score.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var recommendations = map[Severity]string{
	SeverityCritical: "DO NOT PROCEED - This URL is very likely a phishing attempt",
	SeverityHigh:     "Avoid entering any personal information on this site",
	SeverityMedium:   "Exercise caution - verify site authenticity before proceeding",
	SeverityLow:      "Site appears safe, but always verify URLs before entering sensitive data",
}

// SeverityForScore maps a 0-100 score to its tier. Boundaries belong to the
// higher tier.
func SeverityForScore(score int) Severity {
	switch {
	case score >= 70:
		return SeverityCritical
	case score >= 50:
		return SeverityHigh
	case score >= 30:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// RiskAssessment summarizes why a URL looks risky.
type RiskAssessment struct {
	Severity       Severity `json:"severity"`
	RiskFactors    []string `json:"risk_factors"`
	Recommendation string   `json:"recommendation"`
}

// AssessRisk derives the severity, recommendation and feature-based risk
// factors. Factors are emitted in a fixed order. isPhishing does not affect
// the result; severity comes from the score alone.
func AssessRisk(score int, isPhishing bool, f Features) RiskAssessment {
	sev := SeverityForScore(score)
	ra := RiskAssessment{
		Severity:       sev,
		RiskFactors:    []string{},
		Recommendation: recommendations[sev],
	}
	add := func(s string) { ra.RiskFactors = append(ra.RiskFactors, s) }

	if f.HasIP != 0 {
		add("Uses IP address instead of domain name")
	}
	if f.AbnormalTLD != 0 {
		add("Uses suspicious top-level domain (.tk, .ml, .ga, etc.)")
	}
	if f.HasLogin != 0 || f.HasVerify != 0 || f.HasBanking != 0 {
		add("Contains suspicious keywords (login, verify, banking)")
	}
	if f.NumAts > 0 {
		add("Contains @ symbol (domain hiding technique)")
	}
	if f.URLLength > 75 {
		add(fmt.Sprintf("Unusually long URL (%d characters)", f.URLLength))
	}
	if f.NumSubdomains > 3 {
		add(fmt.Sprintf("Excessive subdomains (%d)", f.NumSubdomains))
	}
	if f.Entropy > 4.5 {
		add("High entropy (random-looking URL)")
	}
	if f.HasHTTPS == 0 {
		add("Not using HTTPS protocol")
	}
	if f.UppercaseCount > 10 {
		add(fmt.Sprintf("Excessive uppercase letters (%d)", f.UppercaseCount))
	}
	if f.ConsecutiveDigits > 8 {
		add(fmt.Sprintf("Long sequence of digits (%d)", f.ConsecutiveDigits))
	}
	return ra
}
