package handlers

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"

	"github.com/veil-waf/phishguard/internal/classify"
	"github.com/veil-waf/phishguard/internal/netguard"
)

// CheckResponse is the body returned for one analyzed URL. Field names are
// what the browser extension reads.
type CheckResponse struct {
	Error          bool               `json:"error"`
	URL            string             `json:"url"`
	Normalized     string             `json:"normalized"`
	Domain         string             `json:"domain,omitempty"`
	Prediction     string             `json:"prediction"`
	IsPhishing     bool               `json:"isPhishing"`
	PhishingScore  int                `json:"phishingScore"`
	Confidence     float64            `json:"confidence"`
	RiskLevel      classify.Severity  `json:"riskLevel"`
	RiskColor      string             `json:"riskColor"`
	Warnings       []string           `json:"warnings"`
	Patterns       []string           `json:"patterns"`
	Probabilities  map[string]float64 `json:"probabilities"`
	Recommendation string             `json:"recommendation"`
	Message        string             `json:"message"`
}

var riskColors = map[classify.Severity]string{
	classify.SeverityCritical: "red",
	classify.SeverityHigh:     "orange",
	classify.SeverityMedium:   "yellow",
	classify.SeverityLow:      "green",
}

var patternKeywords = []string{"login", "verify", "account", "secure", "banking"}

const privateNetworkPattern = "Points to a private or internal network address"

// NewCheckResponse shapes a prediction for API clients.
func NewCheckResponse(p *classify.Prediction) *CheckResponse {
	level := p.Risk.Severity

	warnings := []string{}
	patterns := []string{}
	if p.IsPhishing {
		warnings = append(warnings, "HIGH RISK: This URL has been identified as a phishing attempt")
		patterns = append(patterns, fmt.Sprintf("ML Model confidence: %.1f%%", p.Confidence*100))
	}
	if p.Score >= 50 {
		warnings = append(warnings, "This site may attempt to steal your personal information")
	}
	if p.Score >= 30 {
		warnings = append(warnings, "Exercise caution when entering sensitive data")
	}
	patterns = append(patterns, p.Risk.RiskFactors...)

	lower := strings.ToLower(p.Normalized)
	for _, kw := range patternKeywords {
		if strings.Contains(lower, kw) {
			patterns = append(patterns, "Contains suspicious keywords (login, verify, account, etc.)")
			break
		}
	}

	host := strings.ToLower(classify.Host(p.Normalized))
	if netguard.IsPrivateHost(host) {
		patterns = append(patterns, privateNetworkPattern)
	}

	return &CheckResponse{
		URL:            p.URL,
		Normalized:     p.Normalized,
		Domain:         registeredDomain(host),
		Prediction:     p.Label,
		IsPhishing:     p.IsPhishing,
		PhishingScore:  p.Score,
		Confidence:     math.Round(p.Confidence*100*100) / 100,
		RiskLevel:      level,
		RiskColor:      riskColors[level],
		Warnings:       warnings,
		Patterns:       patterns,
		Probabilities:  p.Probabilities,
		Recommendation: p.Risk.Recommendation,
		Message:        fmt.Sprintf("URL analyzed successfully - Risk Level: %s", strings.ToUpper(string(level))),
	}
}

// registeredDomain returns the eTLD+1 of host, or "" for IP literals and
// hosts without a registrable part. Internationalized names are looked up in
// their ASCII form and reported that way.
func registeredDomain(host string) string {
	host = strings.TrimSuffix(host, ".")
	if host == "" || strings.ContainsAny(host, ":[]") || isIPv4Literal(host) {
		return ""
	}
	if ascii, err := idna.Lookup.ToASCII(host); err == nil && ascii != "" {
		host = ascii
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return d
}

func isIPv4Literal(host string) bool {
	for _, r := range host {
		if r != '.' && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
