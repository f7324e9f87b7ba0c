package db

import "time"

// Scan is one persisted URL classification.
type Scan struct {
	ID         int64     `json:"id"`
	URL        string    `json:"url"`
	Normalized string    `json:"normalized"`
	Domain     string    `json:"domain,omitempty"`
	Prediction string    `json:"prediction"`
	IsPhishing bool      `json:"is_phishing"`
	Score      int       `json:"score"`
	Confidence float64   `json:"confidence"`
	Severity   string    `json:"severity"`
	ClientIP   string    `json:"client_ip,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Stats aggregates every stored scan.
type Stats struct {
	TotalScans    int64            `json:"total_scans"`
	PhishingScans int64            `json:"phishing_scans"`
	AvgScore      float64          `json:"avg_score"`
	BySeverity    map[string]int64 `json:"by_severity"`
	TopDomains    []DomainCount    `json:"top_domains"`
}

// DomainCount is the number of phishing scans seen for one registrable domain.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int64  `json:"count"`
}
