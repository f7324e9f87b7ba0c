// Command scoreurl scores URLs against the trained artifacts and prints a
// report for each. With no arguments it scores a fixed sample set.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/veil-waf/phishguard/internal/classify"
	"github.com/veil-waf/phishguard/internal/config"
	"github.com/veil-waf/phishguard/internal/server"
)

var sampleURLs = []string{
	"https://www.google.com/",
	"http://paypal-verify.tk/login",
	"http://192.168.1.1/malware.exe",
	"https://www.amazon.com",
	"http://secure-login-bank.ml/verify",
	"https://dropbox.com",
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 2
	}

	fs := flag.NewFlagSet("scoreurl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	modelPath := fs.String("model", cfg.ModelPath, "classifier artifact")
	tfidfPath := fs.String("tfidf", cfg.TFIDFPath, "vectorizer artifact")
	labelsPath := fs.String("labels", cfg.LabelsPath, "label encoder artifact")
	asJSON := fs.Bool("json", false, "print one JSON prediction per line")
	logLevel := fs.String("log-level", "warn", "log level written to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := server.NewLogger(stderr, *logLevel)
	art, err := classify.LoadArtifacts(classify.ArtifactPaths{
		Model:      *modelPath,
		Vectorizer: *tfidfPath,
		Labels:     *labelsPath,
	}, logger)
	if err != nil {
		fmt.Fprintf(stderr, "load artifacts: %v\n", err)
		return 1
	}
	scorer := classify.NewScorer(art, logger)

	urls := fs.Args()
	if len(urls) == 0 {
		urls = sampleURLs
	}

	rule := strings.Repeat("=", 70)
	if !*asJSON {
		fmt.Fprintf(stdout, "%s\n%sURL PHISHING DETECTOR\n%s\n\n", rule, strings.Repeat(" ", 24), rule)
	}
	enc := json.NewEncoder(stdout)
	failed := 0
	for _, u := range urls {
		p, err := scorer.Score(u)
		if err != nil {
			failed++
			fmt.Fprintf(stdout, "Error predicting for %s: %v\n\n", u, err)
			continue
		}
		if *asJSON {
			enc.Encode(p)
			continue
		}
		printReport(stdout, rule, p)
	}
	if !*asJSON {
		fmt.Fprintln(stdout, rule)
	}
	if failed > 0 {
		return 1
	}
	return 0
}

func printReport(w io.Writer, rule string, p *classify.Prediction) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "URL: %s\n", p.URL)
	fmt.Fprintf(w, "Prediction: %s  |  Is phishing: %t\n", p.Label, p.IsPhishing)
	fmt.Fprintf(w, "Phishing Score: %d/100\n", p.Score)
	fmt.Fprintf(w, "Confidence: %.1f%%\n", p.Confidence*100)
	fmt.Fprintf(w, "Risk Level: %s\n", strings.ToUpper(string(p.Risk.Severity)))
	if len(p.Risk.RiskFactors) > 0 {
		fmt.Fprintln(w, "\nRisk Factors:")
		for _, f := range p.Risk.RiskFactors {
			fmt.Fprintf(w, "  • %s\n", f)
		}
	}
	fmt.Fprintf(w, "\nRecommendation: %s\n", p.Risk.Recommendation)
}

