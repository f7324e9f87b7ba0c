package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeArtifacts creates a classifier that calls every URL with an IPv4
// address phishing (column 5 + 24 is has_ip).
func writeArtifacts(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
		return p
	}
	return []string{
		"-model", write("model.json", `{"objective":"binary:logistic","num_features":38,
			"trees":[{"nodeid":0,"split":"f29","split_condition":0.5,"yes":1,"no":2,"missing":1,
			"children":[{"nodeid":1,"leaf":-2},{"nodeid":2,"leaf":2}]}]}`),
		"-tfidf", write("tfidf.json", `{"analyzer":"word","vocabulary":{"google":0,"com":1,"malware":2,"exe":3,"verify":4},"idf":[1,1,2,2,2]}`),
		"-labels", write("labels.json", `{"classes":["legitimate","phishing"]}`),
	}
}

func TestRunSampleReport(t *testing.T) {
	chdir(t, t.TempDir())
	var stdout, stderr bytes.Buffer
	code := run(writeArtifacts(t), &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit = %d stderr = %s", code, stderr.String())
	}
	out := stdout.String()
	if strings.Count(out, "URL: ") != len(sampleURLs) {
		t.Errorf("expected %d reports:\n%s", len(sampleURLs), out)
	}
	for _, want := range []string{
		"URL: http://192.168.1.1/malware.exe",
		"Phishing Score: 88/100",
		"Risk Level: CRITICAL",
		"  • Uses IP address instead of domain name",
		"Recommendation: DO NOT PROCEED - This URL is very likely a phishing attempt",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report lacks %q", want)
		}
	}
}

func TestRunJSON(t *testing.T) {
	chdir(t, t.TempDir())
	var stdout, stderr bytes.Buffer
	args := append(writeArtifacts(t), "-json", "https://www.google.com/")
	if code := run(args, &stdout, &stderr); code != 0 {
		t.Fatalf("exit = %d stderr = %s", code, stderr.String())
	}
	var p struct {
		Normalized string `json:"normalized"`
		Score      int    `json:"score"`
		Prediction string `json:"prediction"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &p); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout.String())
	}
	if p.Normalized != "google.com" || p.Score != 12 || p.Prediction != "legitimate" {
		t.Errorf("prediction = %+v", p)
	}
}

func TestRunMissingArtifacts(t *testing.T) {
	chdir(t, t.TempDir())
	var stdout, stderr bytes.Buffer
	code := run([]string{"-model", "nope.json"}, &stdout, &stderr)
	if code != 1 || !strings.Contains(stderr.String(), "classifier") {
		t.Errorf("exit = %d stderr = %s", code, stderr.String())
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
