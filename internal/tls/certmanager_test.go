package tls

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"testing"
)

func TestAllowCert(t *testing.T) {
	cm := newCertManager([]string{" API.phishguard.example ", "api.phishguard.example", "", "scan.example"},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	if got := cm.Domains(); !slices.Equal(got, []string{"api.phishguard.example", "scan.example"}) {
		t.Errorf("Domains = %q", got)
	}
	for name, ok := range map[string]bool{
		"api.phishguard.example": true,
		"Scan.Example":           true,
		"evil.example":           false,
		"":                       false,
	} {
		err := cm.allowCert(context.Background(), name)
		if (err == nil) != ok {
			t.Errorf("allowCert(%q) = %v, want allowed=%v", name, err, ok)
		}
	}
}

func TestListenAndServeWithoutDomains(t *testing.T) {
	cm := newCertManager(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := cm.ListenAndServe(context.Background(), nil); err == nil {
		t.Error("expected error without domains")
	}
}
