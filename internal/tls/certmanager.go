package tls

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/caddyserver/certmagic"
)

// Options configures ACME certificate management.
type Options struct {
	Domains []string
	Email   string
	Staging bool
}

// CertManager manages automatic TLS certificates via certmagic for a fixed
// set of API hostnames.
type CertManager struct {
	domains map[string]struct{}
	names   []string
	logger  *slog.Logger
	cfg     *certmagic.Config
}

// NewCertManager creates a CertManager. Certificates are only ever issued for
// the configured domains.
func NewCertManager(opts Options, logger *slog.Logger) *CertManager {
	certmagic.DefaultACME.Email = opts.Email
	certmagic.DefaultACME.Agreed = true
	if opts.Staging {
		certmagic.DefaultACME.CA = certmagic.LetsEncryptStagingCA
	}

	cm := newCertManager(opts.Domains, logger)
	cm.cfg = certmagic.NewDefault()
	cm.cfg.OnDemand = &certmagic.OnDemandConfig{
		DecisionFunc: cm.allowCert,
	}
	return cm
}

func newCertManager(domains []string, logger *slog.Logger) *CertManager {
	cm := &CertManager{domains: make(map[string]struct{}), logger: logger}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if _, dup := cm.domains[d]; !dup {
			cm.domains[d] = struct{}{}
			cm.names = append(cm.names, d)
		}
	}
	return cm
}

// allowCert is the on-demand decision function: only configured names get
// certificates.
func (cm *CertManager) allowCert(_ context.Context, name string) error {
	if _, ok := cm.domains[strings.ToLower(name)]; !ok {
		return fmt.Errorf("unknown domain: %s", name)
	}
	return nil
}

// Domains returns the managed hostnames in configuration order.
func (cm *CertManager) Domains() []string {
	return append([]string(nil), cm.names...)
}

// ListenAndServe obtains certificates for the configured domains, then serves
// handler over TLS on port 443 until ctx is cancelled.
func (cm *CertManager) ListenAndServe(ctx context.Context, handler http.Handler) error {
	if len(cm.names) == 0 {
		return errors.New("no TLS domains configured")
	}
	cm.logger.Info("starting TLS server", "domains", cm.names)

	if err := cm.cfg.ManageSync(ctx, cm.names); err != nil {
		return fmt.Errorf("manage domains: %w", err)
	}

	tlsCfg := cm.cfg.TLSConfig()
	tlsCfg.NextProtos = append([]string{"h2", "http/1.1"}, tlsCfg.NextProtos...)
	ln, err := tls.Listen("tcp", fmt.Sprintf(":%d", certmagic.HTTPSPort), tlsCfg)
	if err != nil {
		return fmt.Errorf("tls listen: %w", err)
	}

	srv := &http.Server{
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	cm.logger.Info("serving HTTPS", "port", certmagic.HTTPSPort)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
