package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/holvikit/holvi/internal/auditlog"
	"github.com/holvikit/holvi/internal/buildinfo"
	"github.com/holvikit/holvi/internal/config"
	"github.com/holvikit/holvi/internal/connection"
	"github.com/holvikit/holvi/internal/invoicing"
	"github.com/holvikit/holvi/internal/logging"
)

// session holds what a command needs to talk to one pool.
type session struct {
	cfg       *config.Config
	log       *zap.Logger
	api       *invoicing.API
	registry  *prometheus.Registry
	auditPath string
	metrics   string
}

func (o *rootOptions) open() (*session, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.debug {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", o.configPath, err)
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	clientCfg := connection.DefaultClientConfig()
	if cfg.Client.Timeout > 0 {
		clientCfg.Timeout = cfg.Client.Timeout
	}
	reg := prometheus.NewRegistry()
	conn := connection.New(connection.Config{
		BaseURL:           cfg.API.BaseURL,
		Pool:              cfg.API.Pool,
		Token:             cfg.API.Token,
		UserAgent:         buildinfo.UserAgent(),
		RequestsPerSecond: cfg.Client.RateLimit,
		Burst:             cfg.Client.Burst,
		Client:            clientCfg,
	}, connection.WithLogger(log), connection.WithMetrics(connection.NewMetrics(reg)))

	s := &session{
		cfg:      cfg,
		log:      log,
		api:      invoicing.NewAPI(conn, invoicing.WithDraftDefaults(cfg.Invoice.Currency, cfg.Invoice.DueDays)),
		registry: reg,
		metrics:  o.metricsFile,
	}
	if cfg.AuditLog != "" {
		s.auditPath = cfg.AuditLog
		if !filepath.IsAbs(s.auditPath) {
			s.auditPath = filepath.Join(filepath.Dir(o.configPath), s.auditPath)
		}
	}
	return s, nil
}

// audit records an action against an invoice when an audit log is configured.
func (s *session) audit(action string, inv *invoicing.Invoice, details string) error {
	if s.auditPath == "" {
		return nil
	}
	entry := auditlog.Entry{
		Timestamp:   time.Now(),
		Action:      action,
		InvoiceCode: inv.Code,
		Subject:     inv.Subject,
		Details:     details,
	}
	if err := auditlog.Append(s.auditPath, []auditlog.Entry{entry}); err != nil {
		return fmt.Errorf("writing audit log: %w", err)
	}
	return nil
}

func (s *session) close() error {
	_ = s.log.Sync()
	if s.metrics == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(s.metrics, s.registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
