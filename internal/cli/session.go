package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/AmmannChristian/go-sessionx/authapi"
	"github.com/AmmannChristian/go-sessionx/credential"
	"github.com/AmmannChristian/go-sessionx/httpclient"
	"github.com/AmmannChristian/go-sessionx/internal/config"
)

// session bundles everything one command invocation needs.
type session struct {
	cfg      *config.Config
	logger   hclog.Logger
	registry *prometheus.Registry
	client   *httpclient.Client
	auth     *authapi.Service
	out      io.Writer
	closers  []func() error
}

// openSession loads the configuration and builds the client and its store.
// The caller must Close the returned session.
func openSession(c *cli.Context) (*session, error) {
	flags := ParseGlobalFlags(c)

	cfg, err := config.NewLoader(config.WithConfigFile(flags.Config)).Load(flags.overrides())
	if err != nil {
		return nil, err
	}

	s := &session{
		cfg: cfg,
		logger: hclog.New(&hclog.LoggerOptions{
			Name:   "sessionx",
			Level:  hclog.LevelFromString(cfg.Log.Level),
			Output: c.App.ErrWriter,
		}),
		registry: prometheus.NewRegistry(),
		out:      c.App.Writer,
	}

	store, err := s.openStore()
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	errOut := c.App.ErrWriter
	builder := httpclient.NewBuilder().
		WithBaseURL(cfg.BaseURL).
		WithTimeout(cfg.Timeout).
		WithRefreshPath(cfg.RefreshPath).
		WithLoginPath(cfg.LoginPath).
		WithLogger(s.logger.StandardLogger(&hclog.StandardLoggerOptions{InferLevels: true})).
		WithMetrics(s.registry).
		WithUnauthorizedHandler(func(_ context.Context, _ string, message string) {
			fmt.Fprintf(errOut, "login required: %s\n", message)
		})
	if cfg.Credentials.Bearer {
		builder = builder.WithCredentialStore(store)
	}
	if cfg.Credentials.Cookies {
		builder = builder.WithCookieCredentials()
	}

	s.client, err = builder.Build()
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.auth = authapi.New(s.client)

	s.logger.Debug("session opened", "base_url", cfg.BaseURL, "store", cfg.Store.Driver)
	return s, nil
}

func (s *session) openStore() (credential.Store, error) {
	switch s.cfg.Store.Driver {
	case config.DriverRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     s.cfg.Store.Redis.Addr,
			Password: s.cfg.Store.Redis.Password,
			DB:       s.cfg.Store.Redis.DB,
		})
		s.closers = append(s.closers, rdb.Close)
		return credential.NewRedisStore(rdb, credential.WithRedisKey(s.cfg.Store.Key)), nil

	case config.DriverSQLite:
		db, err := credential.OpenSQLite(s.cfg.Store.SQLite.Path)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("cli: sqlite handle: %w", err)
		}
		s.closers = append(s.closers, sqlDB.Close)
		return credential.NewSQLStore(db, s.cfg.Store.Key)

	default:
		return credential.NewMemoryStore(), nil
	}
}

// Close logs the collected metrics and releases the store.
func (s *session) Close() error {
	s.logMetrics()

	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *session) logMetrics() {
	if s.logger == nil || !s.logger.IsDebug() {
		return
	}

	families, err := s.registry.Gather()
	if err != nil {
		s.logger.Warn("failed to gather metrics", "error", err)
		return
	}

	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			s.logger.Debug("metric", "name", mf.GetName(), "labels", strings.Join(labels, ","), "value", m.GetCounter().GetValue())
		}
	}
}
