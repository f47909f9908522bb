// Package service wires configuration into a running wiregate site.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/Sentinel-Gate/wiregate/internal/adapter/inbound/site"
	"github.com/Sentinel-Gate/wiregate/internal/adapter/outbound/cel"
	"github.com/Sentinel-Gate/wiregate/internal/adapter/outbound/memory"
	"github.com/Sentinel-Gate/wiregate/internal/config"
	"github.com/Sentinel-Gate/wiregate/internal/domain/access"
	"github.com/Sentinel-Gate/wiregate/internal/domain/auth"
	"github.com/Sentinel-Gate/wiregate/internal/domain/ratelimit"
	"github.com/Sentinel-Gate/wiregate/pkg/http1"
)

// SiteService turns route configuration into server handlers. It keeps
// the per-route ACLs so they can be changed while the server runs.
type SiteService struct {
	logger  *slog.Logger
	version string
	stats   *StatsService
	eval    *cel.Evaluator
	limiter ratelimit.Limiter
	now     func() time.Time

	mu   sync.RWMutex
	acls map[string]*access.ACL
}

// SiteOption configures a SiteService.
type SiteOption func(*SiteService)

// WithVersion sets the version reported by health routes.
func WithVersion(v string) SiteOption {
	return func(s *SiteService) { s.version = v }
}

// WithStats makes health routes report request counters.
func WithStats(stats *StatsService) SiteOption {
	return func(s *SiteService) { s.stats = stats }
}

// WithLimiter replaces the in-memory rate limiter.
func WithLimiter(l ratelimit.Limiter) SiteOption {
	return func(s *SiteService) { s.limiter = l }
}

// NewSiteService creates a SiteService.
func NewSiteService(logger *slog.Logger, opts ...SiteOption) (*SiteService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	eval, err := cel.NewEvaluator()
	if err != nil {
		return nil, err
	}
	s := &SiteService{
		logger: logger,
		eval:   eval,
		now:    time.Now,
		acls:   make(map[string]*access.ACL),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = memory.NewRateLimiter(memory.WithLogger(logger))
	}
	return s, nil
}

// Mount registers every route of cfg on srv. Routes are built completely
// before any is registered, so a bad route leaves srv untouched.
func (s *SiteService) Mount(srv *http1.Server, cfg *config.Config) error {
	users := make(map[string]string, len(cfg.Auth.Users))
	for _, u := range cfg.Auth.Users {
		users[u.Name] = u.PasswordHash
	}
	authenticator := auth.NewBasicAuthenticator(users, auth.WithLogger(s.logger))

	type mounted struct {
		path    string
		rule    http1.AccessRule
		handler http1.Handler
		acl     *access.ACL
	}
	var routes []mounted
	for _, rc := range cfg.Routes {
		h, err := s.handler(srv, rc)
		if err != nil {
			return fmt.Errorf("route %s: %w", rc.Path, err)
		}
		if len(rc.AuthUsers) > 0 {
			h = authenticator.Wrap(rc.AuthUsers, h)
		}

		acl, err := s.buildACL(rc.ACL)
		if err != nil {
			return fmt.Errorf("route %s: %w", rc.Path, err)
		}
		var rules []http1.AccessRule
		rules = append(rules, aclRule(acl))
		if rc.Rule != "" {
			rule, err := cel.NewRule(s.eval, rc.Rule, s.logger)
			if err != nil {
				return fmt.Errorf("route %s: %w", rc.Path, err)
			}
			rules = append(rules, rule)
		}
		if rc.RateLimit.Rate > 0 {
			rules = append(rules, s.rateRule(rc.Path, ratelimit.Config{
				Rate:   rc.RateLimit.Rate,
				Burst:  rc.RateLimit.Burst,
				Period: rc.RateLimit.PeriodDuration(),
			}))
		}
		routes = append(routes, mounted{path: rc.Path, rule: http1.AllRules(rules...), handler: h, acl: acl})
	}

	for _, m := range routes {
		if err := srv.SetHandler(m.path, m.rule, m.handler); err != nil {
			return fmt.Errorf("route %s: %w", m.path, err)
		}
		s.mu.Lock()
		s.acls[m.path] = m.acl
		s.mu.Unlock()
		s.logger.Debug("route mounted", "path", m.path)
	}
	s.logger.Info("routes mounted", "count", len(routes))
	return nil
}

// ACL returns the live ACL of the route mounted at path.
func (s *SiteService) ACL(path string) (*access.ACL, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acl, ok := s.acls[path]
	return acl, ok
}

func (s *SiteService) handler(srv *http1.Server, rc config.RouteConfig) (http1.Handler, error) {
	switch rc.Kind {
	case config.RouteStatic:
		return site.NewStaticHandler(rc.Dir, rc.Path, s.logger), nil
	case config.RouteEcho:
		return site.NewEchoHandler(), nil
	case config.RouteText:
		return site.NewTextHandler(rc.Text, rc.MIME), nil
	case config.RouteHealth:
		h := site.NewHealthHandler(srv, s.version)
		if s.stats != nil {
			h.WithCounts(s.stats.Counts)
		}
		return h, nil
	}
	return nil, fmt.Errorf("unknown route kind %q", rc.Kind)
}

func (s *SiteService) buildACL(entries []config.ACLEntryConfig) (*access.ACL, error) {
	acl := access.New()
	now := s.now()
	var errs []error
	for _, e := range entries {
		prefix, err := access.ParsePrefix(e.CIDR)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		perm, err := access.ParsePermission(e.Action)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		var expires time.Time
		if d := e.ExpiresDuration(); d > 0 {
			expires = now.Add(d)
		}
		if err := acl.Add(prefix, perm, expires); err != nil {
			errs = append(errs, err)
		}
	}
	return acl, errors.Join(errs...)
}

func aclRule(acl *access.ACL) http1.AccessRule {
	return http1.AccessRuleFunc(func(_ context.Context, remote netip.Addr, _ *http1.Request) (bool, error) {
		return acl.Check(remote) == access.Allow, nil
	})
}

// rateRule denies requests once the peer exceeds cfg on this route.
func (s *SiteService) rateRule(route string, cfg ratelimit.Config) http1.AccessRule {
	return http1.AccessRuleFunc(func(ctx context.Context, remote netip.Addr, r *http1.Request) (bool, error) {
		res, err := s.limiter.Allow(ctx, ratelimit.ClientKey(route, remote), cfg)
		if err != nil {
			return false, fmt.Errorf("rate limit: %w", err)
		}
		if !res.Allowed {
			s.logger.Debug("rate limited", "route", route, "remote", remote, "retry_after", res.RetryAfter)
		}
		return res.Allowed, nil
	})
}
