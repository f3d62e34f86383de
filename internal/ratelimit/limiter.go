package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/quizlabhq/quizlab-backend/pkg/errors"
	"github.com/quizlabhq/quizlab-backend/pkg/logger"
)

// Mode selects the behavior when the counter backend is unavailable.
type Mode int

const (
	// FailOpen lets traffic through when the backend cannot answer.
	FailOpen Mode = iota
	// FailClosed rejects traffic when the backend cannot answer.
	FailClosed
)

// Rule is a fixed per-route throttling policy.
type Rule struct {
	Name   string
	Limit  int64
	Window time.Duration
	Mode   Mode
}

// CounterStore is the distributed fixed-window counter surface. The redis
// client and the in-process fallback both satisfy it.
type CounterStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Decision is the outcome of an Enforce call. Err is non-nil when the request
// must be rejected; Enforce itself never returns an error or panics.
type Decision struct {
	Blocked bool
	Err     *pkgerrors.Error
}

// Limiter applies fixed-window rate limits in front of abuse-prone routes.
type Limiter struct {
	store CounterStore
	logg  *logger.Logger

	mu       sync.Mutex
	warnedNo map[string]bool
}

// New builds a limiter. A nil store means no backend is configured; every
// call then resolves through the rule's fail-open/fail-closed mode.
func New(store CounterStore, logg *logger.Logger) *Limiter {
	return &Limiter{
		store:    store,
		logg:     logg,
		warnedNo: make(map[string]bool),
	}
}

// Enforce counts the request against (rule, identity) and decides whether it
// may proceed. All failure paths resolve to a Decision; nothing escapes.
func (l *Limiter) Enforce(ctx context.Context, identity string, rule Rule) Decision {
	if rule.Limit <= 0 || rule.Window <= 0 {
		return Decision{}
	}

	if l.store == nil {
		l.warnBackendAbsentOnce(ctx, rule.Name)
		if rule.Mode == FailClosed {
			return Decision{
				Blocked: true,
				Err:     pkgerrors.New(pkgerrors.CodeDependency, "Rate limiter unavailable."),
			}
		}
		return Decision{}
	}

	key := fmt.Sprintf("ql:rate_limit:%s:%s", rule.Name, identity)
	count, err := l.store.IncrWithTTL(ctx, key, rule.Window)
	if err != nil {
		return l.resolveBackendError(ctx, rule, err)
	}

	if count > rule.Limit {
		if l.logg != nil {
			logCtx := l.logg.WithFields(ctx, map[string]any{
				"route":          rule.Name,
				"identity":       identity,
				"attempts":       count,
				"limit":          rule.Limit,
				"window_seconds": int(rule.Window.Seconds()),
			})
			l.logg.Warn(logCtx, "rate_limit.blocked")
		}
		return Decision{
			Blocked: true,
			Err:     pkgerrors.New(pkgerrors.CodeRateLimit, "Too many requests."),
		}
	}

	return Decision{}
}

// resolveBackendError handles a failed counter call from a configured
// backend. Unlike the absent-backend path, each exception is logged: these
// are transient and the cause matters.
func (l *Limiter) resolveBackendError(ctx context.Context, rule Rule, cause error) Decision {
	switch rule.Mode {
	case FailClosed:
		if l.logg != nil {
			l.logg.Error(l.logg.WithRoute(ctx, rule.Name), "rate_limit.backend_unavailable", cause)
		}
		return Decision{
			Blocked: true,
			Err:     pkgerrors.New(pkgerrors.CodeDependency, "Rate limiter unavailable."),
		}
	default:
		if l.logg != nil {
			l.logg.Warn(l.logg.WithFields(ctx, map[string]any{
				"route": rule.Name,
				"error": cause.Error(),
			}), "rate_limit.backend_error_allowing")
		}
		return Decision{}
	}
}

// warnBackendAbsentOnce logs the no-backend condition once per route per
// process lifetime, so a sustained outage does not flood the log stream.
func (l *Limiter) warnBackendAbsentOnce(ctx context.Context, route string) {
	l.mu.Lock()
	warned := l.warnedNo[route]
	if !warned {
		l.warnedNo[route] = true
	}
	l.mu.Unlock()

	if !warned && l.logg != nil {
		l.logg.Warn(l.logg.WithRoute(ctx, route), "rate_limit.no_backend_configured")
	}
}

// ClientIdentity resolves the caller identity for counting: the first
// forwarded-for hop, then the real-ip header, then a sentinel. Missing
// headers never cause a failure.
func ClientIdentity(r *http.Request) string {
	if r == nil {
		return "unknown"
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return "unknown"
}

// ParseWindow parses the "<integer> <s|m|h>" window form used in route
// policy configuration.
func ParseWindow(value string) (time.Duration, error) {
	fields := strings.Fields(strings.TrimSpace(value))
	if len(fields) != 2 {
		return 0, fmt.Errorf("invalid window %q (expected \"<integer> <s|m|h>\")", value)
	}
	amount, err := strconv.Atoi(fields[0])
	if err != nil || amount <= 0 {
		return 0, fmt.Errorf("invalid window amount %q", fields[0])
	}
	switch fields[1] {
	case "s":
		return time.Duration(amount) * time.Second, nil
	case "m":
		return time.Duration(amount) * time.Minute, nil
	case "h":
		return time.Duration(amount) * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid window unit %q", fields[1])
	}
}
