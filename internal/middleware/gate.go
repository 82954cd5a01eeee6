package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"chatgate/internal/ctx"
	"chatgate/internal/locale"
	"chatgate/internal/metrics"
	"chatgate/internal/shared"
	"chatgate/internal/users"
	"chatgate/internal/workspace"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type DecisionKind int

const (
	// PassThrough forwards the request unmodified, original headers intact.
	PassThrough DecisionKind = iota
	// Redirect terminates the request with a redirect to Target.
	Redirect
	// LocaleRewrite changes the request path to Target without changing
	// the logical resource.
	LocaleRewrite
)

func (k DecisionKind) String() string {
	switch k {
	case Redirect:
		return "redirect"
	case LocaleRewrite:
		return "locale_rewrite"
	}
	return "pass_through"
}

// Decision is the single outcome of the gate pipeline for one request.
// Exactly one variant is produced, in fixed precedence order: admin gate,
// locale, home redirect, pass-through.
type Decision struct {
	Kind   DecisionKind
	Target string
}

// Pipeline is the per-request decision pipeline in front of the web
// surface. Collaborators are explicit fields so tests can substitute fakes
// with controlled contents.
type Pipeline struct {
	Identity users.Identity
	Homes    workspace.Finder
	Locales  *locale.Resolver
	Log      *zap.SugaredLogger
}

// homeTarget builds the tenant-scoped landing location.
func homeTarget(ws *shared.Workspace) string {
	return "/" + ws.ID + "/chat"
}

// Decide runs the gate states in order and returns the route decision.
// A returned error is a definitive, visible failure (admin gate and
// explicit redirect branches are fail-closed); best-effort branches degrade
// to PassThrough instead of blocking traffic.
func (p *Pipeline) Decide(ctx context.Context, r *http.Request) (Decision, error) {
	path := r.URL.Path

	// AdminGatePath. The check runs against the path with any locale
	// prefix stripped so /en/admin is gated the same as /admin.
	if p.isAdminPath(path) {
		token, err := shared.ExtractSessionToken(r)
		if err != nil {
			return Decision{Kind: Redirect, Target: shared.SignInPath}, nil
		}
		user, err := p.Identity.FromSession(ctx, token)
		if err != nil {
			if errors.Is(err, shared.ErrInvalidSession) {
				return Decision{Kind: Redirect, Target: shared.SignInPath}, nil
			}
			// Identity backend failure on the admin surface fails closed.
			return Decision{}, err
		}
		if !user.IsAdmin {
			res := p.Homes.FindHome(ctx, user.UserID)
			switch res.Status {
			case workspace.HomeFound:
				return Decision{Kind: Redirect, Target: homeTarget(res.Workspace)}, nil
			case workspace.HomeLookupFailed:
				return Decision{}, res.Err
			default:
				// The caller has no reachable landing page.
				return Decision{}, shared.ErrHomeWorkspaceNotFound
			}
		}
		// Admin user: fall through to locale routing.
	}

	// LocaleRouting.
	if newPath, ok := p.Locales.Resolve(path, r.Header.Get("Accept-Language")); ok {
		return Decision{Kind: LocaleRewrite, Target: newPath}, nil
	}

	// RootRedirect.
	if path == "/" {
		token, err := shared.ExtractSessionToken(r)
		if err != nil {
			return Decision{}, nil
		}
		user, err := p.Identity.FromSession(ctx, token)
		if err != nil {
			if errors.Is(err, shared.ErrInvalidSession) {
				return Decision{}, nil
			}
			// Best-effort branch: a failing identity backend must not take
			// down the front page.
			p.Log.Warnw("Identity lookup failed on root redirect, passing through", "error", err)
			return Decision{}, nil
		}
		res := p.Homes.FindHome(ctx, user.UserID)
		switch res.Status {
		case workspace.HomeFound:
			return Decision{Kind: Redirect, Target: homeTarget(res.Workspace)}, nil
		case workspace.HomeLookupFailed:
			return Decision{}, res.Err
		default:
			return Decision{}, shared.ErrHomeWorkspaceNotFound
		}
	}

	return Decision{}, nil
}

func (p *Pipeline) isAdminPath(path string) bool {
	trimmed := path
	if first := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 2); len(first) > 0 {
		for _, s := range p.Locales.Supported() {
			if first[0] == s {
				trimmed = strings.TrimPrefix(path, "/"+s)
				break
			}
		}
	}
	return trimmed == shared.AdminPathPrefix || strings.HasPrefix(trimmed, shared.AdminPathPrefix+"/")
}

// Excluded paths bypass the entire pipeline: API and auth namespaces,
// static assets, and anything that looks like a file.
func Excluded(path string) bool {
	for _, prefix := range []string{"/api/", "/static/", "/_next/", "/auth/"} {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	switch path {
	case "/api", "/static", "/_next", "/auth", "/ping", "/metrics":
		return true
	}
	last := path[strings.LastIndex(path, "/")+1:]
	return strings.Contains(last, ".")
}

// NewGateMiddleware adapts the pipeline to echo. Redirects are terminal,
// locale rewrites mutate the request path in place, and pass-through hands
// the untouched request to the next handler.
func NewGateMiddleware(p *Pipeline) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(cc echo.Context) error {
			c := cc.(*ctx.Context)
			if Excluded(c.Request().URL.Path) {
				return next(c)
			}

			decision, err := p.Decide(c.Request().Context(), c.Request())
			if err != nil {
				c.LogValues.AddError(err)
				c.LogValues.LogLevel = "ERROR"
				var rerr *shared.RequestError
				if errors.As(err, &rerr) {
					return c.String(rerr.StatusCode, rerr.Err.Error())
				}
				return c.String(500, shared.ErrInternalServerError.Err.Error())
			}

			c.LogValues.Decision = decision.Kind.String()
			c.LogValues.Target = decision.Target
			metrics.RouteDecisions.WithLabelValues(decision.Kind.String()).Inc()

			switch decision.Kind {
			case Redirect:
				return c.Redirect(http.StatusFound, decision.Target)
			case LocaleRewrite:
				c.Request().URL.Path = decision.Target
			}
			return next(c)
		}
	}
}
