package routers

import (
	"net/url"

	"chatgate/internal/middleware"

	"github.com/labstack/echo/v4"
	emw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// RegisterWebRoutes mounts the gate pipeline in front of the frontend
// origin. Pass-through and locale-rewritten requests are reverse proxied
// with their original headers unchanged; redirects terminate here.
func RegisterWebRoutes(e *echo.Group, pipeline *middleware.Pipeline, frontendOrigin string, log *zap.SugaredLogger) error {
	target, err := url.Parse(frontendOrigin)
	if err != nil {
		return err
	}

	web := e.Group("")
	web.Use(middleware.NewGateMiddleware(pipeline))
	web.Use(emw.Proxy(emw.NewRoundRobinBalancer([]*emw.ProxyTarget{
		{URL: target},
	})))

	log.Infow("Web routes registered", "frontend_origin", frontendOrigin)
	return nil
}
