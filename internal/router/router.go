// Package router registers the HTTP routes of the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/signvault/internal/handler"
	"github.com/iliyamo/signvault/internal/middleware"
	"github.com/iliyamo/signvault/internal/model"
)

// RegisterRoutes registers the unauthenticated health endpoints.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", handler.Health)
	e.GET("/healthz/detailed", h.Detailed)
}

// RegisterAuth registers the authentication routes. Session-creating routes
// live under /v1/auth and take the rate limiter; /v1/me requires a JWT.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login, limit)
	g.POST("/refresh", a.Refresh, limit)
	// Logout accepts either a refresh_token body or a bearer token.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleOwner, model.RoleAdmin),
	)
	auth.GET("/me", a.Me)
}

// RegisterOwner registers the document management API. All routes require a
// valid JWT with the OWNER or ADMIN role; ownership is checked per document
// by the services.
func RegisterOwner(e *echo.Echo, d *handler.DocumentHandler, jwtSecret string) {
	g := e.Group("/v1/documents",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleOwner, model.RoleAdmin),
	)

	// ---- Documents ----
	g.GET("", d.List)
	g.POST("", d.Create)
	g.GET("/:id", d.Get)
	g.DELETE("/:id", d.Delete)

	// ---- Fields ----
	g.POST("/:id/fields", d.AddField)
	g.PUT("/:id/fields/:field_id", d.UpdateField)
	g.DELETE("/:id/fields/:field_id", d.DeleteField)

	// ---- Signers ----
	g.POST("/:id/signers", d.AddSigner)
	g.DELETE("/:id/signers/:signer_id", d.RemoveSigner)

	// ---- Lifecycle ----
	g.POST("/:id/send", d.Send)
	g.POST("/:id/void", d.Void)

	// ---- Audit ----
	g.GET("/:id/audit", d.Audit)
	g.GET("/:id/verify", d.Verify)
	g.GET("/:id/certificate", d.Certificate)
	g.POST("/:id/downloaded", d.Downloaded)
}

// RegisterSigner registers the token-authenticated signer API behind the rate
// limiter.
func RegisterSigner(e *echo.Echo, s *handler.SigningHandler, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/sign/:token", limit)
	g.GET("", s.Session)
	g.GET("/document", s.Document)
	g.POST("/submit", s.Submit)
	g.POST("/decline", s.Decline)
}
