// Package router wires the HTTP routes to handlers and middleware.
// Routes are grouped by audience: public verification, authentication,
// authenticated ledger operations and the admin portal.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/auriclabs/goldledger/internal/config"
	"github.com/auriclabs/goldledger/internal/handler"
	"github.com/auriclabs/goldledger/internal/ledger"
	"github.com/auriclabs/goldledger/internal/middleware"
)

// RegisterRoutes registers routes that require no authentication at
// all. Currently only the health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the session endpoints and the authenticated
// profile route.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterLedger registers the authenticated token, batch, wastage and
// product routes. Mutations carry a permission gate in front of the
// handler; the ledger core re-checks authorization inside the
// transaction, so the middleware is an early rejection, not the
// enforcement point.
func RegisterLedger(e *echo.Echo, svc *ledger.Service,
	t *handler.TokenHandler, b *handler.BatchHandler,
	w *handler.WastageHandler, p *handler.ProductHandler,
	jwtSecret string) {

	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))

	// Tokens
	g.POST("/tokens", t.Mint, middleware.RequirePermission(svc, ledger.PermMintToken))
	g.GET("/tokens", t.List)
	g.GET("/tokens/:id", t.Get)
	g.GET("/tokens/:id/lineage", t.Lineage)
	g.GET("/tokens/:id/sources", t.Sources)
	g.GET("/tokens/:id/transfers", t.Transfers)
	g.POST("/tokens/:id/split", t.Split, middleware.RequirePermission(svc, ledger.PermSplitToken))
	g.POST("/tokens/merge", t.Merge, middleware.RequirePermission(svc, ledger.PermMergeToken))
	g.POST("/tokens/:id/transfer", t.Transfer, middleware.RequirePermission(svc, ledger.PermTransferToken))

	// Batches
	g.POST("/batches", b.Create, middleware.RequirePermission(svc, ledger.PermCreateBatch))
	g.GET("/batches", b.List)
	g.GET("/batches/:id", b.Get)
	g.POST("/batches/:id/transfer", b.Transfer, middleware.RequirePermission(svc, ledger.PermTransferToken))

	// Wastage
	g.POST("/wastage", w.Log, middleware.RequirePermission(svc, ledger.PermLogWastage))
	g.GET("/wastage", w.List)
	g.POST("/wastage/:id/decide", w.Decide, middleware.RequirePermission(svc, ledger.PermApproveWastage))
	g.GET("/wastage/thresholds", w.Thresholds)
	g.PUT("/wastage/thresholds/:operation_type", w.UpdateThreshold, middleware.RequirePermission(svc, ledger.PermUpdateThresholds))

	// Products
	g.POST("/products", p.Create, middleware.RequirePermission(svc, ledger.PermCreateProduct))
	g.GET("/products", p.List)
	g.GET("/products/:id", p.Get)
	g.GET("/products/:id/trace", p.Trace)
	g.POST("/products/:id/transfer", p.Transfer, middleware.RequirePermission(svc, ledger.PermTransferToken))
}

// RegisterAdmin registers the admin portal routes.
func RegisterAdmin(e *echo.Echo, svc *ledger.Service, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))

	g.POST("/participants", a.CreateParticipant, middleware.RequirePermission(svc, ledger.PermManageParticipants))
	g.GET("/participants", a.ListParticipants, middleware.RequirePermission(svc, ledger.PermManageParticipants))
	g.PUT("/participants/:id/overrides", a.SetOverrides, middleware.RequirePermission(svc, ledger.PermManageParticipants))
	g.PUT("/participants/:id/active", a.SetActive, middleware.RequirePermission(svc, ledger.PermManageParticipants))
	g.GET("/stats", a.Stats)
	g.GET("/audit", a.AuditTail, middleware.RequirePermission(svc, ledger.PermViewAll))
}

// RegisterPublic registers the anonymous verification route, rate
// limited and cached: provenance rarely changes and QR scans arrive in
// bursts.
func RegisterPublic(e *echo.Echo, p *handler.ProductHandler,
	cacheCfg config.CacheConfig, rlCfg config.RateLimitConfig, rdb *redis.Client) {

	e.GET("/v1/verify/products/:id", p.Trace,
		middleware.NewTokenBucket(rlCfg, rdb),
		middleware.NewRedisCache(cacheCfg, rdb))
}
