package handler

import (
	"cbdc-ledger/internal/adapter/http/middleware"
	redisStore "cbdc-ledger/internal/adapter/storage/redis"
	"cbdc-ledger/internal/core/domain"
	"cbdc-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc          ports.AuthService
	LedgerSvc        ports.LedgerService
	SettlementSvc    ports.SettlementService
	ReportingSvc     ports.ReportingService
	IntermediaryRepo ports.IntermediaryRepository
	EncSvc           ports.EncryptionService
	SigSvc           ports.SignatureService
	NonceStore       ports.NonceStore
	TokenSvc         ports.TokenService
	RateLimitStore   *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers   []ports.HealthChecker
	Logger           zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (verifies PostgreSQL and Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	centralBankOnly := middleware.RequireRole(domain.RoleCentralBank)

	// --- Operator auth (login is public, onboarding is central-bank only) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/login", rl("auth_login"), authHandler.Login)
		auth.POST("/intermediaries", jwtAuth, centralBankOnly, rl("auth_onboard"), authHandler.Onboard)
	}

	// --- Governance routes (JWT, central-bank role) ---
	ledgerHandler := NewLedgerHandler(deps.LedgerSvc)
	ledger := v1.Group("/ledger", jwtAuth, centralBankOnly)
	{
		ledger.POST("/issue", rl("ledger_ops"), ledgerHandler.Issue)
		ledger.POST("/redeem", rl("ledger_ops"), ledgerHandler.Redeem)
	}

	accounts := v1.Group("/accounts", jwtAuth, centralBankOnly)
	{
		accounts.POST("/:id/freeze", rl("ledger_ops"), ledgerHandler.Freeze)
		accounts.POST("/:id/unfreeze", rl("ledger_ops"), ledgerHandler.Unfreeze)
		accounts.POST("/:id/blacklist", rl("ledger_ops"), ledgerHandler.Blacklist)
	}

	// --- HMAC-authenticated routes (intermediary API) ---
	hmacAuth := middleware.HMACAuth(deps.IntermediaryRepo, deps.EncSvc, deps.SigSvc, deps.NonceStore, deps.Logger)
	walletHandler := NewWalletHandler(deps.LedgerSvc)

	wallets := v1.Group("/wallets", hmacAuth)
	{
		wallets.POST("", rl("transfers"), walletHandler.CreateWallet)
		wallets.GET("/:id", rl("dashboard"), walletHandler.GetWallet)
	}

	transfers := v1.Group("/transfers", hmacAuth)
	{
		transfers.POST("", rl("transfers"), walletHandler.Transfer)
	}

	offlineHandler := NewOfflineHandler(deps.SettlementSvc)
	offline := v1.Group("/offline", hmacAuth)
	{
		offline.POST("/devices", rl("transfers"), offlineHandler.RegisterDevice)
		offline.POST("/fund", rl("offline_fund"), offlineHandler.FundOffline)
		offline.POST("/settle", rl("offline_settle"), offlineHandler.Settle)
		offline.POST("/reconcile", rl("offline_settle"), offlineHandler.Reconcile)
	}

	// --- Audit & supply (JWT-authenticated dashboards) ---
	auditHandler := NewAuditHandler(deps.ReportingSvc)
	audit := v1.Group("/audit", jwtAuth)
	{
		audit.GET("/entries", rl("dashboard"), auditHandler.ListEntries)
		audit.GET("/stats", rl("dashboard"), auditHandler.GetStats)
		audit.GET("/supply", rl("dashboard"), auditHandler.GetSupply)
	}

	return r
}
