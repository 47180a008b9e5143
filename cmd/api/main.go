package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cbdc-ledger/config"
	httpHandler "cbdc-ledger/internal/adapter/http/handler"
	pgStorage "cbdc-ledger/internal/adapter/storage/postgres"
	redisStorage "cbdc-ledger/internal/adapter/storage/redis"
	"cbdc-ledger/internal/core/domain"
	"cbdc-ledger/internal/core/ports"
	"cbdc-ledger/internal/service"
	"cbdc-ledger/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("ledger_id", cfg.Ledger.ID).
		Int("port", cfg.Server.Port).
		Msg("Starting CBDC ledger core")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	accountRepo := pgStorage.NewAccountRepo(pool)
	entryRepo := pgStorage.NewLedgerEntryRepo(pool)
	nonceRepo := pgStorage.NewNonceRepo(pool)
	purseRepo := pgStorage.NewPurseRepo(pool)
	intermediaryRepo := pgStorage.NewIntermediaryRepo(pool)
	supplyRepo := pgStorage.NewSupplyRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	nonceStore := redisStorage.NewNonceStore(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	verifier := service.NewVoucherVerifier()
	authorizer := service.NewAuthorizer(intermediaryRepo)

	policies := buildPolicyTable(cfg.Policy)

	// Initialize business services
	ledgerSvc := service.NewLedgerService(accountRepo, entryRepo, supplyRepo, authorizer, transactor, policies, log)
	settlementSvc := service.NewSettlementService(accountRepo, purseRepo, nonceRepo, entryRepo, verifier, transactor, policies, cfg.Ledger.ID, log)
	authSvc := service.NewAuthService(intermediaryRepo, ledgerSvc, authorizer, hashSvc, encSvc, tokenSvc, log)
	reportingSvc := service.NewReportingService(entryRepo, supplyRepo)

	// Seed the central-bank operator and reserve account on first start
	if err := bootstrapCentralBank(ctx, cfg, intermediaryRepo, accountRepo, hashSvc, encSvc, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to bootstrap central bank")
	}

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:          authSvc,
		LedgerSvc:        ledgerSvc,
		SettlementSvc:    settlementSvc,
		ReportingSvc:     reportingSvc,
		IntermediaryRepo: intermediaryRepo,
		EncSvc:           encSvc,
		SigSvc:           sigSvc,
		NonceStore:       nonceStore,
		TokenSvc:         tokenSvc,
		RateLimitStore:   rateLimitStore,
		HealthCheckers:   []ports.HealthChecker{pgHealth, redisHealth},
		Logger:           log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// buildPolicyTable converts the configured tier limits into the domain table.
func buildPolicyTable(cfg config.PolicyConfig) domain.PolicyTable {
	toPolicy := func(c config.TierPolicyConfig) domain.TierPolicy {
		return domain.TierPolicy{
			DailyTransferLimit: c.DailyTransferLimit,
			OfflineMaxBalance:  c.OfflineMaxBalance,
			OfflineTxLimit:     c.OfflineTxLimit,
			OfflineVoucherTTL:  c.OfflineVoucherTTL,
		}
	}
	return domain.PolicyTable{
		0: toPolicy(cfg.Tier0),
		1: toPolicy(cfg.Tier1),
		2: toPolicy(cfg.Tier2),
	}
}

// bootstrapCentralBank seeds the central-bank operator and its reserve account
// if they do not exist yet. The secret key is logged only on first creation.
func bootstrapCentralBank(
	ctx context.Context,
	cfg *config.Config,
	intermediaryRepo ports.IntermediaryRepository,
	accountRepo ports.AccountRepository,
	hashSvc ports.HashService,
	encSvc ports.EncryptionService,
	log zerolog.Logger,
) error {
	cb := cfg.Ledger.CentralBank

	existing, err := intermediaryRepo.GetByUsername(ctx, cb.Username)
	if err != nil {
		return fmt.Errorf("looking up central bank operator: %w", err)
	}
	if existing != nil {
		return nil
	}

	if cb.Password == "" {
		return fmt.Errorf("central bank password not configured (CBL_LEDGER_CENTRAL_BANK_PASSWORD)")
	}

	passwordHash, err := hashSvc.Hash(cb.Password)
	if err != nil {
		return fmt.Errorf("hashing central bank password: %w", err)
	}

	accessKey, err := randomHex(32)
	if err != nil {
		return err
	}
	secretKey, err := randomHex(32)
	if err != nil {
		return err
	}
	secretEnc, err := encSvc.Encrypt(secretKey)
	if err != nil {
		return fmt.Errorf("encrypting central bank secret key: %w", err)
	}

	now := time.Now()
	intermediaryID := uuid.New()

	account, err := accountRepo.GetByID(ctx, cb.AccountID)
	if err != nil {
		return fmt.Errorf("looking up reserve account: %w", err)
	}
	if account == nil {
		if err := accountRepo.Create(ctx, &domain.Account{
			ID:             cb.AccountID,
			OwnerID:        cb.Username,
			IntermediaryID: intermediaryID.String(),
			Type:           domain.AccountTypeCentralBank,
			Tier:           2,
			Balance:        0,
			Status:         domain.AccountStatusActive,
			KYCLevel:       2,
			CreatedAt:      now,
			UpdatedAt:      now,
		}); err != nil {
			return fmt.Errorf("creating reserve account: %w", err)
		}
	}

	if err := intermediaryRepo.Create(ctx, &domain.Intermediary{
		ID:           intermediaryID,
		Username:     cb.Username,
		PasswordHash: passwordHash,
		Name:         cb.Name,
		Role:         domain.RoleCentralBank,
		AccountID:    cb.AccountID,
		AccessKey:    accessKey,
		SecretKeyEnc: secretEnc,
		Status:       domain.IntermediaryStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		return fmt.Errorf("creating central bank operator: %w", err)
	}

	log.Info().
		Str("username", cb.Username).
		Str("account_id", cb.AccountID).
		Str("access_key", accessKey).
		Str("secret_key", secretKey).
		Msg("Central bank operator created; store the key pair now, it is not shown again")

	return nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating random key: %w", err)
	}
	return hex.EncodeToString(b), nil
}
