package server

import (
	"context"
	"fmt"
	"net"
	stdhttp "net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lumenbrowser/lumen/backend/internal/gateway"
	"github.com/lumenbrowser/lumen/backend/internal/http"
	"github.com/lumenbrowser/lumen/backend/internal/infrastructure/config"
	"github.com/lumenbrowser/lumen/backend/internal/infrastructure/logging"
	"github.com/lumenbrowser/lumen/backend/internal/infrastructure/monitoring"
	"github.com/lumenbrowser/lumen/backend/internal/ledger"
	"github.com/lumenbrowser/lumen/backend/internal/middleware"
	"github.com/lumenbrowser/lumen/backend/internal/permission"
	"github.com/lumenbrowser/lumen/backend/internal/storage"
	"github.com/lumenbrowser/lumen/backend/internal/vault"
	"github.com/lumenbrowser/lumen/backend/internal/wallet"
	"github.com/lumenbrowser/lumen/backend/internal/ws"
)

// Server wraps the HTTP server and the wallet core's long-lived
// components.
type Server struct {
	cfg        *config.Config
	logger     *logging.Logger
	httpServer *stdhttp.Server

	wallet     *wallet.Manager
	broker     *permission.Broker
	ledger     *ledger.Ledger
	reconciler *ledger.Reconciler
	hub        *ws.Hub
}

// New wires the full wallet core from configuration.
func New(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	metrics := monitoring.NewMetrics()

	dataDir := storage.ExpandHome(cfg.Wallet.DataDir)
	walletStore, err := storage.NewStore(filepath.Join(dataDir, "wallet.json"))
	if err != nil {
		return nil, err
	}
	permissionStore, err := storage.NewStore(filepath.Join(dataDir, "permissions.json"))
	if err != nil {
		return nil, err
	}
	ledgerStore, err := storage.NewStore(filepath.Join(dataDir, "transactions.json"))
	if err != nil {
		return nil, err
	}

	networks, err := gateway.LoadNetworks(cfg.Gateway.NetworksFile)
	if err != nil {
		return nil, err
	}
	network, err := gateway.SelectNetwork(networks, cfg.Gateway.Network)
	if err != nil {
		return nil, err
	}

	gw := gateway.NewClient(cfg.Gateway.Endpoint, logger)

	walletManager := wallet.NewManager(
		vault.NewCipher(),
		walletStore,
		gw,
		network,
		logger,
		metrics,
		cfg.Wallet.AutoLockIdle,
	)

	hub := ws.NewHub(logger, metrics)

	broker, err := permission.NewBroker(permissionStore, hub, logger, metrics, cfg.Approval.Timeout)
	if err != nil {
		return nil, err
	}
	hub.SetBroker(broker)
	broker.SetAddressProvider(func() string {
		address, err := walletManager.Address()
		if err != nil {
			return ""
		}
		return address
	})

	txLedger, err := ledger.NewLedger(ledgerStore, gw, network, logger, metrics, cfg.Ledger.NotFoundGrace)
	if err != nil {
		return nil, err
	}
	reconciler := ledger.NewReconciler(txLedger, logger, cfg.Ledger.ReconcileInterval)

	router := buildRouter(cfg, metrics, walletManager, broker, txLedger, hub)

	return &Server{
		cfg:    cfg,
		logger: logger.Named("server"),
		httpServer: &stdhttp.Server{
			Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0, // approval requests block up to the negotiation timeout
		},
		wallet:     walletManager,
		broker:     broker,
		ledger:     txLedger,
		reconciler: reconciler,
		hub:        hub,
	}, nil
}

func buildRouter(
	cfg *config.Config,
	metrics *monitoring.Metrics,
	walletManager *wallet.Manager,
	broker *permission.Broker,
	txLedger *ledger.Ledger,
	hub *ws.Hub,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	router.Use(metrics.Middleware())
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := http.NewHandlers(walletManager, broker, txLedger, hub)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/metrics", monitoring.Handler())

	// Wallet session
	router.POST("/wallet", handlers.CreateWallet)
	router.POST("/wallet/import", handlers.ImportWallet)
	router.POST("/wallet/unlock", handlers.UnlockWallet)
	router.POST("/wallet/lock", handlers.LockWallet)
	router.GET("/wallet/status", handlers.WalletStatus)
	router.GET("/wallet/address", handlers.WalletAddress)
	router.GET("/wallet/balance", handlers.WalletBalance)
	router.POST("/wallet/export", handlers.ExportKey)
	router.POST("/wallet/sign", handlers.SignMessage)
	router.DELETE("/wallet", handlers.DeleteWallet)

	// Dapp bridge
	router.POST("/dapp/request", handlers.RequestCapabilities)
	router.POST("/dapp/resolve", handlers.ResolveApproval)
	router.GET("/dapp/connections", handlers.ListConnections)
	router.DELETE("/dapp/connections", handlers.Disconnect)
	router.DELETE("/dapp/connections/capability", handlers.RevokeCapability)
	router.POST("/dapp/sign", handlers.DappSign)
	router.POST("/dapp/view-key", handlers.DappViewKey)

	// Transactions
	router.POST("/transactions/send", handlers.SendTransaction)
	router.POST("/transactions/execute", handlers.ExecuteProgram)
	router.GET("/transactions", handlers.ListTransactions)
	router.GET("/transactions/stats", handlers.TransactionStats)
	router.DELETE("/transactions/:id", handlers.DeleteTransaction)
	router.DELETE("/transactions", handlers.ClearTransactions)

	// WebSocket event channel
	router.GET("/stream", hub.HandleConnection)

	return router
}

// Run starts the reconciler and serves HTTP until ctx is cancelled,
// then shuts everything down in order.
func (s *Server) Run(ctx context.Context) error {
	s.reconciler.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("wallet core listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.shutdown()
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http shutdown failed", zap.Error(err))
		}
		s.shutdown()
		return nil
	}
}

// shutdown stops background work and locks the wallet so no secret
// material outlives the process's working state.
func (s *Server) shutdown() {
	s.reconciler.Stop()
	s.broker.Close()
	s.wallet.Close()
	s.logger.Info("wallet core stopped")
}
