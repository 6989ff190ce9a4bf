package server

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"erebus/pkg/chain"
	"erebus/pkg/metadata"
	"erebus/pkg/relay"
	"erebus/pkg/swap"
	"erebus/pkg/types"
)

// ChainReader is the read-only chain access the API handlers need
type ChainReader interface {
	Balance(ctx context.Context, address string) (uint64, error)
	TokenBalance(ctx context.Context, wallet, mint string) (uint64, uint8, error)
	TokenHoldings(ctx context.Context, wallet string) ([]chain.TokenHolding, error)
}

// HistoryReader queries persisted transfer records
type HistoryReader interface {
	ByWallet(ctx context.Context, wallet string, limit int) ([]types.TransferRecord, error)
}

// Deps wires the API server to its collaborators
type Deps struct {
	Relay      *relay.Service
	Chain      ChainReader
	Resolver   *metadata.Resolver
	CryptoAPIs *metadata.CryptoAPIsSource
	Swap       *swap.Client
	History    HistoryReader
}

// Server exposes the relay, token, swap, balance, history and treasury
// APIs over HTTP
type Server struct {
	app  *fiber.App
	deps Deps
}

// New builds the fiber app and registers all routes under /api
func New(deps Deps) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
		}),
		deps: deps,
	}

	api := s.app.Group("/api")

	api.Get("/", s.handleRoot)
	api.Get("/treasury/address", s.handleTreasuryAddress)
	api.Get("/balance/:address", s.handleBalance)
	api.Get("/token-balance/:wallet/:mint", s.handleTokenBalance)
	api.Get("/token-list", s.handleTokenList)
	api.Get("/token-info/:mint", s.handleTokenInfo)
	api.Get("/token-metadata/cryptoapis/:mint", s.handleCryptoAPIsMetadata)
	api.Get("/wallet-tokens/:address", s.handleWalletTokens)
	api.Get("/transactions/:address", s.handleTransactions)
	api.Post("/swap/quote", s.handleSwapQuote)
	api.Post("/transfer/sol/prepare", s.handlePrepareSOL)
	api.Post("/transfer/sol/execute", s.handleExecute)
	api.Post("/transfer/token/prepare", s.handlePrepareToken)
	api.Post("/transfer/token/execute", s.handleExecute)

	return s
}

// App exposes the fiber app for tests
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves the API on addr until shutdown
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
