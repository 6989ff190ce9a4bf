package server

import (
	"errors"
	"log"
	"sort"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"erebus/pkg/chain"
	"erebus/pkg/metadata"
	"erebus/pkg/relay"
	"erebus/pkg/types"
)

func (s *Server) handleRoot(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "Erebus Relay API - private transfers on Solana"})
}

func (s *Server) handleTreasuryAddress(c *fiber.Ctx) error {
	return c.JSON(types.TreasuryResponse{
		Address: s.deps.Relay.TreasuryAddress(),
		Message: "Treasury wallet address",
	})
}

func (s *Server) handleBalance(c *fiber.Ctx) error {
	address := c.Params("address")

	lamports, err := s.deps.Chain.Balance(c.Context(), address)
	if err != nil {
		return apiError(c, fiber.StatusBadRequest, err)
	}

	return c.JSON(types.BalanceResponse{
		Address: address,
		Balance: float64(lamports) / chain.LamportsPerSOL,
	})
}

func (s *Server) handleTokenBalance(c *fiber.Ctx) error {
	wallet := c.Params("wallet")
	mint := c.Params("mint")

	amount, decimals, err := s.deps.Chain.TokenBalance(c.Context(), wallet, mint)
	if err != nil {
		// Wallets without a token account simply hold zero
		log.Printf("server: token balance lookup failed for %s/%s: %v", wallet, mint, err)
		return c.JSON(types.TokenBalanceResponse{Mint: mint, RawBalance: "0"})
	}

	return c.JSON(types.TokenBalanceResponse{
		Balance:    float64(amount) / pow10f(decimals),
		Decimals:   decimals,
		Mint:       mint,
		RawBalance: strconv.FormatUint(amount, 10),
	})
}

func (s *Server) handleTokenList(c *fiber.Ctx) error {
	return c.JSON(metadata.PopularTokens())
}

func (s *Server) handleTokenInfo(c *fiber.Ctx) error {
	mint := c.Params("mint")
	return c.JSON(s.deps.Resolver.Resolve(c.Context(), mint))
}

func (s *Server) handleCryptoAPIsMetadata(c *fiber.Ctx) error {
	mint := c.Params("mint")
	network := c.Query("network")

	info, err := s.deps.CryptoAPIs.ResolveNetwork(c.Context(), mint, network)
	if err != nil {
		return apiError(c, fiber.StatusBadGateway, err)
	}
	if info == nil {
		return apiError(c, fiber.StatusNotFound, errors.New("token not found on cryptoapis"))
	}

	return c.JSON(info)
}

func (s *Server) handleWalletTokens(c *fiber.Ctx) error {
	address := c.Params("address")

	holdings, err := s.deps.Chain.TokenHoldings(c.Context(), address)
	if err != nil {
		// A wallet with no token accounts is not an error condition
		log.Printf("server: token holdings lookup failed for %s: %v", address, err)
		return c.JSON(types.WalletTokensResponse{Tokens: []types.WalletToken{}})
	}

	mints := make([]string, 0, len(holdings))
	for _, h := range holdings {
		mints = append(mints, h.Mint)
	}
	resolved := s.deps.Resolver.ResolveBatch(c.Context(), mints)

	tokens := make([]types.WalletToken, 0, len(holdings))
	for _, h := range holdings {
		info := resolved[h.Mint]
		balance := float64(h.RawAmount) / pow10f(info.Decimals)
		if balance <= 0 {
			continue
		}
		tokens = append(tokens, types.WalletToken{
			TokenInfo:  *info,
			Balance:    balance,
			RawBalance: strconv.FormatUint(h.RawAmount, 10),
		})
	}

	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].Balance > tokens[j].Balance
	})

	return c.JSON(types.WalletTokensResponse{Tokens: tokens, Count: len(tokens)})
}

func (s *Server) handleTransactions(c *fiber.Ctx) error {
	address := c.Params("address")
	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	records, err := s.deps.History.ByWallet(c.Context(), address, limit)
	if err != nil {
		return apiError(c, fiber.StatusInternalServerError, err)
	}
	if records == nil {
		records = []types.TransferRecord{}
	}

	return c.JSON(types.TransactionsResponse{Transactions: records})
}

func (s *Server) handleSwapQuote(c *fiber.Ctx) error {
	var req types.SwapQuoteRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, fiber.StatusBadRequest, err)
	}

	quote, err := s.deps.Swap.GetQuote(c.Context(), &req)
	if err != nil {
		return apiError(c, fiber.StatusBadRequest, err)
	}

	return c.JSON(quote)
}

func (s *Server) handlePrepareSOL(c *fiber.Ctx) error {
	var req types.TransferPrepareRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, fiber.StatusBadRequest, err)
	}

	resp, err := s.deps.Relay.Prepare(&req)
	if err != nil {
		return relayError(c, err)
	}

	return c.JSON(resp)
}

func (s *Server) handlePrepareToken(c *fiber.Ctx) error {
	var req types.TokenTransferPrepareRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, fiber.StatusBadRequest, err)
	}

	resp, err := s.deps.Relay.PrepareToken(&req)
	if err != nil {
		return relayError(c, err)
	}

	return c.JSON(resp)
}

// handleExecute serves both the SOL and token execute routes: the quote
// already knows which asset it moves
func (s *Server) handleExecute(c *fiber.Ctx) error {
	var req types.TransferExecuteRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, fiber.StatusBadRequest, err)
	}

	resp, err := s.deps.Relay.Execute(c.Context(), &req)
	if err != nil {
		return relayError(c, err)
	}

	return c.JSON(resp)
}

// relayError maps the relay failure classes onto HTTP statuses
func relayError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, relay.ErrInvalidAddress), errors.Is(err, relay.ErrInvalidAmount):
		return apiError(c, fiber.StatusBadRequest, err)
	case errors.Is(err, relay.ErrQuoteNotFound):
		return apiError(c, fiber.StatusNotFound, err)
	case errors.Is(err, relay.ErrPaymentVerificationFailed):
		return apiError(c, fiber.StatusPaymentRequired, err)
	case errors.Is(err, relay.ErrForwardingFailed):
		return apiError(c, fiber.StatusBadGateway, err)
	default:
		return apiError(c, fiber.StatusInternalServerError, err)
	}
}

func apiError(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(types.ErrorResponse{Error: err.Error()})
}

func pow10f(decimals uint8) float64 {
	result := 1.0
	for i := uint8(0); i < decimals; i++ {
		result *= 10
	}
	return result
}
