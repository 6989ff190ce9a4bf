package chain

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
)

// LamportsPerSOL is the number of base units in one SOL
const LamportsPerSOL = 1_000_000_000

// Client wraps a Solana JSON-RPC endpoint with the operations the relay
// and CLI need. Signing keys are passed per call; the client itself holds
// no secrets.
type Client struct {
	rpc        *rpc.Client
	commitment rpc.CommitmentType
}

// New creates a client for the given RPC endpoint
func New(rpcURL string) *Client {
	return &Client{
		rpc:        rpc.New(rpcURL),
		commitment: rpc.CommitmentConfirmed,
	}
}

// Balance returns the native balance of an address in lamports
func (c *Client) Balance(ctx context.Context, address string) (uint64, error) {
	pubkey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return 0, fmt.Errorf("invalid address: %w", err)
	}

	result, err := c.rpc.GetBalance(ctx, pubkey, c.commitment)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}

	return result.Value, nil
}

// TokenBalance returns the balance of a wallet's associated token account
// in the token's smallest unit, plus the token's decimals. A missing
// token account reads as zero.
func (c *Client) TokenBalance(ctx context.Context, wallet, mint string) (uint64, uint8, error) {
	owner, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid wallet address: %w", err)
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid mint address: %w", err)
	}

	ata, _, err := solana.FindAssociatedTokenAddress(owner, mintKey)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to derive associated token address: %w", err)
	}

	result, err := c.rpc.GetTokenAccountBalance(ctx, ata, c.commitment)
	if err != nil {
		if strings.Contains(err.Error(), "could not find account") ||
			strings.Contains(err.Error(), "not found") {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("failed to get token balance: %w", err)
	}

	amount, err := strconv.ParseUint(result.Value.Amount, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse token balance: %w", err)
	}

	return amount, result.Value.Decimals, nil
}

// MintDecimals reads a token mint's decimals from its on-chain account.
// The decimals field sits at byte offset 44 of the SPL mint layout.
func (c *Client) MintDecimals(ctx context.Context, mint string) (uint8, error) {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return 0, fmt.Errorf("invalid mint address: %w", err)
	}

	accountInfo, err := c.rpc.GetAccountInfo(ctx, mintKey)
	if err != nil {
		return 0, fmt.Errorf("failed to get mint account info: %w", err)
	}
	if accountInfo.Value == nil {
		return 0, fmt.Errorf("mint account not found")
	}

	data := accountInfo.Value.Data.GetBinary()
	if len(data) < 45 {
		return 0, fmt.Errorf("invalid mint account data")
	}

	return data[44], nil
}

// TokenHolding is one SPL token account owned by a wallet
type TokenHolding struct {
	Mint      string
	RawAmount uint64
}

// TokenHoldings lists all SPL token accounts owned by a wallet with a
// non-zero balance. Mint sits at bytes 0-32 and the amount at bytes
// 64-72 of the token account layout.
func (c *Client) TokenHoldings(ctx context.Context, wallet string) ([]TokenHolding, error) {
	owner, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet address: %w", err)
	}

	result, err := c.rpc.GetTokenAccountsByOwner(
		ctx,
		owner,
		&rpc.GetTokenAccountsConfig{ProgramId: solana.TokenProgramID.ToPointer()},
		&rpc.GetTokenAccountsOpts{Encoding: solana.EncodingBase64},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get token accounts: %w", err)
	}

	var holdings []TokenHolding
	for _, account := range result.Value {
		data := account.Account.Data.GetBinary()
		if len(data) < 72 {
			continue
		}
		amount := binary.LittleEndian.Uint64(data[64:72])
		if amount == 0 {
			continue
		}
		mint := solana.PublicKeyFromBytes(data[0:32])
		holdings = append(holdings, TokenHolding{
			Mint:      mint.String(),
			RawAmount: amount,
		})
	}

	return holdings, nil
}

// SendNative transfers lamports from the signer to the recipient and
// returns the transaction signature
func (c *Client) SendNative(ctx context.Context, signer solana.PrivateKey, to string, lamports uint64) (string, error) {
	recipient, err := solana.PublicKeyFromBase58(to)
	if err != nil {
		return "", fmt.Errorf("invalid recipient address: %w", err)
	}

	from := signer.PublicKey()

	recent, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", fmt.Errorf("failed to get recent blockhash: %w", err)
	}

	instruction := system.NewTransferInstruction(
		lamports,
		from,
		recipient,
	).Build()

	tx, err := solana.NewTransaction(
		[]solana.Instruction{instruction},
		recent.Value.Blockhash,
		solana.TransactionPayer(from),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create transaction: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(from) {
			return &signer
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	return sig.String(), nil
}

// SendToken transfers SPL tokens from the signer's associated token
// account to the recipient's, creating the destination account when it
// does not exist yet
func (c *Client) SendToken(ctx context.Context, signer solana.PrivateKey, to, mint string, amount uint64) (string, error) {
	recipient, err := solana.PublicKeyFromBase58(to)
	if err != nil {
		return "", fmt.Errorf("invalid recipient address: %w", err)
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return "", fmt.Errorf("invalid mint address: %w", err)
	}

	from := signer.PublicKey()

	sourceATA, _, err := solana.FindAssociatedTokenAddress(from, mintKey)
	if err != nil {
		return "", fmt.Errorf("failed to derive source token account: %w", err)
	}
	destATA, _, err := solana.FindAssociatedTokenAddress(recipient, mintKey)
	if err != nil {
		return "", fmt.Errorf("failed to derive destination token account: %w", err)
	}

	destExists, err := c.accountExists(ctx, destATA)
	if err != nil {
		return "", fmt.Errorf("failed to check destination account: %w", err)
	}

	recent, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", fmt.Errorf("failed to get recent blockhash: %w", err)
	}

	instructions := []solana.Instruction{}

	if !destExists {
		createAccountIx := associatedtokenaccount.NewCreateInstruction(
			from,      // payer
			recipient, // wallet
			mintKey,   // mint
		).Build()
		instructions = append(instructions, createAccountIx)
	}

	transferIx := token.NewTransferInstruction(
		amount,
		sourceATA,
		destATA,
		from,
		[]solana.PublicKey{},
	).Build()
	instructions = append(instructions, transferIx)

	tx, err := solana.NewTransaction(
		instructions,
		recent.Value.Blockhash,
		solana.TransactionPayer(from),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create transaction: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(from) {
			return &signer
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	return sig.String(), nil
}

// Confirm blocks until the signature reaches confirmed or finalized
// commitment, or the timeout elapses
func (c *Client) Confirm(ctx context.Context, signature string, timeout time.Duration) error {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return fmt.Errorf("invalid signature: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for confirmation of %s", signature)
		default:
			status, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
			if err == nil && len(status.Value) > 0 && status.Value[0] != nil {
				if status.Value[0].Err != nil {
					return fmt.Errorf("transaction %s failed on-chain", signature)
				}
				if status.Value[0].ConfirmationStatus == rpc.ConfirmationStatusFinalized ||
					status.Value[0].ConfirmationStatus == rpc.ConfirmationStatusConfirmed {
					return nil
				}
			}
			time.Sleep(200 * time.Millisecond)
		}
	}
}

// VerifyPayment checks that a confirmed transaction moved at least
// minAmount from the payer to the recipient. For a native payment
// (empty mint) minAmount is lamports and the check reads the
// recipient's pre/post lamport balances; for an SPL payment minAmount
// is in the token's smallest unit and the check reads the pre/post
// token balances of the recipient-owned account for that mint. Either
// way the amount comes from the transaction meta, so a client-declared
// figure is never trusted.
func (c *Client) VerifyPayment(ctx context.Context, signature, from, to, mint string, minAmount uint64) error {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return fmt.Errorf("invalid payment signature: %w", err)
	}
	fromKey, err := solana.PublicKeyFromBase58(from)
	if err != nil {
		return fmt.Errorf("invalid payer address: %w", err)
	}
	toKey, err := solana.PublicKeyFromBase58(to)
	if err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}

	result, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: c.commitment,
	})
	if err != nil {
		return fmt.Errorf("failed to get payment transaction: %w", err)
	}
	if result == nil || result.Meta == nil {
		return fmt.Errorf("payment transaction not found")
	}
	if result.Meta.Err != nil {
		return fmt.Errorf("payment transaction failed on-chain")
	}

	tx, err := result.Transaction.GetTransaction()
	if err != nil {
		return fmt.Errorf("failed to decode payment transaction: %w", err)
	}

	keys := tx.Message.AccountKeys
	if len(keys) == 0 || !keys[0].Equals(fromKey) {
		return fmt.Errorf("payment was not signed by %s", from)
	}

	if mint != "" {
		return verifyTokenCredit(result.Meta, toKey, mint, minAmount)
	}
	return verifyLamportCredit(result.Meta, keys, toKey, minAmount)
}

func verifyLamportCredit(meta *rpc.TransactionMeta, keys []solana.PublicKey, toKey solana.PublicKey, minLamports uint64) error {
	toIndex := -1
	for i, key := range keys {
		if key.Equals(toKey) {
			toIndex = i
			break
		}
	}
	if toIndex < 0 {
		return fmt.Errorf("payment does not credit %s", toKey)
	}
	if toIndex >= len(meta.PreBalances) || toIndex >= len(meta.PostBalances) {
		return fmt.Errorf("payment transaction meta is incomplete")
	}

	pre := meta.PreBalances[toIndex]
	post := meta.PostBalances[toIndex]
	if post < pre || post-pre < minLamports {
		return fmt.Errorf("payment of %d lamports is below the required %d", post-pre, minLamports)
	}

	return nil
}

// verifyTokenCredit checks the token-balance deltas for the account of
// the given mint owned by toKey. The token payment lands on the
// recipient's associated token account, not the recipient address
// itself, so lamport balances say nothing here.
func verifyTokenCredit(meta *rpc.TransactionMeta, toKey solana.PublicKey, mint string, minAmount uint64) error {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return fmt.Errorf("invalid mint address: %w", err)
	}

	accountIndex := -1
	var post uint64
	for _, balance := range meta.PostTokenBalances {
		if balance.Owner == nil || !balance.Owner.Equals(toKey) || !balance.Mint.Equals(mintKey) {
			continue
		}
		if balance.UiTokenAmount == nil {
			return fmt.Errorf("payment transaction meta is incomplete")
		}
		amount, err := strconv.ParseUint(balance.UiTokenAmount.Amount, 10, 64)
		if err != nil {
			return fmt.Errorf("failed to parse token balance: %w", err)
		}
		accountIndex = int(balance.AccountIndex)
		post = amount
		break
	}
	if accountIndex < 0 {
		return fmt.Errorf("payment does not credit a token account of %s for mint %s", toKey, mint)
	}

	// A freshly created destination account has no pre entry; it starts
	// from zero
	var pre uint64
	for _, balance := range meta.PreTokenBalances {
		if int(balance.AccountIndex) != accountIndex {
			continue
		}
		if balance.UiTokenAmount == nil {
			return fmt.Errorf("payment transaction meta is incomplete")
		}
		amount, err := strconv.ParseUint(balance.UiTokenAmount.Amount, 10, 64)
		if err != nil {
			return fmt.Errorf("failed to parse token balance: %w", err)
		}
		pre = amount
		break
	}

	if post < pre || post-pre < minAmount {
		return fmt.Errorf("token payment of %d is below the required %d", post-pre, minAmount)
	}

	return nil
}

// accountExists checks if an account exists on-chain
func (c *Client) accountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	accountInfo, err := c.rpc.GetAccountInfo(ctx, account)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return false, nil
		}
		return false, err
	}
	return accountInfo.Value != nil, nil
}
