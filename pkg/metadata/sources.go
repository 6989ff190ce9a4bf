package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"erebus/pkg/types"
)

// BulkListSource is tier 1: a bulk token list fetched lazily once per
// process and shared by every resolution. Concurrent first lookups share
// a single in-flight load through the singleflight group.
type BulkListSource struct {
	url    string
	seed   []types.TokenInfo
	client *http.Client

	group singleflight.Group
	mu    sync.RWMutex
	list  map[string]types.TokenInfo // nil until first load
}

// NewBulkListSource creates the bulk-list tier. The seed entries back
// the list when the upstream fetch fails, so well-known tokens still
// resolve offline.
func NewBulkListSource(url string, seed []types.TokenInfo) *BulkListSource {
	return &BulkListSource{
		url:    url,
		seed:   seed,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *BulkListSource) Name() string { return "bulk-list" }

// Resolve looks the mint up in the cached list, loading it on first use
func (s *BulkListSource) Resolve(ctx context.Context, mint string) (*types.TokenInfo, error) {
	list := s.tokenMap(ctx)
	if token, ok := list[mint]; ok {
		token.Source = "jupiter"
		return &token, nil
	}
	return nil, nil
}

// ClearCache drops the loaded list so the next resolution reloads it
func (s *BulkListSource) ClearCache() {
	s.mu.Lock()
	s.list = nil
	s.mu.Unlock()
}

func (s *BulkListSource) tokenMap(ctx context.Context) map[string]types.TokenInfo {
	s.mu.RLock()
	list := s.list
	s.mu.RUnlock()
	if list != nil {
		return list
	}

	v, _, _ := s.group.Do("load", func() (interface{}, error) {
		// Re-check: a previous flight may have populated the list while
		// this caller queued on the group
		s.mu.RLock()
		existing := s.list
		s.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		loaded := s.seedMap()
		fetched, err := s.fetch(ctx)
		if err != nil {
			// Failed loads still cache the seed so every miss does not
			// re-hit a dead upstream
			log.Printf("metadata: bulk list load failed, serving seed list: %v", err)
		} else {
			for addr, token := range fetched {
				loaded[addr] = token
			}
		}

		s.mu.Lock()
		s.list = loaded
		s.mu.Unlock()
		return loaded, nil
	})

	return v.(map[string]types.TokenInfo)
}

func (s *BulkListSource) seedMap() map[string]types.TokenInfo {
	m := make(map[string]types.TokenInfo, len(s.seed))
	for _, token := range s.seed {
		m[token.Address] = token
	}
	return m
}

func (s *BulkListSource) fetch(ctx context.Context) (map[string]types.TokenInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token list returned status %d", resp.StatusCode)
	}

	var tokens []types.TokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("failed to decode token list: %w", err)
	}

	m := make(map[string]types.TokenInfo, len(tokens))
	for _, token := range tokens {
		m[token.Address] = token
	}
	return m, nil
}

// CryptoAPIsSource is tier 2: a per-mint metadata service keyed by mint
// and network. Skipped entirely when no API key is configured.
type CryptoAPIsSource struct {
	baseURL string
	apiKey  string
	network string
	client  *http.Client
}

// NewCryptoAPIsSource creates the CryptoAPIs tier
func NewCryptoAPIsSource(baseURL, apiKey, network string) *CryptoAPIsSource {
	return &CryptoAPIsSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		network: network,
		client:  &http.Client{Timeout: 8 * time.Second},
	}
}

func (s *CryptoAPIsSource) Name() string { return "cryptoapis" }

// Resolve queries the service for one mint; 404 is a miss, anything
// else non-200 is an error for the resolver to log and skip
func (s *CryptoAPIsSource) Resolve(ctx context.Context, mint string) (*types.TokenInfo, error) {
	return s.ResolveNetwork(ctx, mint, s.network)
}

// ResolveNetwork is Resolve with an explicit network, for the proxy
// endpoint that lets callers pick mainnet or devnet per request
func (s *CryptoAPIsSource) ResolveNetwork(ctx context.Context, mint, network string) (*types.TokenInfo, error) {
	if s.apiKey == "" {
		return nil, nil
	}
	if network == "" {
		network = s.network
	}

	url := fmt.Sprintf("%s/v2/blockchain-data/solana/%s/tokens/%s", s.baseURL, network, mint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cryptoapis returned status %d", resp.StatusCode)
	}

	var body struct {
		Data struct {
			Item struct {
				Name     string `json:"name"`
				Symbol   string `json:"symbol"`
				Decimals string `json:"decimals"`
				LogoURI  string `json:"logoURI"`
			} `json:"item"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode cryptoapis response: %w", err)
	}
	if body.Data.Item.Symbol == "" {
		return nil, nil
	}

	decimals := uint8(9)
	if d, err := strconv.ParseUint(body.Data.Item.Decimals, 10, 8); err == nil {
		decimals = uint8(d)
	}

	return &types.TokenInfo{
		Address:  mint,
		Symbol:   body.Data.Item.Symbol,
		Name:     body.Data.Item.Name,
		Decimals: decimals,
		LogoURI:  body.Data.Item.LogoURI,
		Tags:     []string{"cryptoapis"},
		Source:   "cryptoapis",
	}, nil
}

// MintReader reads basic mint facts from the chain
type MintReader interface {
	MintDecimals(ctx context.Context, mint string) (uint8, error)
}

// ChainSource is tier 3: on-chain basic info, symbol derived from the
// address itself
type ChainSource struct {
	chain MintReader
}

// NewChainSource creates the on-chain tier
func NewChainSource(chain MintReader) *ChainSource {
	return &ChainSource{chain: chain}
}

func (s *ChainSource) Name() string { return "chain" }

// Resolve reads decimals from the mint account and synthesizes the rest
func (s *ChainSource) Resolve(ctx context.Context, mint string) (*types.TokenInfo, error) {
	decimals, err := s.chain.MintDecimals(ctx, mint)
	if err != nil {
		return nil, err
	}

	symbol := mint
	if len(mint) > 8 {
		symbol = strings.ToUpper(mint[:4]) + "..." + strings.ToUpper(mint[len(mint)-4:])
	}

	return &types.TokenInfo{
		Address:  mint,
		Symbol:   symbol,
		Name:     "Custom Token",
		Decimals: decimals,
		Tags:     []string{"custom"},
		Source:   "backend",
	}, nil
}
