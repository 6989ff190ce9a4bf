package metadata

import "erebus/pkg/types"

const logoBase = "https://raw.githubusercontent.com/solana-labs/token-list/main/assets/mainnet/"

// popularTokens is the curated list served by /token-list and used to
// seed the bulk-list tier
var popularTokens = []types.TokenInfo{
	{Address: "So11111111111111111111111111111111111111112", Symbol: "SOL", Name: "Wrapped SOL", Decimals: 9, LogoURI: logoBase + "So11111111111111111111111111111111111111112/logo.png", Tags: []string{"verified"}},
	{Address: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Symbol: "USDC", Name: "USD Coin", Decimals: 6, LogoURI: logoBase + "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v/logo.png", Tags: []string{"verified", "stablecoin"}},
	{Address: "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", Symbol: "USDT", Name: "USDT", Decimals: 6, LogoURI: logoBase + "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB/logo.png", Tags: []string{"verified", "stablecoin"}},
	{Address: "7vfCXTUXx5WJV5JADk17DUJ4ksgau7utNKj4b963voxs", Symbol: "ETH", Name: "Ether (Portal)", Decimals: 8, LogoURI: logoBase + "7vfCXTUXx5WJV5JADk17DUJ4ksgau7utNKj4b963voxs/logo.png", Tags: []string{"verified"}},
	{Address: "mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So", Symbol: "mSOL", Name: "Marinade staked SOL", Decimals: 9, LogoURI: logoBase + "mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So/logo.png", Tags: []string{"verified"}},
	{Address: "7dHbWXmci3dT8UFYWYZweBLXgycu7Y3iL6trKn1Y7ARj", Symbol: "stSOL", Name: "Lido Staked SOL", Decimals: 9, LogoURI: logoBase + "7dHbWXmci3dT8UFYWYZweBLXgycu7Y3iL6trKn1Y7ARj/logo.png", Tags: []string{"verified"}},
	{Address: "J1toso1uCk3RLmjorhTtrVwY9HJ7X8V9yYac6Y7kGCPn", Symbol: "JitoSOL", Name: "Jito Staked SOL", Decimals: 9, LogoURI: logoBase + "J1toso1uCk3RLmjorhTtrVwY9HJ7X8V9yYac6Y7kGCPn/logo.png", Tags: []string{"verified"}},
	{Address: "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263", Symbol: "BONK", Name: "Bonk", Decimals: 5, LogoURI: "https://arweave.net/hQiPZOsRZXGXBJd_82PhVdlM_hACsT_q6wqwf5cSY7I", Tags: []string{"verified"}},
	{Address: "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr", Symbol: "POPCAT", Name: "Popcat", Decimals: 9, LogoURI: "https://bafkreibk3covs5ltyqxa272uodhculbr6kea6betidfwy3ajsav2vjzyum.ipfs.nftstorage.link", Tags: []string{"verified"}},
	{Address: "HZ1JovNiVvGrGNiiYvEozEVgZ58xaU3RKwX8eACQBCt3", Symbol: "PYTH", Name: "Pyth Network", Decimals: 6, LogoURI: "https://pyth.network/token.svg", Tags: []string{"verified"}},
}

// PopularTokens returns a copy of the curated token list
func PopularTokens() []types.TokenInfo {
	out := make([]types.TokenInfo, len(popularTokens))
	copy(out, popularTokens)
	return out
}

// PopularToken looks a mint up in the curated list
func PopularToken(mint string) (types.TokenInfo, bool) {
	for _, token := range popularTokens {
		if token.Address == mint {
			return token, true
		}
	}
	return types.TokenInfo{}, false
}
