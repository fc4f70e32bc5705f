package coins

import "strings"

const (
	// SUI is the native coin type
	SUI = "0x2::sui::SUI"

	// DefaultDecimals applies to coin types without known or fetchable metadata
	DefaultDecimals uint8 = 9

	// USDCDecimals is the precision of the native USDC coin
	USDCDecimals uint8 = 6
)

// Coin describes a coin type the dashboard knows without asking the ledger
type Coin struct {
	Type     string
	Symbol   string
	Decimals uint8
}

var knownCoins = map[string][]Coin{
	"mainnet": {
		{Type: SUI, Symbol: "SUI", Decimals: 9},
		{Type: "0xdba34672e30cb065b1f93e3ab55318768fd6fef66c15942c9f7cb846e2f900e7::usdc::USDC", Symbol: "USDC", Decimals: USDCDecimals},
	},
	"testnet": {
		{Type: SUI, Symbol: "SUI", Decimals: 9},
		{Type: "0xa1ec7fc00a6f40db9693ad1415d0c193ad3906494428cf252621037bd7117e29::usdc::USDC", Symbol: "USDC", Decimals: USDCDecimals},
	},
	"devnet": {
		{Type: SUI, Symbol: "SUI", Decimals: 9},
	},
}

// Known returns the coins registered for network
func Known(network string) []Coin {
	return append([]Coin(nil), knownCoins[network]...)
}

// Lookup finds a known coin by type on any network
func Lookup(coinType string) (Coin, bool) {
	for _, list := range knownCoins {
		for _, c := range list {
			if c.Type == coinType {
				return c, true
			}
		}
	}
	return Coin{}, false
}

// IsUSDC reports whether coinType is a USDC coin
func IsUSDC(coinType string) bool {
	return strings.HasSuffix(strings.ToLower(coinType), "::usdc::usdc")
}

// Symbol returns a short display name for coinType
func Symbol(coinType string) string {
	if c, ok := Lookup(coinType); ok {
		return c.Symbol
	}
	parts := strings.Split(coinType, "::")
	return parts[len(parts)-1]
}

// StaticDecimals returns the precision of coinType without any network lookup
func StaticDecimals(coinType string) uint8 {
	if c, ok := Lookup(coinType); ok {
		return c.Decimals
	}
	if IsUSDC(coinType) {
		return USDCDecimals
	}
	return DefaultDecimals
}
