package match

import "strings"

// assetAliases maps a canonical asset symbol to the spellings that count as a
// hit in external free text. Candidate text is only consulted here; symbol
// and period always travel explicitly on the template.
var assetAliases = map[string][]string{
	"BTC":   {"BITCOIN", "BTC", "XBT", "BIT COIN"},
	"ETH":   {"ETHEREUM", "ETH", "ETHER"},
	"SOL":   {"SOLANA", "SOL"},
	"BNB":   {"BINANCE", "BINANCE COIN", "BNB"},
	"XRP":   {"RIPPLE", "XRP"},
	"ADA":   {"CARDANO", "ADA"},
	"DOGE":  {"DOGECOIN", "DOGE", "DOG E"},
	"MATIC": {"POLYGON", "MATIC"},
	"DOT":   {"POLKADOT", "DOT"},
	"AVAX":  {"AVALANCHE", "AVAX"},
	"LINK":  {"CHAINLINK", "LINK"},
	"UNI":   {"UNISWAP", "UNI"},
	"ATOM":  {"COSMOS", "ATOM"},
	"ETC":   {"ETHEREUM CLASSIC", "ETC", "ETH CLASSIC"},
	"LTC":   {"LITECOIN", "LTC"},
	"BCH":   {"BITCOIN CASH", "BCH", "BTC CASH"},
	"XLM":   {"STELLAR", "XLM"},
	"ALGO":  {"ALGORAND", "ALGO"},
	"VET":   {"VECHAIN", "VET"},
	"FIL":   {"FILECOIN", "FIL"},
	"TRX":   {"TRON", "TRX"},
	"EOS":   {"EOS"},
	"AAVE":  {"AAVE"},
	"MKR":   {"MAKER", "MKR"},
	"COMP":  {"COMPOUND", "COMP"},
	"YFI":   {"YEARN FINANCE", "YFI"},
	"SUSHI": {"SUSHISWAP", "SUSHI"},
	"SNX":   {"SYNTHETIX", "SNX"},
	"NEAR":  {"NEAR PROTOCOL", "NEAR"},
	"APT":   {"APTOS", "APT"},
	"OP":    {"OPTIMISM", "OP"},
	"ARB":   {"ARBITRUM", "ARB"},
	"IMX":   {"IMMUTABLE X", "IMX"},
	"GRT":   {"THE GRAPH", "GRT"},
	"RUNE":  {"THORCHAIN", "RUNE"},
	"INJ":   {"INJECTIVE", "INJ"},
	"TIA":   {"CELESTIA", "TIA"},
	"SEI":   {"SEI", "SEI NETWORK"},
	"SUI":   {"SUI"},
	"PYTH":  {"PYTH NETWORK", "PYTH"},
	"JTO":   {"JITO", "JTO"},
}

// aliasHit reports whether text contains any alias of the given asset
// symbol. Unknown symbols fall back to matching the symbol itself.
func aliasHit(asset, text string) bool {
	asset = strings.ToUpper(strings.TrimSpace(asset))
	aliases, ok := assetAliases[asset]
	if !ok {
		aliases = []string{asset}
	}
	upper := strings.ToUpper(text)
	for _, a := range aliases {
		if strings.Contains(upper, a) {
			return true
		}
	}
	return false
}
