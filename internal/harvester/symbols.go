package harvester

import (
	"regexp"
	"strings"
)

// standardPeriods are the cadences the production engine knows how to fill.
// Series on any other rhythm are skipped.
var standardPeriods = map[int]struct{}{
	15: {}, 60: {}, 240: {}, 1440: {}, 10080: {}, 43200: {},
}

// periodFromText derives the cadence in minutes from the series' free text,
// falling back to the structured recurrence field. Checks are ordered most
// specific first: "15 min" before "hourly", "4h" before "hour", "monthly"
// before "weekly" so "4-weekly" style titles cannot shadow a month cadence.
func periodFromText(text, recurrence string) (int, bool) {
	switch {
	case strings.Contains(text, "15") && (strings.Contains(text, "min") || strings.Contains(text, "15m")):
		return 15, true
	case strings.Contains(text, "4h") || (strings.Contains(text, "4") && strings.Contains(text, "hour")):
		return 240, true
	case strings.Contains(text, "monthly") || (strings.Contains(text, "month") && !strings.Contains(text, "weekly")):
		return 43200, true
	case strings.Contains(text, "weekly") || strings.Contains(text, "week"):
		return 10080, true
	case strings.Contains(text, "daily") || (strings.Contains(text, "day") && !strings.Contains(text, "week") && !strings.Contains(text, "month")):
		return 1440, true
	case strings.Contains(text, "hourly") || (strings.Contains(text, "hour") && !strings.Contains(text, "4")):
		return 60, true
	}

	switch strings.ToLower(recurrence) {
	case "monthly":
		return 43200, true
	case "weekly":
		return 10080, true
	case "daily":
		return 1440, true
	case "hourly":
		return 60, true
	}
	return 0, false
}

// symbolPatterns maps asset mentions to base symbols. Word boundaries keep
// short tickers from firing inside unrelated words ("Canada" is not ADA,
// "Airbnb" is not BNB). Order matters only for text naming several assets,
// where the first match wins.
var symbolPatterns = []struct {
	re   *regexp.Regexp
	base string
}{
	{regexp.MustCompile(`\b(btc|bitcoin)\b`), "BTC"},
	{regexp.MustCompile(`\b(eth|ethereum)\b`), "ETH"},
	{regexp.MustCompile(`\b(sol|solana)\b`), "SOL"},
	{regexp.MustCompile(`\b(link|chainlink)\b`), "LINK"},
	{regexp.MustCompile(`\b(doge|dogecoin)\b`), "DOGE"},
	{regexp.MustCompile(`\b(avax|avalanche)\b`), "AVAX"},
	{regexp.MustCompile(`\b(ada|cardano)\b`), "ADA"},
	{regexp.MustCompile(`\b(dot|polkadot)\b`), "DOT"},
	{regexp.MustCompile(`\b(matic|polygon)\b`), "MATIC"},
	{regexp.MustCompile(`\b(xrp|ripple)\b`), "XRP"},
	{regexp.MustCompile(`\bbnb\b`), "BNB"},
	{regexp.MustCompile(`\b(trx|tron)\b`), "TRX"},
	{regexp.MustCompile(`\b(ltc|litecoin)\b`), "LTC"},
	{regexp.MustCompile(`\bbch\b`), "BCH"},
	{regexp.MustCompile(`\b(xlm|stellar)\b`), "XLM"},
	{regexp.MustCompile(`\b(algo|algorand)\b`), "ALGO"},
	{regexp.MustCompile(`\b(atom|cosmos)\b`), "ATOM"},
	{regexp.MustCompile(`\b(fil|filecoin)\b`), "FIL"},
	{regexp.MustCompile(`\bnear\b`), "NEAR"},
	{regexp.MustCompile(`\b(ftm|fantom)\b`), "FTM"},
}

// extractSymbol returns the "BTC/USD"-form symbol for the first asset named
// in text. text must already be lowercased.
func extractSymbol(text string) (string, bool) {
	for _, p := range symbolPatterns {
		if p.re.MatchString(text) {
			return p.base + "/USD", true
		}
	}
	return "", false
}

// looksCrypto reports whether the text names a crypto asset or the category
// itself.
func looksCrypto(text string) bool {
	if strings.Contains(text, "crypto") {
		return true
	}
	_, ok := extractSymbol(text)
	return ok
}
