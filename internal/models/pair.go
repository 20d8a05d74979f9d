package models

import "strings"

// Pair is a currency pair in CEX.IO "BASE/QUOTE" notation.
type Pair string

// The pairs the bot knows how to trade.
const (
	PairBTCUSD Pair = "BTC/USD"
	PairETHUSD Pair = "ETH/USD"
)

// Valid reports whether the pair is one of the supported pairs.
func (p Pair) Valid() bool {
	return p == PairBTCUSD || p == PairETHUSD
}

// Base returns the traded asset symbol, e.g. "BTC" for "BTC/USD".
func (p Pair) Base() string {
	base, _, _ := strings.Cut(string(p), "/")
	return base
}

// Quote returns the pricing currency symbol, e.g. "USD" for "BTC/USD".
func (p Pair) Quote() string {
	_, quote, _ := strings.Cut(string(p), "/")
	return quote
}

func (p Pair) String() string {
	return string(p)
}
