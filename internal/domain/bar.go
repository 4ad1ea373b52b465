package domain

// AssetClass identifies which feed a bar came from.
type AssetClass string

const (
	AssetClassEquity AssetClass = "equity"
	AssetClassCrypto AssetClass = "crypto"
)

// BarUpdate is one OHLC aggregate for a single symbol over a one-minute window.
type BarUpdate struct {
	Ticker      string // symbol ticker (equity) or pair identifier (crypto)
	AssetClass  AssetClass
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
	DailyVolume float64 // accumulated volume for the trading day, equity feed only
	VWAP        float64
	StartMs     int64 // window start, Unix milliseconds
	EndMs       int64 // window end, Unix milliseconds
}
