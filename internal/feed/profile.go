// Package feed implements the streaming market-data connector. The two
// asset-class variants differ only in subscription topic and bar layout, so
// they are expressed as profiles of one connector rather than subclasses.
package feed

import (
	"encoding/json"

	"valuation-pipeline/internal/domain"
)

// Profile parameterizes the connector for one asset class.
type Profile struct {
	AssetClass     domain.AssetClass
	Endpoint       string
	SubscribeTopic string
	// ParseBar decodes one event object into a bar update. The second
	// return is false for events that are not bars (status frames and
	// other channels yield zero bar updates).
	ParseBar func(raw json.RawMessage) (domain.BarUpdate, bool)
}

// equityBar is a minute aggregate on the equity channel.
type equityBar struct {
	Ev          string  `json:"ev"`
	Sym         string  `json:"sym"`
	Open        float64 `json:"o"`
	High        float64 `json:"h"`
	Low         float64 `json:"l"`
	Close       float64 `json:"c"`
	Volume      float64 `json:"v"`
	DailyVolume float64 `json:"av"`
	VWAP        float64 `json:"vw"`
	DayVWAP     float64 `json:"a"`
	AvgSize     float64 `json:"z"`
	StartMs     int64   `json:"s"`
	EndMs       int64   `json:"e"`
}

// cryptoBar is a minute aggregate on the crypto channel; it carries a pair
// identifier instead of a ticker.
type cryptoBar struct {
	Ev      string  `json:"ev"`
	Pair    string  `json:"pair"`
	Open    float64 `json:"o"`
	High    float64 `json:"h"`
	Low     float64 `json:"l"`
	Close   float64 `json:"c"`
	Volume  float64 `json:"v"`
	VWAP    float64 `json:"vw"`
	AvgSize float64 `json:"z"`
	StartMs int64   `json:"s"`
	EndMs   int64   `json:"e"`
}

// EquityProfile returns the profile for the equity minute-aggregate channel.
func EquityProfile(endpoint string) Profile {
	return Profile{
		AssetClass:     domain.AssetClassEquity,
		Endpoint:       endpoint,
		SubscribeTopic: "AM.*",
		ParseBar: func(raw json.RawMessage) (domain.BarUpdate, bool) {
			var b equityBar
			if err := json.Unmarshal(raw, &b); err != nil || b.Ev != "AM" || b.Sym == "" {
				return domain.BarUpdate{}, false
			}
			return domain.BarUpdate{
				Ticker:      b.Sym,
				AssetClass:  domain.AssetClassEquity,
				Open:        b.Open,
				High:        b.High,
				Low:         b.Low,
				Close:       b.Close,
				Volume:      b.Volume,
				DailyVolume: b.DailyVolume,
				VWAP:        b.VWAP,
				StartMs:     b.StartMs,
				EndMs:       b.EndMs,
			}, true
		},
	}
}

// CryptoProfile returns the profile for the crypto minute-aggregate channel.
func CryptoProfile(endpoint string) Profile {
	return Profile{
		AssetClass:     domain.AssetClassCrypto,
		Endpoint:       endpoint,
		SubscribeTopic: "XA.*",
		ParseBar: func(raw json.RawMessage) (domain.BarUpdate, bool) {
			var b cryptoBar
			if err := json.Unmarshal(raw, &b); err != nil || b.Ev != "XA" || b.Pair == "" {
				return domain.BarUpdate{}, false
			}
			return domain.BarUpdate{
				Ticker:     b.Pair,
				AssetClass: domain.AssetClassCrypto,
				Open:       b.Open,
				High:       b.High,
				Low:        b.Low,
				Close:      b.Close,
				Volume:     b.Volume,
				VWAP:       b.VWAP,
				StartMs:    b.StartMs,
				EndMs:      b.EndMs,
			}, true
		},
	}
}

// statusEvent is a control frame on either channel.
type statusEvent struct {
	Ev      string `json:"ev"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// decodeEvents splits one websocket message into its event objects. The feed
// sends JSON arrays; a bare object is accepted too.
func decodeEvents(data []byte) ([]json.RawMessage, error) {
	var events []json.RawMessage
	if err := json.Unmarshal(data, &events); err == nil {
		return events, nil
	}

	var single json.RawMessage
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, err
	}
	return []json.RawMessage{single}, nil
}
