package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const (
	defaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

	cryptoCacheTTL = 2 * time.Minute
	cryptoCacheKey = "prices"
)

// cryptoBasket is the fixed set of coins the dashboard tracks.
var cryptoBasket = []string{"bitcoin", "ethereum", "solana", "dogecoin", "cardano"}

// CryptoClient fetches spot prices for a fixed basket of coins from
// CoinGecko's public API.
type CryptoClient struct {
	http    *resty.Client
	baseURL string
	cache   *Cache
}

// NewCryptoClient creates a crypto price client.
func NewCryptoClient() *CryptoClient {
	return &CryptoClient{
		http:    resty.New().SetTimeout(15 * time.Second),
		baseURL: defaultCoinGeckoURL,
		cache:   NewCache(),
	}
}

type coinMarket struct {
	ID                       string  `json:"id"`
	Symbol                   string  `json:"symbol"`
	Name                     string  `json:"name"`
	CurrentPrice             float64 `json:"current_price"`
	PriceChangePercentage24h float64 `json:"price_change_percentage_24h"`
	MarketCap                float64 `json:"market_cap"`
}

// Prices returns a JSON payload with current USD prices for the basket.
func (c *CryptoClient) Prices(ctx context.Context) (string, error) {
	if cached, ok := c.cache.Get(cryptoCacheKey); ok {
		return cached, nil
	}

	var markets []coinMarket
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"vs_currency": "usd",
			"ids":         strings.Join(cryptoBasket, ","),
		}).
		SetResult(&markets).
		Get(c.baseURL + "/coins/markets")
	if err != nil {
		return "", fmt.Errorf("crypto price request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("crypto price API returned status %d", resp.StatusCode())
	}

	coins := make([]map[string]any, 0, len(markets))
	for _, m := range markets {
		coins = append(coins, map[string]any{
			"id":          m.ID,
			"symbol":      strings.ToUpper(m.Symbol),
			"name":        m.Name,
			"price":       decimal.NewFromFloat(m.CurrentPrice),
			"change24h":   decimal.NewFromFloat(m.PriceChangePercentage24h),
			"marketCap":   decimal.NewFromFloat(m.MarketCap),
		})
	}

	payload, err := json.Marshal(map[string]any{"coins": coins})
	if err != nil {
		return "", err
	}

	c.cache.Set(cryptoCacheKey, string(payload), cryptoCacheTTL)
	return string(payload), nil
}
