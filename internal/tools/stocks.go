package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"
)

const stockCacheTTL = time.Minute

// StockClient fetches stock quotes from Yahoo Finance. quoteFn exists so
// tests can inject fixtures in place of the package-level quote.Get.
type StockClient struct {
	quoteFn func(symbol string) (*finance.Quote, error)
	cache   *Cache
}

// NewStockClient creates a stock client backed by Yahoo Finance.
func NewStockClient() *StockClient {
	return &StockClient{
		quoteFn: quote.Get,
		cache:   NewCache(),
	}
}

// Quote returns a JSON payload with the latest quote for a symbol.
func (c *StockClient) Quote(ctx context.Context, symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", fmt.Errorf("symbol is required")
	}

	if cached, ok := c.cache.Get(symbol); ok {
		return cached, nil
	}

	q, err := c.quoteFn(symbol)
	if err != nil {
		return "", fmt.Errorf("quote lookup for %s: %w", symbol, err)
	}
	if q == nil {
		return "", fmt.Errorf("no quote data for %s", symbol)
	}

	payload, err := json.Marshal(map[string]any{
		"symbol":        symbol,
		"name":          q.ShortName,
		"price":         decimal.NewFromFloat(q.RegularMarketPrice),
		"change":        decimal.NewFromFloat(q.RegularMarketChange),
		"changePercent": decimal.NewFromFloat(q.RegularMarketChangePercent),
		"dayHigh":       decimal.NewFromFloat(q.RegularMarketDayHigh),
		"dayLow":        decimal.NewFromFloat(q.RegularMarketDayLow),
		"currency":      q.CurrencyID,
	})
	if err != nil {
		return "", err
	}

	c.cache.Set(symbol, string(payload), stockCacheTTL)
	return string(payload), nil
}
