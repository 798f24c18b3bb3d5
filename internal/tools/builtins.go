package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// validPages are the dashboard pages navigateTo accepts.
var validPages = map[string]bool{
	"home":     true,
	"weather":  true,
	"stocks":   true,
	"crypto":   true,
	"podcasts": true,
	"settings": true,
}

// RegisterBuiltins registers the dashboard tool set on the registry. The
// names are part of the wire protocol with the frontend and must not change.
func RegisterBuiltins(registry *Registry, weather *WeatherClient, stocks *StockClient, crypto *CryptoClient) {
	registry.Register(&Tool{
		Name:        "getWeather",
		Description: "Get current weather conditions for a city",
		Parameters: []Parameter{
			{Name: "city", Type: "string", Description: "City name, e.g. 'Berlin' or 'San Francisco'", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			city := StringArg(args, "city")
			if city == "" {
				return "", fmt.Errorf("missing required argument: city")
			}
			return weather.Current(ctx, city)
		},
	})

	registry.Register(&Tool{
		Name:        "searchCities",
		Description: "Search for cities matching a free-text query",
		Parameters: []Parameter{
			{Name: "query", Type: "string", Description: "Partial or full city name to search for", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			query := StringArg(args, "query")
			if query == "" {
				return "", fmt.Errorf("missing required argument: query")
			}
			return weather.Search(ctx, query)
		},
	})

	registry.Register(&Tool{
		Name:        "getStockQuote",
		Description: "Get the latest stock quote for a ticker symbol",
		Parameters: []Parameter{
			{Name: "symbol", Type: "string", Description: "Ticker symbol, e.g. 'AAPL'", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			symbol := StringArg(args, "symbol")
			if symbol == "" {
				return "", fmt.Errorf("missing required argument: symbol")
			}
			return stocks.Quote(ctx, symbol)
		},
	})

	registry.Register(&Tool{
		Name:        "getCryptoPrices",
		Description: "Get current prices for the tracked cryptocurrency set",
		Parameters:  []Parameter{},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return crypto.Prices(ctx)
		},
	})

	registry.Register(&Tool{
		Name:        "navigateTo",
		Description: "Navigate the dashboard to a page: home, weather, stocks, crypto, podcasts, or settings",
		Parameters: []Parameter{
			{Name: "page", Type: "string", Description: "Target page name", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			page := StringArg(args, "page")
			if page == "" {
				return "", fmt.Errorf("missing required argument: page")
			}
			if !validPages[page] {
				return "", fmt.Errorf("unknown page: %s", page)
			}
			payload, _ := json.Marshal(map[string]string{"navigatedTo": page})
			return string(payload), nil
		},
	})
}
