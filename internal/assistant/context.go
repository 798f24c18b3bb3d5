package assistant

import (
	"fmt"
	"strings"

	"github.com/lifedash/lifedash/pkg/types"
)

// systemPreamble is the fixed opening of every system instruction.
const systemPreamble = "You are LifeDash, the assistant built into a personal dashboard. " +
	"You help with weather, stocks, crypto prices, and navigating the dashboard. " +
	"Be concise and friendly. Use the available tools when live data is needed."

// BuildSystemInstruction renders the system instruction from optional
// dashboard context. Absent or empty fields contribute no line.
func BuildSystemInstruction(dc *types.DashboardContext) string {
	var b strings.Builder
	b.WriteString(systemPreamble)

	if dc == nil {
		return b.String()
	}

	if len(dc.FavoriteCities) > 0 {
		fmt.Fprintf(&b, "\nThe user's favorite cities: %s.", strings.Join(dc.FavoriteCities, ", "))
	}
	if len(dc.RecentCities) > 0 {
		fmt.Fprintf(&b, "\nRecently viewed cities: %s.", strings.Join(dc.RecentCities, ", "))
	}
	if len(dc.StockWatchlist) > 0 {
		fmt.Fprintf(&b, "\nStocks on the user's watchlist: %s.", strings.Join(dc.StockWatchlist, ", "))
	}
	if dc.PodcastSubscriptions > 0 {
		fmt.Fprintf(&b, "\nThe user subscribes to %d podcasts.", dc.PodcastSubscriptions)
	}
	if dc.TempUnit != "" {
		fmt.Fprintf(&b, "\nReport temperatures in °%s.", dc.TempUnit)
	}
	if dc.Locale != "" {
		fmt.Fprintf(&b, "\nThe user's locale is %s.", dc.Locale)
	}
	if dc.CurrentPage != "" {
		fmt.Fprintf(&b, "\nThe user is currently on the %q page.", dc.CurrentPage)
	}

	return b.String()
}

// buildConversation maps history turns oldest first and appends the current
// user message last.
func buildConversation(history []types.ChatMessage, message string) []Message {
	messages := make([]Message, 0, len(history)+1)
	for _, turn := range history {
		role := turn.Role
		if role != "assistant" {
			role = "user"
		}
		messages = append(messages, Message{Role: role, Content: turn.Content})
	}
	messages = append(messages, Message{Role: "user", Content: message})
	return messages
}
