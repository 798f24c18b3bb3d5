package usage

import (
	"time"

	"github.com/google/uuid"
	"github.com/lifedash/lifedash/internal/logger"
	"github.com/lifedash/lifedash/pkg/types"
)

const previewMaxRunes = 120

// Store is the durable, append-only usage log.
type Store interface {
	Append(entry *types.UsageLogEntry) error
	QueryRange(since time.Time) ([]types.UsageLogEntry, error)
	QueryRecent(limit int) ([]types.UsageLogEntry, error)
}

// Recorder writes one usage entry per finished chat request and serves the
// two read surfaces over the log.
type Recorder struct {
	store Store
	log   *logger.Logger
	now   func() time.Time
}

// NewRecorder creates a recorder over the given store.
func NewRecorder(store Store, log *logger.Logger) *Recorder {
	if log == nil {
		log = logger.New("usage", "info")
	}
	return &Recorder{store: store, log: log, now: time.Now}
}

// truncatePreview bounds a preview string by rune count.
func truncatePreview(s string) string {
	runes := []rune(s)
	if len(runes) <= previewMaxRunes {
		return s
	}
	return string(runes[:previewMaxRunes]) + "..."
}

// Record fills in identity and previews, then appends the entry. A store
// failure is logged, not propagated: losing one log line must not fail the
// chat request it describes.
func (r *Recorder) Record(entry *types.UsageLogEntry, question, answer string) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now()
	}
	entry.QuestionPreview = truncatePreview(question)
	entry.AnswerPreview = truncatePreview(answer)

	if err := r.store.Append(entry); err != nil {
		r.log.Error("failed to append usage entry %s: %v", entry.ID, err)
	}
}

// DayStats is one day's slice of the summary.
type DayStats struct {
	Date         string `json:"date"` // YYYY-MM-DD
	Requests     int    `json:"requests"`
	Errors       int    `json:"errors"`
	InputTokens  int    `json:"inputTokens"`
	OutputTokens int    `json:"outputTokens"`
}

// Summary aggregates the usage log over a trailing day window.
type Summary struct {
	Days             int        `json:"days"`
	Requests         int        `json:"requests"`
	Errors           int        `json:"errors"`
	ErrorRate        float64    `json:"errorRate"`
	FallbackRequests int        `json:"fallbackRequests"`
	InputTokens      int        `json:"inputTokens"`
	OutputTokens     int        `json:"outputTokens"`
	AvgLatencyMs     int64      `json:"avgLatencyMs"`
	ToolCalls        int        `json:"toolCalls"`
	PerDay           []DayStats `json:"perDay"`
}

// Summarize aggregates entries from the last N days. days < 1 defaults to 7.
func (r *Recorder) Summarize(days int) (*Summary, error) {
	if days < 1 {
		days = 7
	}
	since := r.now().AddDate(0, 0, -days)

	entries, err := r.store.QueryRange(since)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Days: days, PerDay: []DayStats{}}
	perDay := make(map[string]*DayStats)
	var totalLatency int64

	for _, e := range entries {
		summary.Requests++
		summary.InputTokens += e.InputTokens
		summary.OutputTokens += e.OutputTokens
		summary.ToolCalls += len(e.ToolCalls)
		totalLatency += e.LatencyMs
		if e.Status == "error" {
			summary.Errors++
		}
		if e.UsedFallback {
			summary.FallbackRequests++
		}

		day := e.Timestamp.Format("2006-01-02")
		ds, ok := perDay[day]
		if !ok {
			ds = &DayStats{Date: day}
			perDay[day] = ds
		}
		ds.Requests++
		ds.InputTokens += e.InputTokens
		ds.OutputTokens += e.OutputTokens
		if e.Status == "error" {
			ds.Errors++
		}
	}

	if summary.Requests > 0 {
		summary.ErrorRate = float64(summary.Errors) / float64(summary.Requests)
		summary.AvgLatencyMs = totalLatency / int64(summary.Requests)
	}

	// Entries arrive oldest first, so day buckets keep chronological order.
	seen := make(map[string]bool)
	for _, e := range entries {
		day := e.Timestamp.Format("2006-01-02")
		if seen[day] {
			continue
		}
		seen[day] = true
		summary.PerDay = append(summary.PerDay, *perDay[day])
	}

	return summary, nil
}

// Recent returns the newest entries, newest first. limit is clamped to 1..50.
func (r *Recorder) Recent(limit int) ([]types.UsageLogEntry, error) {
	if limit < 1 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}
	return r.store.QueryRecent(limit)
}
