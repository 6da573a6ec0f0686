// Package aggregation builds hourly, daily and multi-line KPI series
// from persisted batch summaries. It is read-only: every call is a pure
// function of the requested range plus the store's current contents.
package aggregation

import (
	"context"
	"time"

	"github.com/lineview/ftq-engine/internal/models"
)

const (
	// rollingBuckets is the number of hourly buckets in single-line mode.
	rollingBuckets = 14
	// displayOffset shifts bucket labels into the plant's fixed UTC+1
	// display timezone, regardless of server timezone.
	displayOffset = time.Hour
)

// SummarySource is the read side of the summary store. Line discovery is
// an explicit query rather than a scan over dynamic document keys.
type SummarySource interface {
	SummariesForLine(ctx context.Context, lineID string, from, to time.Time) ([]models.Summary, error)
	SummariesInRange(ctx context.Context, from, to time.Time) ([]models.Summary, error)
	DistinctLines(ctx context.Context, from, to time.Time) ([]string, error)
}

// Range is an inclusive [Start, End] date range.
type Range struct {
	Start time.Time
	End   time.Time
}

// Validate rejects a bad range before any store query runs.
func (r Range) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return &models.InvalidRangeError{Reason: "start and end dates are required"}
	}
	if r.End.Before(r.Start) {
		return &models.InvalidRangeError{Reason: "end date is before start date"}
	}
	return nil
}

// HourBucket is one hourly point in the rolling series. The label is the
// bucket's hour of day in the fixed display timezone.
type HourBucket struct {
	Label              string  `json:"label"`
	ConformingCount    int     `json:"conforming_count"`
	NonConformingCount int     `json:"non_conforming_count"`
	IncompleteCount    int     `json:"incomplete_count"`
	FTQ                float64 `json:"ftq"`
	ProductionRate     float64 `json:"production_rate"`
	RejectionRate      float64 `json:"rejection_rate"`
}

// DayPoint is one daily point in a per-line pivot series.
type DayPoint struct {
	Date               time.Time `json:"date"`
	ConformingCount    int       `json:"conforming_count"`
	NonConformingCount int       `json:"non_conforming_count"`
	IncompleteCount    int       `json:"incomplete_count"`
	FTQ                float64   `json:"ftq"`
	ProductionRate     float64   `json:"production_rate"`
	RejectionRate      float64   `json:"rejection_rate"`
}

// TimeSeries is the aggregator's result: exactly one of the two shapes
// is populated depending on whether a line id was requested.
type TimeSeries struct {
	LineID  string                `json:"line_id,omitempty"`
	Rolling []HourBucket          `json:"rolling,omitempty"`
	Pivot   map[string][]DayPoint `json:"pivot,omitempty"`
}

// Aggregator serves time-bucketed KPI series. Concurrent calls are
// independent; no locking is needed beyond the store's consistent reads.
type Aggregator struct {
	store SummarySource
	now   func() time.Time
}

func New(store SummarySource) *Aggregator {
	return &Aggregator{store: store, now: time.Now}
}

// Aggregate dispatches on the presence of a line id: single-line rolling
// hours when given, multi-line day pivot otherwise.
func (a *Aggregator) Aggregate(ctx context.Context, rng Range, lineID string) (*TimeSeries, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	if lineID != "" {
		buckets, err := a.RollingHours(ctx, lineID)
		if err != nil {
			return nil, err
		}
		return &TimeSeries{LineID: lineID, Rolling: buckets}, nil
	}
	pivot, err := a.DayPivot(ctx, rng)
	if err != nil {
		return nil, err
	}
	return &TimeSeries{Pivot: pivot}, nil
}

// RollingHours returns the last 14 hourly buckets for one line, oldest
// first, labeled in the fixed UTC+1 display timezone. Repeated uploads
// inside the same hour are corrections of the same observation window,
// so each KPI field takes the maximum seen, never a sum. Empty buckets
// are zero-filled.
func (a *Aggregator) RollingHours(ctx context.Context, lineID string) ([]HourBucket, error) {
	now := a.now().UTC()
	windowStart := now.Add(-time.Duration(rollingBuckets-1) * time.Hour).Truncate(time.Hour)

	summaries, err := a.store.SummariesForLine(ctx, lineID, windowStart, now)
	if err != nil {
		return nil, err
	}

	byBucket := make(map[time.Time][]models.Summary)
	for _, summary := range summaries {
		bucket := summary.UploadedAt.UTC().Truncate(time.Hour)
		byBucket[bucket] = append(byBucket[bucket], summary)
	}

	buckets := make([]HourBucket, 0, rollingBuckets)
	for i := rollingBuckets - 1; i >= 0; i-- {
		bucketStart := now.Add(-time.Duration(i) * time.Hour).Truncate(time.Hour)
		label := bucketStart.Add(displayOffset).Format("15:00")
		bucket := HourBucket{Label: label}
		for _, summary := range byBucket[bucketStart] {
			mergeMaxHour(&bucket, summary)
		}
		buckets = append(buckets, bucket)
	}
	return buckets, nil
}

// DayPivot returns, for every line seen in the range, a dense series
// covering every calendar day of the inclusive range in date order, with
// zero-filled points for days without data. Per (line, day) each KPI
// field takes the maximum over that day's summaries.
func (a *Aggregator) DayPivot(ctx context.Context, rng Range) (map[string][]DayPoint, error) {
	start := truncateDay(rng.Start)
	end := truncateDay(rng.End)

	lines, err := a.store.DistinctLines(ctx, start, end.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	summaries, err := a.store.SummariesInRange(ctx, start, end.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	type lineDay struct {
		line string
		day  time.Time
	}
	byLineDay := make(map[lineDay][]models.Summary)
	for _, summary := range summaries {
		key := lineDay{line: summary.LineID, day: truncateDay(summary.FileDate)}
		byLineDay[key] = append(byLineDay[key], summary)
	}

	pivot := make(map[string][]DayPoint, len(lines))
	for _, line := range lines {
		var series []DayPoint
		for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
			point := DayPoint{Date: day}
			for _, summary := range byLineDay[lineDay{line: line, day: day}] {
				mergeMaxDay(&point, summary)
			}
			series = append(series, point)
		}
		pivot[line] = series
	}
	return pivot, nil
}

func mergeMaxHour(bucket *HourBucket, s models.Summary) {
	bucket.ConformingCount = maxInt(bucket.ConformingCount, s.ConformingCount)
	bucket.NonConformingCount = maxInt(bucket.NonConformingCount, s.NonConformingCount)
	bucket.IncompleteCount = maxInt(bucket.IncompleteCount, s.IncompleteCount)
	bucket.FTQ = maxFloat(bucket.FTQ, s.FTQ)
	bucket.ProductionRate = maxFloat(bucket.ProductionRate, s.ProductionRate)
	bucket.RejectionRate = maxFloat(bucket.RejectionRate, s.RejectionRate)
}

func mergeMaxDay(point *DayPoint, s models.Summary) {
	point.ConformingCount = maxInt(point.ConformingCount, s.ConformingCount)
	point.NonConformingCount = maxInt(point.NonConformingCount, s.NonConformingCount)
	point.IncompleteCount = maxInt(point.IncompleteCount, s.IncompleteCount)
	point.FTQ = maxFloat(point.FTQ, s.FTQ)
	point.ProductionRate = maxFloat(point.ProductionRate, s.ProductionRate)
	point.RejectionRate = maxFloat(point.RejectionRate, s.RejectionRate)
}

func truncateDay(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
