package export

import (
	"math"
	"runtime"
	"time"
)

// Progress statuses.
const (
	StatusStarting  = "starting"
	StatusExporting = "exporting"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Progress is one export progress report. It is never persisted.
type Progress struct {
	Status        string  `json:"status"`
	Percent       int     `json:"progress"`
	Total         int64   `json:"total,omitempty"`
	Current       int64   `json:"current,omitempty"`
	TableName     string  `json:"tableName,omitempty"`
	ElapsedMs     int64   `json:"elapsedMs,omitempty"`
	MemoryUsageMB float64 `json:"memoryUsageMb,omitempty"`
	RunID         string  `json:"runId,omitempty"`
	Error         string  `json:"error,omitempty"`
}

// Stats tracks one export run.
type Stats struct {
	RunID     string
	Tables    int
	Total     int64
	Processed int64
	StartTime time.Time
	EndTime   time.Time
}

// Duration returns the run time so far, or the full run time once ended.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Percent returns processed rows as a whole percentage, 0 to 100.
func (s *Stats) Percent() int {
	if s.Total <= 0 {
		return 0
	}
	p := int(math.Floor(float64(s.Processed)/float64(s.Total)*100 + 0.5))
	return min(max(p, 0), 100)
}

// RowsPerSecond returns the export rate.
func (s *Stats) RowsPerSecond() float64 {
	d := s.Duration().Seconds()
	if d == 0 {
		return 0
	}
	return float64(s.Processed) / d
}

func (s *Stats) progress(status, table string) Progress {
	return Progress{
		Status:        status,
		Percent:       s.Percent(),
		Total:         s.Total,
		Current:       s.Processed,
		TableName:     table,
		ElapsedMs:     s.Duration().Milliseconds(),
		MemoryUsageMB: memoryUsageMB(),
		RunID:         s.RunID,
	}
}

func memoryUsageMB() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return math.Round(float64(m.Alloc)/(1<<20)*10) / 10
}
