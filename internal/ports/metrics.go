package ports

import "time"

// Metrics receives usecase outcomes. Results are short snake_case labels.
type Metrics interface {
	CaptureResult(result string)
	ModerationResult(result string)
	RelayResult(status string)
	RestoreResult(result string)
	Flushed(entries int)
	Pending(entries int)
	Swept(records int64, took time.Duration)
}

type NopMetrics struct{}

func (NopMetrics) CaptureResult(string) {}
func (NopMetrics) ModerationResult(string) {}
func (NopMetrics) RelayResult(string) {}
func (NopMetrics) RestoreResult(string) {}
func (NopMetrics) Flushed(int) {}
func (NopMetrics) Pending(int) {}
func (NopMetrics) Swept(int64, time.Duration) {}
