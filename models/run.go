package models

import "time"

// BrandStatus tracks one brand's processing state inside a PageBucket.
type BrandStatus struct {
	Name         string `json:"name"`
	URL          string `json:"url"`
	IsScraped    bool   `json:"isScraped"`
	ProductCount int    `json:"productCount"`
}

// PageBucket aggregates the brands and scraped products of one offset of the
// brand index. IsComplete flips only after every brand on the page has been
// attempted, success or failure.
type PageBucket struct {
	Offset                int              `json:"offset"`
	Brands                []BrandStatus    `json:"brands"`
	IsComplete            bool             `json:"isComplete"`
	IsCurrentlyProcessing bool             `json:"isCurrentlyProcessing"`
	Products              []ScrapedProduct `json:"products"`
}

// Progress is a snapshot of where the traversal currently is. It is
// overwritten on every controller step, never accumulated.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Phase   string `json:"phase"`
}

// LogType classifies a log line for the observing collaborator.
type LogType string

const (
	LogInfo    LogType = "info"
	LogSuccess LogType = "success"
	LogError   LogType = "error"
	LogWarning LogType = "warning"
)

// LogEntry is one line of the bounded run log.
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      LogType   `json:"type"`
	Message   string    `json:"message"`
}

// RunResult summarises a finished traversal.
type RunResult struct {
	StartTime    time.Time
	EndTime      time.Time
	Aborted      bool
	PageCount    int
	BrandCount   int
	ProductCount int
	ErrorCount   int
	FailedURLs   []string
}
