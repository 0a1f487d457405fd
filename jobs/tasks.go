package jobs

import (
	jobmetrics "github.com/odyssey-erp/odyssey-pos/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueCritical carries ledger work that must not wait behind housekeeping.
	QueueCritical = "critical"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)
