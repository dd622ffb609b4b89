package kafka

// Topics used by the report service
const (
	// TopicReportCompleted carries notifications for completed reports,
	// consumed by downstream delivery workers (email, archival).
	TopicReportCompleted = "oracle.report.completed"

	// TopicReportFailed carries terminal run failures for operator alerting
	TopicReportFailed = "oracle.report.failed"
)
