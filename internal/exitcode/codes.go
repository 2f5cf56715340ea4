package exitcode

// Exit codes for the prep-ilamb CLI.
// The scheduler can use these to decide retry strategy.
const (
	// Success - every requested period was processed or skipped
	Success = 0

	// ConfigError - missing or invalid configuration, flags or variable map
	// Don't retry: fix the config first
	ConfigError = 1

	// NetworkError - transient failure reaching MinIO, ClickHouse or Postgres
	// Retry with backoff
	NetworkError = 2

	// StorageError - failed to write the output file or upload it
	// Retry with backoff
	StorageError = 4

	// DataError - source file missing, ambiguous or not regriddable
	// Don't retry: investigate the model output
	DataError = 5

	// ApplicationError - anything else
	ApplicationError = 6
)
