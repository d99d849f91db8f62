package ir

// Version constants for persisted chain records.
const (
	// RecordVersion is the ChainRecord schema version written by Serialize.
	RecordVersion = "1"

	// ToolVersion is the chainctl version.
	ToolVersion = "0.1.0"
)
