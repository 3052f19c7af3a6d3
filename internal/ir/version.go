package ir

// Version constants for the IR schema and interpreter.
const (
	// IRVersion is the IR schema version.
	IRVersion = "1"

	// EngineVersion is the procnet interpreter version.
	EngineVersion = "0.1.0"
)
