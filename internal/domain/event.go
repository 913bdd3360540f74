package domain

import "time"

// Log level names as stored in the monitoring collection.
const (
	LevelDebug    = "DEBUG"
	LevelInfo     = "INFO"
	LevelWarn     = "WARN"
	LevelError    = "ERROR"
	LevelCritical = "CRITICAL"
)

// Event is one structured monitoring entry.
type Event struct {
	Level       string         `json:"level" bson:"level"`
	Message     string         `json:"message" bson:"message"`
	Timestamp   time.Time      `json:"timestamp" bson:"timestamp"`
	App         string         `json:"app" bson:"app"`
	Environment string         `json:"environment" bson:"environment"`
	Logger      string         `json:"logger,omitempty" bson:"logger,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty" bson:"attributes,omitempty"`
}

// EventQuery selects recent events for one app/environment pair.
type EventQuery struct {
	App         string
	Environment string
	Since       time.Time
	// SinceText is matched against string timestamps written by older
	// producers, formatted as "2006-01-02 15:04:05".
	SinceText string
}
