package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rpattn/tamperlog/internal/db"
	"github.com/rpattn/tamperlog/internal/domain"
	"github.com/rpattn/tamperlog/internal/transform"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// MaxBatchSize caps BATCH_SIZE to bound memory and transaction size.
const MaxBatchSize = 50000

// Config is the full process configuration.
type Config struct {
	Source           db.SourceConfig
	SourceTable      string
	Target           db.Config
	TargetTable      string
	Actor            string
	BatchSize        int
	Interval         time.Duration
	StartHour        int
	EndHour          int
	Timezone         string
	RowFailurePolicy transform.Policy
	PartIDByPrefix   map[string]string
	Monitoring       MonitoringConfig
	HealthLookback   time.Duration
	StatusAddr       string
	AllowedOrigins   []string
	LogLevel         string
}

// MonitoringConfig locates the monitoring event collection.
type MonitoringConfig struct {
	URI         string
	Database    string
	Collection  string
	App         string
	Environment string
}

var requiredKeys = []string{
	"SOURCE_DB",
	"TARGET_DB",
	"USER_GUID",
	"BT_MONGO_URI",
	"BT_MONGO_DB",
	"BT_MONGO_COLLECTION",
	"BT_APP_NAME",
	"BT_ENVIRONMENT",
}

var optionalKeys = []string{
	"BATCH_SIZE",
	"CHECK_INTERVAL_SECONDS",
	"ALLOWED_START_HOUR",
	"ALLOWED_END_HOUR",
	"TIMEZONE",
	"ROW_FAILURE_POLICY",
	"HEALTH_WINDOW_MINUTES",
	"POOL_TIMEOUT_SECONDS",
	"TARGET_POOL_SIZE",
	"SOURCE_POOL_SIZE",
	"SOURCE_TABLE",
	"TARGET_TABLE",
	"PART_ID_BY_PREFIX",
	"STATUS_ADDR",
	"STATUS_ALLOWED_ORIGINS",
	"LOG_LEVEL",
}

// MissingKeysError lists required settings that were not provided.
type MissingKeysError struct {
	Keys []string
}

func (e *MissingKeysError) Error() string {
	return fmt.Sprintf("missing required settings: %s", strings.Join(e.Keys, ", "))
}

func (e *MissingKeysError) Unwrap() error { return domain.ErrConfigInvalid }

// Load reads config.yaml from configPath when present and lets every key be
// overridden by the environment variable of the same name.
func Load(configPath string) (Config, error) {
	v, err := newViper(configPath)
	if err != nil {
		return Config{}, err
	}
	return fromViper(v)
}

// Schedule is the allowed run window. It has defaults for every field, so
// it can be read even when required settings are missing.
type Schedule struct {
	StartHour int
	EndHour   int
	Timezone  string
}

// LoadSchedule reads only the window settings from the same sources as Load.
func LoadSchedule(configPath string) (Schedule, error) {
	v, err := newViper(configPath)
	if err != nil {
		return Schedule{}, err
	}
	return Schedule{
		StartHour: v.GetInt("ALLOWED_START_HOUR"),
		EndHour:   v.GetInt("ALLOWED_END_HOUR"),
		Timezone:  v.GetString("TIMEZONE"),
	}, nil
}

func newViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}

	for _, key := range requiredKeys {
		v.BindEnv(key)
	}
	for _, key := range optionalKeys {
		v.BindEnv(key)
	}
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: failed to read config file: %v", domain.ErrConfigInvalid, err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("BATCH_SIZE", 10000)
	v.SetDefault("CHECK_INTERVAL_SECONDS", 10)
	v.SetDefault("ALLOWED_START_HOUR", 8)
	v.SetDefault("ALLOWED_END_HOUR", 22)
	v.SetDefault("TIMEZONE", "Asia/Tehran")
	v.SetDefault("ROW_FAILURE_POLICY", string(transform.PolicySkip))
	v.SetDefault("HEALTH_WINDOW_MINUTES", 5)
	v.SetDefault("POOL_TIMEOUT_SECONDS", 30)
	v.SetDefault("TARGET_POOL_SIZE", 10)
	v.SetDefault("SOURCE_POOL_SIZE", 5)
	v.SetDefault("SOURCE_TABLE", "en_tms.szaf_dismounting_log")
	v.SetDefault("TARGET_TABLE", "mfu.device_tamper_log")
	v.SetDefault("LOG_LEVEL", "info")
}

func fromViper(v *viper.Viper) (Config, error) {
	var missing []string
	for _, key := range requiredKeys {
		if strings.TrimSpace(v.GetString(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return Config{}, &MissingKeysError{Keys: missing}
	}

	invalid := func(format string, args ...any) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", domain.ErrConfigInvalid, fmt.Sprintf(format, args...))
	}

	actor, err := uuid.Parse(strings.TrimSpace(v.GetString("USER_GUID")))
	if err != nil {
		return invalid("USER_GUID is not a UUID: %v", err)
	}

	policy, err := transform.ParsePolicy(v.GetString("ROW_FAILURE_POLICY"))
	if err != nil {
		return invalid("ROW_FAILURE_POLICY: %v", err)
	}

	startHour, endHour := v.GetInt("ALLOWED_START_HOUR"), v.GetInt("ALLOWED_END_HOUR")
	if startHour < 0 || startHour > 23 || endHour < 0 || endHour > 23 || startHour > endHour {
		return invalid("allowed hours must satisfy 0 <= start <= end <= 23, got %d-%d", startHour, endHour)
	}
	if _, err := time.LoadLocation(v.GetString("TIMEZONE")); err != nil {
		return invalid("TIMEZONE: %v", err)
	}

	interval := v.GetInt("CHECK_INTERVAL_SECONDS")
	if interval <= 0 {
		return invalid("CHECK_INTERVAL_SECONDS must be positive, got %d", interval)
	}

	prefixes, err := partIDs(v)
	if err != nil {
		return invalid("PART_ID_BY_PREFIX: %v", err)
	}

	poolTimeout := time.Duration(v.GetInt("POOL_TIMEOUT_SECONDS")) * time.Second

	source := db.DefaultSourceConfig()
	source.DSN = v.GetString("SOURCE_DB")
	if n := v.GetInt("SOURCE_POOL_SIZE"); n > 0 {
		source.MaxOpenConns = n
		source.MaxIdleConns = min(source.MaxIdleConns, n)
	}
	source.AcquireTimeout = poolTimeout

	target := db.DefaultConfig()
	target.DSN = v.GetString("TARGET_DB")
	if n := v.GetInt("TARGET_POOL_SIZE"); n > 0 {
		target.MaxConns = int32(n)
	}
	target.AcquireTimeout = poolTimeout

	return Config{
		Source:           source,
		SourceTable:      v.GetString("SOURCE_TABLE"),
		Target:           target,
		TargetTable:      v.GetString("TARGET_TABLE"),
		Actor:            strings.ToUpper(actor.String()),
		BatchSize:        ClampBatchSize(v.GetInt("BATCH_SIZE")),
		Interval:         time.Duration(interval) * time.Second,
		StartHour:        startHour,
		EndHour:          endHour,
		Timezone:         v.GetString("TIMEZONE"),
		RowFailurePolicy: policy,
		PartIDByPrefix:   prefixes,
		Monitoring: MonitoringConfig{
			URI:         v.GetString("BT_MONGO_URI"),
			Database:    v.GetString("BT_MONGO_DB"),
			Collection:  v.GetString("BT_MONGO_COLLECTION"),
			App:         v.GetString("BT_APP_NAME"),
			Environment: v.GetString("BT_ENVIRONMENT"),
		},
		HealthLookback: time.Duration(v.GetInt("HEALTH_WINDOW_MINUTES")) * time.Minute,
		StatusAddr:     v.GetString("STATUS_ADDR"),
		AllowedOrigins: splitList(v.GetString("STATUS_ALLOWED_ORIGINS")),
		LogLevel:       v.GetString("LOG_LEVEL"),
	}, nil
}

// ClampBatchSize keeps n within [1, MaxBatchSize].
func ClampBatchSize(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxBatchSize {
		return MaxBatchSize
	}
	return n
}

// partIDs reads the prefix table from a YAML map or, from the environment,
// a JSON object. Unset means the built-in table.
func partIDs(v *viper.Viper) (map[string]string, error) {
	if !v.IsSet("PART_ID_BY_PREFIX") {
		return copyMap(transform.DefaultPartIDByPrefix), nil
	}

	switch raw := v.Get("PART_ID_BY_PREFIX").(type) {
	case string:
		if strings.TrimSpace(raw) == "" {
			return copyMap(transform.DefaultPartIDByPrefix), nil
		}
		out := map[string]string{}
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, fmt.Errorf("expected a JSON object: %w", err)
		}
		return out, nil
	default:
		return v.GetStringMapString("PART_ID_BY_PREFIX"), nil
	}
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, val := range in {
		out[k] = val
	}
	return out
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
