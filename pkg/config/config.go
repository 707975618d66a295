package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server      ServerConfig
	Monitoring  MonitoringConfig
	Scaling     ScalingConfig
	Advisor     AdvisorConfig
	Telemetry   TelemetryConfig
	Actuator    ActuatorConfig
	Guardian    GuardianConfig
	Correlation CorrelationConfig
	Influx      InfluxConfig
	SQLite      SQLiteConfig
}

type ServerConfig struct {
	Port int
}

type MonitoringConfig struct {
	Services            []string
	PollInterval        time.Duration
	HistoryMaxEntries   int
	DegradedAfterCycles int
	AutoStart           bool
}

type ScalingConfig struct {
	MinReplicas           int
	MaxReplicas           int
	ConfidenceFloor       float64
	CoordinationFactor    float64
	BusinessHoursStart    int
	BusinessHoursEnd      int
	RecentDecisionsToKeep int
}

type AdvisorConfig struct {
	BaseURL string
	Timeout time.Duration
}

type TelemetryConfig struct {
	BaseURL string
	Timeout time.Duration
}

type ActuatorConfig struct {
	BaseURL string
	Timeout time.Duration
}

type GuardianConfig struct {
	BaseURL string
	Timeout time.Duration
}

type CorrelationConfig struct {
	Window        time.Duration
	SweepInterval time.Duration
}

type InfluxConfig struct {
	Host     string
	Token    string
	Database string
}

type SQLiteConfig struct {
	DBPath string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("PORT", 8083),
		},
		Monitoring: MonitoringConfig{
			Services:            getEnvList("MONITORED_SERVICES", "frontend,balancereader,ledgerwriter,transactionhistory,userservice,contacts"),
			PollInterval:        getEnvDuration("POLL_INTERVAL", 30*time.Second),
			HistoryMaxEntries:   getEnvInt("HISTORY_MAX_ENTRIES", 100),
			DegradedAfterCycles: getEnvInt("DEGRADED_AFTER_CYCLES", 3),
			AutoStart:           getEnv("MONITORING_AUTO_START", "true") != "false",
		},
		Scaling: ScalingConfig{
			MinReplicas:           getEnvInt("MIN_REPLICAS", 1),
			MaxReplicas:           getEnvInt("MAX_REPLICAS", 10),
			ConfidenceFloor:       getEnvFloat("ADVISORY_CONFIDENCE_FLOOR", 0.5),
			CoordinationFactor:    getEnvFloat("COORDINATION_CHANGE_FACTOR", 2.0),
			BusinessHoursStart:    getEnvInt("BUSINESS_HOURS_START", 9),
			BusinessHoursEnd:      getEnvInt("BUSINESS_HOURS_END", 17),
			RecentDecisionsToKeep: getEnvInt("RECENT_DECISIONS_TO_KEEP", 50),
		},
		Advisor: AdvisorConfig{
			BaseURL: getEnv("ADVISOR_BASE_URL", ""),
			Timeout: getEnvDuration("ADVISOR_TIMEOUT", 5*time.Second),
		},
		Telemetry: TelemetryConfig{
			BaseURL: getTelemetryBaseURL(),
			Timeout: getEnvDuration("TELEMETRY_SOURCE_TIMEOUT", 5*time.Second),
		},
		Actuator: ActuatorConfig{
			BaseURL: getEnv("ACTUATOR_BASE_URL", ""),
			Timeout: getEnvDuration("ACTUATOR_TIMEOUT", 10*time.Second),
		},
		Guardian: GuardianConfig{
			BaseURL: getEnv("FINANCIAL_GUARDIAN_URL", ""),
			Timeout: getEnvDuration("FINANCIAL_GUARDIAN_TIMEOUT", 5*time.Second),
		},
		Correlation: CorrelationConfig{
			Window:        getEnvDuration("CORRELATION_WINDOW", 5*time.Minute),
			SweepInterval: getEnvDuration("CORRELATION_SWEEP_INTERVAL", time.Minute),
		},
		Influx: InfluxConfig{
			Host:     getEnv("INFLUX_HOST", ""),
			Token:    getEnv("INFLUX_TOKEN", ""),
			Database: getEnv("INFLUX_DATABASE", ""),
		},
		SQLite: SQLiteConfig{
			DBPath: getEnv("SQLITE_DB_PATH", "./data/decisions.db"),
		},
	}

	if cfg.Scaling.MinReplicas < 1 {
		cfg.Scaling.MinReplicas = 1
	}
	if cfg.Scaling.MaxReplicas < cfg.Scaling.MinReplicas {
		return nil, fmt.Errorf("MAX_REPLICAS (%d) must be >= MIN_REPLICAS (%d)", cfg.Scaling.MaxReplicas, cfg.Scaling.MinReplicas)
	}
	if len(cfg.Monitoring.Services) == 0 {
		return nil, fmt.Errorf("MONITORED_SERVICES must name at least one service")
	}

	return cfg, nil
}

func ValidateEnv() error {
	v1 := os.Getenv("TELEMETRY_SOURCE_BASE_URL")
	v2 := os.Getenv("SERVICE_TELEMETRY_URL")

	if v1 == "" && v2 == "" {
		return fmt.Errorf("TELEMETRY_SOURCE_BASE_URL (or SERVICE_TELEMETRY_URL) is required")
	}
	return nil
}

func getTelemetryBaseURL() string {
	if v := os.Getenv("TELEMETRY_SOURCE_BASE_URL"); v != "" {
		return v
	}
	if v := os.Getenv("SERVICE_TELEMETRY_URL"); v != "" {
		return v
	}
	return "http://telemetry-source:3000"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key, fallback string) []string {
	v := os.Getenv(key)
	if v == "" {
		v = fallback
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
