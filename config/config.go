package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type DiscordConfig struct {
	BotToken string
	AppID    string
}

// IsConfigured returns true if all required Discord configuration is present
func (c DiscordConfig) IsConfigured() bool {
	return c.BotToken != "" && c.AppID != ""
}

type AlertsConfig struct {
	SlackWebhookURL string
}

// IsConfigured returns true if operator alerts can be delivered
func (c AlertsConfig) IsConfigured() bool {
	return c.SlackWebhookURL != ""
}

type MonitoringConfig struct {
	DefaultInterval time.Duration
	Workers         int
}

type GateConfig struct {
	InitialTimeout time.Duration
	FinalTimeout   time.Duration
}

type FixConfig struct {
	RateLimitRetryDelay time.Duration
	MentionRoleName     string
}

type AppConfig struct {
	// Core configuration (always required)
	DatabaseURL        string
	DatabaseSchema     string
	Port               string // Optional with default "8080"
	CORSAllowedOrigins string // Optional with default "*"
	Environment        string
	ServerLogsURL      string
	LockDir            string
	UseStrictConfig    bool // If true, error when any integration is not fully configured

	DiscordConfig    DiscordConfig
	AlertsConfig     AlertsConfig
	MonitoringConfig MonitoringConfig
	GateConfig       GateConfig
	FixConfig        FixConfig
}

func LoadConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("⚠️ Could not load .env file, continuing with system env vars")
	}

	databaseURL, err := getEnvRequired("DB_URL")
	if err != nil {
		return nil, err
	}

	databaseSchema, err := getEnvRequired("DB_SCHEMA")
	if err != nil {
		return nil, err
	}

	monitorInterval, err := getEnvDuration("MONITOR_DEFAULT_INTERVAL", 30*time.Minute)
	if err != nil {
		return nil, err
	}

	monitorWorkers, err := getEnvInt("MONITOR_WORKERS", 4)
	if err != nil {
		return nil, err
	}

	gateInitialTimeout, err := getEnvDuration("GATE_INITIAL_TIMEOUT", 300*time.Second)
	if err != nil {
		return nil, err
	}

	gateFinalTimeout, err := getEnvDuration("GATE_FINAL_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}

	retryDelay, err := getEnvDuration("FIX_RATE_LIMIT_RETRY_DELAY", 2*time.Second)
	if err != nil {
		return nil, err
	}

	config := &AppConfig{
		DatabaseURL:        databaseURL,
		DatabaseSchema:     databaseSchema,
		Port:               getEnvWithDefault("PORT", "8080"),
		CORSAllowedOrigins: getEnvWithDefault("CORS_ALLOWED_ORIGINS", "*"),
		Environment:        getEnvWithDefault("ENVIRONMENT", "dev"),
		ServerLogsURL:      getEnvWithDefault("SERVER_LOGS_URL", ""),
		LockDir:            getEnvWithDefault("LOCK_DIR", os.TempDir()),
		UseStrictConfig:    getEnvWithDefault("USE_STRICT_CONFIG", "true") == "true",

		DiscordConfig: DiscordConfig{
			BotToken: os.Getenv("DISCORD_BOT_TOKEN"),
			AppID:    os.Getenv("DISCORD_APP_ID"),
		},

		AlertsConfig: AlertsConfig{
			SlackWebhookURL: os.Getenv("SLACK_ALERT_WEBHOOK_URL"),
		},

		MonitoringConfig: MonitoringConfig{
			DefaultInterval: monitorInterval,
			Workers:         monitorWorkers,
		},

		GateConfig: GateConfig{
			InitialTimeout: gateInitialTimeout,
			FinalTimeout:   gateFinalTimeout,
		},

		FixConfig: FixConfig{
			RateLimitRetryDelay: retryDelay,
			MentionRoleName:     getEnvWithDefault("MENTION_ROLE_NAME", "Mentions"),
		},
	}

	if config.DiscordConfig.IsConfigured() {
		log.Printf("✅ Discord integration configured")
	} else {
		return nil, fmt.Errorf("discord integration is not fully configured (DISCORD_BOT_TOKEN, DISCORD_APP_ID)")
	}

	if config.AlertsConfig.IsConfigured() {
		log.Printf("✅ Slack operator alerts configured")
	} else {
		log.Printf("⚠️ Slack operator alerts not configured - background failures will only be logged")
		if config.UseStrictConfig {
			return nil, fmt.Errorf("slack alerts are not configured (USE_STRICT_CONFIG=true)")
		}
	}

	return config, nil
}

func getEnvRequired(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s is not set", key)
	}
	return value, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s is not a valid duration: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s is not a valid integer: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return n, nil
}
