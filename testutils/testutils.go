package testutils

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"

	"mentionguard/config"
	"mentionguard/core"
	"mentionguard/models"
)

// LoadTestConfig loads the database configuration for integration tests
func LoadTestConfig() (*config.AppConfig, error) {
	_ = godotenv.Load("../.env.test")
	_ = godotenv.Load("../../.env.test")
	_ = godotenv.Load(".env.test")

	databaseURL := os.Getenv("DB_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DB_URL is not set")
	}

	databaseSchema := os.Getenv("DB_SCHEMA")
	if databaseSchema == "" {
		return nil, fmt.Errorf("DB_SCHEMA is not set")
	}

	return &config.AppConfig{
		DatabaseURL:    databaseURL,
		DatabaseSchema: databaseSchema,
	}, nil
}

// RequireTestConfig skips the test when no test database is configured
func RequireTestConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg, err := LoadTestConfig()
	if err != nil {
		t.Skipf("skipping database test: %v", err)
	}
	return cfg
}

// NewTestGuildID returns a unique guild ID so parallel runs never collide
func NewTestGuildID() string {
	return core.NewID("testguild")
}

// CreateTestContext returns a background context for tests
func CreateTestContext() context.Context {
	return context.Background()
}

// AssertBatch checks the counters of a batch result
func AssertBatch(t *testing.T, batch models.BatchResult, successes, failures int) {
	t.Helper()
	require.Equal(t, successes, batch.SuccessCount, "success count")
	require.Equal(t, failures, batch.ErrorCount, "error count")
	require.Len(t, batch.Results, successes+failures)
}
