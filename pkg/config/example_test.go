package config_test

import (
	"fmt"

	"github.com/talentsync/talentsync/pkg/config"
)

// ExampleNewSourceConfig demonstrates creating a source configuration
// with default values.
func ExampleNewSourceConfig() {
	// Create a configuration for a CRM source
	cfg := config.NewSourceConfig("acme-crm", "crm")

	// The configuration comes with production-ready defaults
	fmt.Printf("Rate limit: %g req/s\n", cfg.RateLimit.RequestsPerSecond)
	fmt.Printf("Max retries: %d\n", cfg.Retry.MaxRetries)
	fmt.Printf("Breaker threshold: %d\n", cfg.Breaker.FailureThreshold)
	fmt.Printf("Page size: %d\n", cfg.Sync.PageSize)

	// Output:
	// Rate limit: 5 req/s
	// Max retries: 3
	// Breaker threshold: 5
	// Page size: 100
}

// ExampleNewEngineConfig shows the engine-wide defaults applied when no
// YAML file overrides them.
func ExampleNewEngineConfig() {
	cfg := config.NewEngineConfig()

	fmt.Printf("Failure threshold: %d\n", cfg.Health.FailureThreshold)
	fmt.Printf("Stale after: %s\n", cfg.Health.StaleAfter)
	fmt.Printf("State backend: %s\n", cfg.Store.Backend)

	// Output:
	// Failure threshold: 3
	// Stale after: 24h0m0s
	// State backend: memory
}

// ExampleSourceConfig_Validate shows how to validate a configuration
// before handing it to an adapter.
func ExampleSourceConfig_Validate() {
	cfg := config.NewSourceConfig("acme-crm", "crm")

	// Enabling rate limiting without a burst is a configuration error
	cfg.RateLimit.Burst = 0
	if err := cfg.Validate(); err != nil {
		fmt.Println("invalid:", err)
	}

	cfg.RateLimit.Burst = 10
	if err := cfg.Validate(); err == nil {
		fmt.Println("valid")
	}

	// Output:
	// invalid: burst must be positive when rate limiting is enabled
	// valid
}

// ExampleEngineConfig_Source demonstrates looking up one source block by
// name.
func ExampleEngineConfig_Source() {
	cfg := config.NewEngineConfig()
	cfg.Sources = append(cfg.Sources, *config.NewSourceConfig("acme-crm", "crm"))

	if sc, ok := cfg.Source("acme-crm"); ok {
		fmt.Printf("found %s (%s)\n", sc.Name, sc.Kind)
	}
	if _, ok := cfg.Source("missing"); !ok {
		fmt.Println("missing source not found")
	}

	// Output:
	// found acme-crm (crm)
	// missing source not found
}
