// Package talentsync provides a synchronization and resilience engine that
// keeps a recruiting platform consistent with the external systems it pulls
// candidates and jobs from: CRM, HRIS and talent network services.
//
// TalentSync owns the operational half of recruiting data integration:
//   - Incremental and full sync runs with per-source watermarks
//   - Retry, rate limiting and circuit breaking around every vendor call
//   - Duplicate candidate detection across sources
//   - Conflict resolution for concurrent local and remote edits
//   - Signed webhook intake for push-style updates
//   - Per-source health classification and failure alerting
//
// # Architecture
//
// The engine is organized around three ideas:
//
// 1. Per-source ownership: every configured source gets its own adapter,
// resilience executor and state keys. Runs for one source are serialized;
// runs for different sources proceed in parallel.
//
// 2. Runs as values: a sync run always produces a SyncRun record with a
// terminal state (success, partial or failed). Orchestration faults become
// failed runs, not raw errors, so schedulers can treat every outcome
// uniformly.
//
// 3. Durable engine state: watermarks, failure logs, reprocess entries,
// conflict decisions and run history live in a pluggable state store
// (in-memory or PostgreSQL), keyed per source.
//
// # Quick Start
//
// Configure a source, build the engine and run a sync:
//
//	import (
//	    "context"
//
//	    "github.com/talentsync/talentsync/internal/engine"
//	    "github.com/talentsync/talentsync/pkg/config"
//	    _ "github.com/talentsync/talentsync/pkg/connector/adapters/fixture"
//	    "github.com/talentsync/talentsync/pkg/logger"
//	    "github.com/talentsync/talentsync/pkg/state"
//	)
//
//	cfg := config.NewEngineConfig()
//	cfg.Sources = append(cfg.Sources, config.SourceConfig{
//	    Name: "acme-crm",
//	    Kind: "fixture",
//	    Options: map[string]string{
//	        "candidates_file": "candidates.json",
//	        "jobs_file":       "jobs.json",
//	    },
//	})
//
//	store, _ := state.Open(context.Background(), cfg.Store)
//	eng, _ := engine.New(cfg, store, nil, logger.Get())
//	run := eng.SyncSource(context.Background(), "acme-crm", "manual")
//
// # Key Packages
//
//	internal/engine  - Sync orchestration, health evaluation, alerting
//	pkg/connector    - Adapter contract, registry and bundled adapters
//	pkg/resilience   - Retry, rate limiter and circuit breaker stack
//	pkg/dedupe       - Duplicate candidate detection and merging
//	pkg/conflict     - Field-level conflict resolution
//	pkg/state        - Engine state persistence (memory, PostgreSQL)
//	pkg/config       - Engine and per-source configuration
//	pkg/models       - Candidates, jobs, runs, health reports
//	pkg/errors       - Structured error handling
//	pkg/logger       - Structured logging
//	pkg/metrics      - Prometheus metrics collection
//
// # Sync Semantics
//
// Each run syncs jobs before candidates so that candidate-to-job links
// resolve. The incremental watermark is the start time of the last fully
// successful run; it never advances on partial or failed runs. Partial runs
// record a reprocess entry carrying the window and the record errors so the
// failed slice can be picked up again.
//
// # Health and Alerting
//
// A source is critical once its consecutive failure count reaches the
// configured threshold, warning while failures stay below it, stale when it
// has never synced or its watermark has outlived the staleness window, and
// healthy otherwise. Crossing the failure threshold emits exactly one alert
// per outage, delivered to the log and optionally to Kafka.
//
// # Configuration
//
// TalentSync uses a single YAML document with one block per source:
//
//	type EngineConfig struct {
//	    Sources       []SourceConfig      // One block per external system
//	    Health        HealthConfig        // Failure threshold, staleness
//	    Retention     RetentionConfig     // State retention windows
//	    Store         StoreConfig         // memory or postgres
//	    Alerting      AlertingConfig      // Kafka brokers and topic
//	    Observability ObservabilityConfig // Metrics, tracing, logging
//	}
//
// Environment variables are supported with ${VAR_NAME} syntax.
package talentsync
