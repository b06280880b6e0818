// Package connector provides the framework TalentSync adapters are built
// on. An adapter is the engine's view of one kind of external recruiting
// system; the framework gives every adapter the same lifecycle, sync and
// webhook contract so the engine can drive any source the same way.
//
// # Architecture Overview
//
// The connector package is organized into sub-packages:
//
//   - core: Defines the Adapter interface (connection lifecycle, job and
//     candidate sync phases) and the optional WebhookHandler interface for
//     sources that push changes. It also fixes the closed set of adapter
//     kinds: crm, hris, talent_network and fixture.
//
//   - registry: Implements a factory pattern keyed by adapter kind.
//     Adapter packages self-register during initialization, and the engine
//     instantiates adapters from source configuration at first use.
//
//   - adapters: Contains the bundled adapter implementations. The fixture
//     adapter serves candidates and jobs from local JSON documents and
//     drives demos and integration tests through the full sync pipeline.
//
// # Core Concepts
//
// Adapters are deliberately thin. Retry, rate limiting and circuit
// breaking live in the resilience package and wrap every adapter call the
// engine makes, so an adapter only translates between its vendor API and
// the engine's models. An adapter should return structured errors from the
// errors package and honor context cancellation on every blocking call.
//
// Sync phases are separate operations: SyncJobs runs before SyncCandidates
// within a run so candidate-to-job references resolve. Both phases take a
// SyncRequest carrying the incremental window, the optional job filter and
// the page size, and report per-record outcomes in a SyncResult rather
// than failing the whole phase on a bad record.
//
// # Example Usage
//
// Registering and creating an adapter:
//
//	func init() {
//		registry.MustRegister(core.KindFixture, New)
//	}
//
//	cfg := &config.SourceConfig{
//		Name: "acme-crm",
//		Kind: "fixture",
//		Options: map[string]string{
//			"candidates_file": "candidates.json",
//		},
//	}
//
//	adapter, err := registry.Create(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := adapter.Connect(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer adapter.Disconnect(ctx)
//
//	result, err := adapter.SyncCandidates(ctx, core.SyncRequest{PageSize: 100})
//
// Sources that support push delivery additionally expose a webhook
// handler:
//
//	if h := adapter.WebhookHandler(); h != nil {
//		ok := h.VerifySignature(payload, signature, secret)
//		...
//	}
//
// # Best Practices
//
// 1. Keep vendor field mapping inside the adapter; the engine only sees models
// 2. Use structured errors so retry classification works
// 3. Report bad records through SyncResult errors instead of aborting the phase
// 4. Populate CreatedIDs so duplicate detection can run after the phase
// 5. Make Disconnect safe to call after a failed Connect
// 6. Handle context cancellation on every vendor call
package connector
