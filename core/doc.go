// Package core contains the canonical integration-connection domain
// contracts, configuration, and orchestration logic. Lower-level adapters
// (providers, ratelimit, store) depend on this package; core must not
// depend on provider-specific or transport-specific adapters.
package core
