// Package providers holds the static per-provider descriptor table and the
// protocol operations that consume it: authorization URL assembly, token
// exchange and normalization, user-info enrichment, and revocation.
//
// All provider-specific branching lives on the Descriptor rows. Adding a
// provider means adding one row, not touching five functions.
package providers
