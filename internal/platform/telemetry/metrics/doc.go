// Package metrics provides operational metrics collection.
//
// # Metric Categories
//
//   - Access: content access decisions by outcome and reason code
//   - Lifecycle: membership status transitions and checkout outcomes
//   - Discounts: redemptions by discount unit
//   - Worker: members expired by the sweep loop
//   - HTTP: request latency by route and status
//   - Cache: subscription level cache hits and misses
//
// Collectors are registered once per registry. Services share the default
// registry through Default; tests build isolated registries with New.
package metrics
