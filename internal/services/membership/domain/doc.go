// Package domain holds the membership rules: subscription levels, the member
// lifecycle state machine, expiration arithmetic, content access evaluation,
// and discount math.
//
// Everything here is pure. Callers pass the current instant explicitly and
// persist the returned values; no function reads the clock or storage.
package domain
