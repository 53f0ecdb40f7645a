// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): indexes, stores and external AI services.
package driven
