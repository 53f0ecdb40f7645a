// Package domain contains the core types of the retrieval-and-memory engine:
// source documents, passages, retrieval results, citations and conversation
// turns. It has no dependencies on infrastructure packages.
package domain
