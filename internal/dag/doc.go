// Package dag is a minimal, concurrency-safe directed graph of string ids.
// It exists to answer one question cheaply and correctly: given the
// depends_on edges internal/dagcheck adds, is the resulting graph free of
// cycles. Dependencies and Dependents return a node's direct neighbours
// only; transitive reachability is not computed.
// It knows nothing about workflow nodes, histories, or execution; higher
// layers (internal/dagcheck) translate domain objects into edges here.
package dag
