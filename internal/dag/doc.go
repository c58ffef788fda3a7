// Package dag holds the dependency graph used to order pipeline stages.
//
// Nodes are identified by string IDs. An edge from A to B records that B
// depends on A. The bootstrap orchestrator declares its stages and their
// preconditions as edges, validates the graph for cycles and then walks
// TopologicalOrder one stage at a time.
package dag
