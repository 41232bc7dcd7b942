// Package graph provides the bipartite computation graph built by a recorder.
// Variables and Operations live in an arena per Graph and are wired by edges
// typed with argument or result positions. Graphs nest into a subgraph tree
// whose interior nodes are the bodies of composite Operations. The package also
// provides topological traversal, structural validation, collapse of
// operation subsets into composites, and an execution pass.
package graph
