package graph

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

type hashableNode struct {
	Kind     string  `json:"kind"`
	Name     string  `json:"name,omitempty"`
	Shape    []int   `json:"shape,omitempty"`
	Kernel   string  `json:"kernel,omitempty"`
	Captured bool    `json:"captured,omitempty"`
	Exported bool    `json:"exported,omitempty"`
	In       []Edge  `json:"in,omitempty"`
	Body     *string `json:"body,omitempty"`
}

// ComputeHash computes a structural fingerprint of the graph and its
// subgraphs for change detection. Values are not part of the hash.
func (g *Graph) ComputeHash() string {
	nodes := make([]hashableNode, 0, len(g.index))
	for _, e := range g.entries {
		if e.removed {
			continue
		}
		h := hashableNode{
			Kind:     e.node.Kind().String(),
			Name:     e.node.Name(),
			Captured: e.captured,
			Exported: e.exported,
			In:       e.in,
		}
		switch n := e.node.(type) {
		case *Variable:
			h.Shape = n.shape
		case *Operation:
			if n.kernel != nil {
				h.Kernel = n.kernel.Name()
			}
			if n.body != nil {
				body := n.body.ComputeHash()
				h.Body = &body
			}
		}
		nodes = append(nodes, h)
	}

	data, err := json.Marshal(nodes)
	if err != nil {
		return ""
	}

	// Use xxhash for fast hashing
	return fmt.Sprintf("%x", xxhash.Sum64(data))
}

// HasChanged returns true if the graph has changed since the last hash
func (g *Graph) HasChanged(previousHash string) bool {
	if previousHash == "" {
		return true // No previous hash means this is new
	}
	return g.ComputeHash() != previousHash
}
