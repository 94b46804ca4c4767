package hnsw

import "fmt"

// Stats prints statistics about the HNSW graph.
func (h *HNSW) Stats() {
	fmt.Println("Parameters of HNSW:")
	fmt.Printf("    M         = %d\n", h.opts.M)
	fmt.Printf("    EF        = %d\n", h.opts.EF)
	fmt.Printf("    Heuristic = %v\n", h.opts.Heuristic)
	fmt.Printf("    mmax      = %d\n", h.mmax)
	fmt.Printf("    mmax0     = %d\n", h.mmax0)
	fmt.Printf("    ml        = %f\n", h.ml)
	fmt.Printf("    ep        = %d\n", h.ep)
	fmt.Printf("    maxLevel  = %d\n", h.maxLevel)
	fmt.Printf("    n         = %d\n\n", len(h.nodes))
}
