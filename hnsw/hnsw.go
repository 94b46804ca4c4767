// Package hnsw implements a Hierarchical Navigable Small World graph over
// static float32 vectors. It is the default nearest-neighbor engine the MIP
// reductions delegate candidate generation to: vectors are bulk-inserted
// once at build time and the graph is read-only afterwards.
package hnsw

import (
	"math"
	"math/rand"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/hupe1980/mipgo/distance"
	"github.com/hupe1980/mipgo/index"
	"github.com/hupe1980/mipgo/internal/queue"
)

// Node represents a node in the HNSW graph.
type Node struct {
	Connections [][]uint32 // Links to other nodes, one slice per layer
	Vector      []float32  // Vector (dimension coordinates)
	Layer       int        // Highest layer the node exists in
	ID          uint32     // Graph-local identifier
}

// Options represents the options for configuring HNSW.
type Options struct {
	// M specifies the number of established connections for every new
	// element during construction. The range 12-48 works for most use
	// cases; higher M suits high-dimensional data and high recall.
	M int

	// EF specifies the size of the dynamic candidate list during
	// construction and search. Larger EF improves recall at the cost of
	// search time.
	EF int

	// Heuristic selects the neighbour-selection strategy: the pruning
	// heuristic (true) or naive closest-M (false).
	Heuristic bool

	// Seed seeds layer assignment. Fixed seeds give deterministic graphs.
	Seed int64
}

// DefaultOptions contains the default configuration.
var DefaultOptions = Options{
	M:         16,
	EF:        200,
	Heuristic: true,
	Seed:      1,
}

// HNSW represents the Hierarchical Navigable Small World graph.
type HNSW struct {
	dimension int
	mmax      int     // Max connections per node per layer
	mmax0     int     // Max connections on layer 0
	ml        float64 // Normalization factor for level generation
	ep        uint32  // Entry point
	maxLevel  int
	nodes     []*Node
	rng       *rand.Rand
	opts      Options

	mutex sync.Mutex // guards inserts; the graph is read-only afterwards
}

// Compile-time check: the engine satisfies the NN delegate contract.
var _ index.NNIndex = (*HNSW)(nil)

// New creates an empty HNSW graph for vectors of the given dimension.
func New(dimension int, optFns ...func(o *Options)) *HNSW {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.M < 2 {
		// M == 1 would make ml = 1/log(M) divide by zero.
		opts.M = 2
	}

	return &HNSW{
		dimension: dimension,
		mmax:      opts.M,
		mmax0:     2 * opts.M,
		ml:        1 / math.Log(float64(opts.M)),
		rng:       rand.New(rand.NewSource(opts.Seed)),
		opts:      opts,
	}
}

// Bulkload builds a graph over vectors in one pass. The returned graph's
// node ids equal the positions in the input slice.
func Bulkload(vectors [][]float32, optFns ...func(o *Options)) (*HNSW, error) {
	if len(vectors) == 0 {
		return nil, index.ErrEmptyDataset
	}
	h := New(len(vectors[0]), optFns...)
	for _, v := range vectors {
		if _, err := h.Insert(v); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Len returns the number of nodes in the graph.
func (h *HNSW) Len() int { return len(h.nodes) }

// Dimension returns the vector dimensionality of the graph.
func (h *HNSW) Dimension() int { return h.dimension }

// Insert adds a vector to the graph and returns its node id.
func (h *HNSW) Insert(v []float32) (uint32, error) {
	if len(v) != h.dimension {
		return 0, &index.ErrDimensionMismatch{Expected: h.dimension, Actual: len(v)}
	}

	vectorCopy := make([]float32, len(v))
	copy(vectorCopy, v)

	h.mutex.Lock()
	defer h.mutex.Unlock()

	id := uint32(len(h.nodes))
	layer := int(math.Floor(-math.Log(h.rng.Float64()) * h.ml))

	node := &Node{
		ID:          id,
		Vector:      vectorCopy,
		Layer:       layer,
		Connections: make([][]uint32, layer+1),
	}

	if len(h.nodes) == 0 {
		h.nodes = append(h.nodes, node)
		h.ep = id
		h.maxLevel = layer
		return id, nil
	}

	// Greedy descent through layers above the node's own top layer.
	currID, currDist := h.greedyDescend(vectorCopy, h.ep, h.maxLevel, node.Layer+1)

	for level := min(node.Layer, h.maxLevel); level >= 0; level-- {
		results := h.searchLayer(vectorCopy, queue.Item{Node: currID, Distance: currDist}, h.opts.EF, level)

		neighbours := h.selectNeighbours(vectorCopy, results, h.opts.M)
		node.Connections[level] = neighbours

		if len(neighbours) > 0 {
			// Continue the descent from the closest neighbour found.
			currID = neighbours[0]
			currDist = distance.SquaredL2(vectorCopy, h.nodes[currID].Vector)
		}
	}

	h.nodes = append(h.nodes, node)

	// Link neighbours back to the new node, making it visible.
	for level := min(node.Layer, h.maxLevel); level >= 0; level-- {
		for _, neighbour := range node.Connections[level] {
			h.link(neighbour, id, level)
		}
	}

	if node.Layer > h.maxLevel {
		h.ep = id
		h.maxLevel = node.Layer
	}

	return id, nil
}

// SearchResult is a single nearest-neighbor match.
type SearchResult struct {
	ID       uint32
	Distance float32 // Squared L2 distance to the query
}

// KNNSearch returns the approximate k nearest neighbours of q, closest
// first. efSearch values below k are raised to k.
func (h *HNSW) KNNSearch(q []float32, k int, efSearch int) ([]SearchResult, error) {
	if len(q) != h.dimension {
		return nil, &index.ErrDimensionMismatch{Expected: h.dimension, Actual: len(q)}
	}
	if k < 1 {
		return nil, index.ErrInvalidK
	}
	if len(h.nodes) == 0 {
		return nil, nil
	}
	if efSearch < k {
		efSearch = k
	}

	epID, epDist := h.greedyDescend(q, h.ep, h.maxLevel, 1)
	results := h.searchLayer(q, queue.Item{Node: epID, Distance: epDist}, efSearch, 0)

	for results.Len() > k {
		results.Pop()
	}

	out := make([]SearchResult, results.Len())
	for i := results.Len() - 1; i >= 0; i-- {
		item, _ := results.Pop()
		out[i] = SearchResult{ID: item.Node, Distance: item.Distance}
	}
	return out, nil
}

// KNN implements index.NNIndex: a top-k search whose results are cut off at
// the given Euclidean radius. An infinite radius is unrestricted.
func (h *HNSW) KNN(k int, radius float32, query []float32) ([]uint32, error) {
	ef := h.opts.EF
	results, err := h.KNNSearch(query, k, ef)
	if err != nil {
		return nil, err
	}

	bound := float64(radius) * float64(radius)
	ids := make([]uint32, 0, len(results))
	for _, r := range results {
		if !math.IsInf(float64(radius), 1) && float64(r.Distance) > bound {
			break // results are sorted by distance
		}
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// greedyDescend walks layer by layer from fromLevel down to toLevel,
// hopping to strictly closer neighbours until a local minimum is reached.
func (h *HNSW) greedyDescend(q []float32, entry uint32, fromLevel, toLevel int) (uint32, float32) {
	currID := entry
	currDist := distance.SquaredL2(q, h.nodes[currID].Vector)

	for level := fromLevel; level >= toLevel; level-- {
		changed := true
		for changed {
			changed = false
			node := h.nodes[currID]
			if level >= len(node.Connections) {
				continue
			}
			for _, n := range node.Connections[level] {
				d := distance.SquaredL2(q, h.nodes[n].Vector)
				if d < currDist {
					currID = n
					currDist = d
					changed = true
				}
			}
		}
	}
	return currID, currDist
}

// searchLayer runs a best-first search in one layer and returns a
// max-ordered queue of at most ef candidates.
func (h *HNSW) searchLayer(q []float32, ep queue.Item, ef, level int) *queue.PriorityQueue {
	var visited bitset.BitSet
	visited.Set(uint(ep.Node))

	candidates := queue.NewMin(ef)
	candidates.Push(ep)

	results := queue.NewMax(ef + 1)
	results.Push(ep)

	for candidates.Len() > 0 {
		worst, _ := results.Top()

		candidate, _ := candidates.Pop()
		if candidate.Distance > worst.Distance {
			break
		}

		node := h.nodes[candidate.Node]
		if level >= len(node.Connections) {
			continue
		}

		for _, n := range node.Connections[level] {
			if visited.Test(uint(n)) {
				continue
			}
			visited.Set(uint(n))

			d := distance.SquaredL2(q, h.nodes[n].Vector)
			worst, _ = results.Top()

			if results.Len() < ef {
				item := queue.Item{Node: n, Distance: d}
				results.Push(item)
				candidates.Push(item)
			} else if d < worst.Distance {
				item := queue.Item{Node: n, Distance: d}
				results.Pop()
				results.Push(item)
				candidates.Push(item)
			}
		}
	}

	return results
}

// selectNeighbours reduces a candidate queue to at most m neighbour ids,
// ordered closest first. The queue is consumed.
func (h *HNSW) selectNeighbours(q []float32, cands *queue.PriorityQueue, m int) []uint32 {
	// Drain the max-queue into ascending distance order.
	asc := make([]queue.Item, cands.Len())
	for i := len(asc) - 1; i >= 0; i-- {
		asc[i], _ = cands.Pop()
	}

	if !h.opts.Heuristic || len(asc) <= m {
		if len(asc) > m {
			asc = asc[:m]
		}
		ids := make([]uint32, len(asc))
		for i, it := range asc {
			ids[i] = it.Node
		}
		return ids
	}

	// Heuristic pruning: keep a candidate only if no already-kept
	// neighbour is closer to it than the candidate is to q. This spreads
	// connections instead of clustering them.
	kept := make([]queue.Item, 0, m)
	discarded := make([]queue.Item, 0, len(asc))

	for _, it := range asc {
		if len(kept) >= m {
			break
		}
		hit := true
		for _, kp := range kept {
			if distance.SquaredL2(h.nodes[kp.Node].Vector, h.nodes[it.Node].Vector) < it.Distance {
				hit = false
				break
			}
		}
		if hit {
			kept = append(kept, it)
		} else {
			discarded = append(discarded, it)
		}
	}

	for len(kept) < m && len(discarded) > 0 {
		kept = append(kept, discarded[0])
		discarded = discarded[1:]
	}

	ids := make([]uint32, len(kept))
	for i, it := range kept {
		ids[i] = it.Node
	}
	return ids
}

// link records an edge first -> second on the given level, pruning the
// connection list back to the per-level maximum when it overflows.
func (h *HNSW) link(first, second uint32, level int) {
	maxConnections := h.mmax
	// Double the connections on the bottom layer.
	if level == 0 {
		maxConnections = h.mmax0
	}

	node := h.nodes[first]
	if level >= len(node.Connections) {
		return
	}
	node.Connections[level] = append(node.Connections[level], second)

	if len(node.Connections[level]) <= maxConnections {
		return
	}

	cands := queue.NewMax(len(node.Connections[level]))
	for _, id := range node.Connections[level] {
		cands.Push(queue.Item{
			Node:     id,
			Distance: distance.SquaredL2(node.Vector, h.nodes[id].Vector),
		})
	}

	node.Connections[level] = h.selectNeighbours(node.Vector, cands, maxConnections)
}

// NewBuilder returns an index.NNIndexBuilder that bulkloads HNSW graphs
// with the given options. The NN approximation ratio has no direct knob in
// HNSW; recall is controlled by M and EF instead, so the ratio only feeds
// the parameter dump of the caller.
func NewBuilder(optFns ...func(o *Options)) index.NNIndexBuilder {
	return func(vectors [][]float32, _ float32) (index.NNIndex, error) {
		return Bulkload(vectors, optFns...)
	}
}
