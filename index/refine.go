package index

import (
	"github.com/hupe1980/mipgo/distance"
	"github.com/hupe1980/mipgo/topk"
)

// Refine recomputes the exact inner product between the query and the
// candidate data object and folds it into the accumulator. It is the shared
// last step of every reduction: candidate generation is approximate, the
// reported score never is.
//
// The inserted id is shifted to 1-based so that 0 stays distinguishable as
// "unset" in public results. The returned value is the accumulator's updated
// pruning threshold.
func Refine(ds *Dataset, query []float32, id uint32, filter FilterFunc, list *topk.MaxKList) float32 {
	if filter != nil && !filter(id) {
		return list.Threshold()
	}
	ip := distance.Dot(ds.Vector(id), query)
	return list.Insert(ip, id+1)
}
