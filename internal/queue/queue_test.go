package queue

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var items = []float32{0.4, 9, 0.001, 0.0534, 0.234, 2.03, 2.042, 2.532, 1.0009, 0.329, 0.193, 0.999, 0.020391, 2.0991, 1.203, 10.03, 1.039, 1.0008, 5.029, 0.789}

func TestMaxOrdering(t *testing.T) {
	pq := NewMax(len(items))
	for i, d := range items {
		pq.Push(Item{Node: uint32(i), Distance: d})
	}

	top, ok := pq.Top()
	require.True(t, ok)
	assert.Equal(t, float32(10.03), top.Distance)

	prev, _ := pq.Pop()
	for pq.Len() > 0 {
		next, ok := pq.Pop()
		require.True(t, ok)
		assert.LessOrEqual(t, next.Distance, prev.Distance)
		prev = next
	}
}

func TestMinOrdering(t *testing.T) {
	pq := NewMin(0)
	r := rand.New(rand.NewSource(1))

	values := make([]float32, 100)
	for i := range values {
		values[i] = r.Float32()
		pq.Push(Item{Node: uint32(i), Distance: values[i]})
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	for _, want := range values {
		got, ok := pq.Pop()
		require.True(t, ok)
		assert.Equal(t, want, got.Distance)
	}

	_, ok := pq.Pop()
	assert.False(t, ok)
}

func TestReset(t *testing.T) {
	pq := NewMin(4)
	pq.Push(Item{Node: 1, Distance: 1})
	pq.Reset()
	assert.Equal(t, 0, pq.Len())
	_, ok := pq.Top()
	assert.False(t, ok)
}
