package params

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsWithinBounds(t *testing.T) {
	for _, p := range All() {
		assert.LessOrEqual(t, p.Min, p.Default, p.Name)
		assert.LessOrEqual(t, p.Default, p.Max, p.Name)
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, int32(10), QuantileCutoff.Clamp(1))
	assert.Equal(t, int32(99), QuantileCutoff.Clamp(100))
	assert.Equal(t, int32(55), QuantileCutoff.Clamp(55))
	assert.Equal(t, int32(math.MaxInt32), TestFrequency.Clamp(math.MaxInt32))
}

func TestLookup(t *testing.T) {
	p, ok := Lookup("cbtmincircs")
	require.True(t, ok)
	assert.Equal(t, MinCircuitsToObserve, p)

	_, ok = Lookup("cbtnothing")
	assert.False(t, ok)
}

func TestStatic(t *testing.T) {
	s := NewStatic(map[string]int32{
		"cbtmincircs": 3,
		"cbtquantile": 4,
	})

	assert.Equal(t, int32(3), s.Get(MinCircuitsToObserve))
	// out of bounds overrides are clamped
	assert.Equal(t, int32(10), s.Get(QuantileCutoff))
	assert.Equal(t, InitialTimeout.Default, s.Get(InitialTimeout))

	assert.Equal(t, NumXmModes.Default, NewStatic(nil).Get(NumXmModes))
}

func TestNetwork(t *testing.T) {
	n := NewNetwork(NewStatic(map[string]int32{"cbtnummodes": 5}))

	assert.Equal(t, int32(5), n.Get(NumXmModes))
	assert.Equal(t, int32(0), n.Get(Disabled))

	n.Update(map[string]int32{"cbtdisabled": 1, "cbtrecentcount": 1})

	assert.Equal(t, int32(1), n.Get(Disabled))
	assert.Equal(t, RecentCircuits.Min, n.Get(RecentCircuits))
	assert.Equal(t, int32(5), n.Get(NumXmModes))

	// update replaces, it does not merge
	n.Update(nil)
	assert.Equal(t, int32(0), n.Get(Disabled))
}

func TestNetworkConcurrentUpdate(t *testing.T) {
	n := NewNetwork(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(v int32) {
			defer wg.Done()
			n.Update(map[string]int32{"cbtnummodes": v})
		}(int32(i + 1))
		go func() {
			defer wg.Done()
			v := n.Get(NumXmModes)
			assert.GreaterOrEqual(t, v, NumXmModes.Min)
			assert.LessOrEqual(t, v, NumXmModes.Max)
		}()
	}
	wg.Wait()
}
