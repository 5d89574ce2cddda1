package testutils

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock(t *testing.T) {
	start := time.Unix(1700000000, 0)
	clk := NewFakeClock(start)

	assert.Equal(t, start, clk.Now())

	clk.Advance(3 * time.Second)
	assert.Equal(t, start.Add(3*time.Second), clk.Now())

	clk.Sleep(time.Millisecond)
	assert.Equal(t, start.Add(3*time.Second+time.Millisecond), clk.Now())

	clk.Set(start)
	assert.Equal(t, start, clk.Now())
}

func TestFakeTicker(t *testing.T) {
	tikr := NewFakeTicker()
	at := time.Unix(5, 0)

	got := make(chan time.Time, 1)
	go func() { got <- <-tikr.C() }()

	assert.True(t, tikr.Tick(at))
	assert.Equal(t, at, <-got)

	tikr.Stop()
	tikr.Stop()
	assert.False(t, tikr.Tick(at))
}

func TestErrorIsHelper(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", sentinel))

	TestErrorIs(t, fmt.Errorf("x: %w", sentinel), err, sentinel)
}
