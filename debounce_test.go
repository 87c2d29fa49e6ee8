package main

import (
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

const testDelay = 50 * time.Millisecond

func TestDebounceEmitsLastValueOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	in := make(chan string)
	out := Debounce(ctx, in, testDelay)

	for _, v := range []string{"a", "b", "c"} {
		in <- v
	}

	select {
	case v := <-out:
		assert.Equal(t, "c", v)
	case <-time.After(time.Second):
		t.Fatal("debounced value never arrived")
	}

	select {
	case v := <-out:
		t.Fatalf("unexpected second emission %q", v)
	case <-time.After(3 * testDelay):
	}
}

func TestDebounceRestartsWindow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	in := make(chan int)
	out := Debounce(ctx, in, testDelay)

	start := time.Now()
	for i := 1; i <= 4; i++ {
		in <- i
		time.Sleep(testDelay / 2)
	}

	v := <-out
	assert.Equal(t, 4, v)
	assert.GreaterOrEqual(t, time.Since(start), 2*testDelay)
}

func TestDebounceSeparateBursts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	in := make(chan string)
	out := Debounce(ctx, in, testDelay)

	in <- "m"
	in <- "mo"
	assert.Equal(t, "mo", <-out)
	in <- "mou"
	in <- "mountains"
	assert.Equal(t, "mountains", <-out)
}

func TestDebounceCancelDropsPending(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan string)
	out := Debounce(ctx, in, testDelay)

	in <- "pending"
	cancel()

	select {
	case v, ok := <-out:
		require.False(t, ok, "got %q after cancel", v)
	case <-time.After(time.Second):
		t.Fatal("output was not closed after cancel")
	}
}

func TestDebounceClosedInput(t *testing.T) {
	in := make(chan string)
	out := Debounce(context.Background(), in, testDelay)
	close(in)

	_, ok := <-out
	assert.False(t, ok)
}
