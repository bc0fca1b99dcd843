package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type token struct {
	Mint string `json:"mint"`
	V    int    `json:"v"`
}

func decodeToken(data json.RawMessage) (token, error) {
	var tok token
	if err := json.Unmarshal(data, &tok); err != nil {
		return token{}, err
	}
	if tok.Mint == "" {
		return token{}, fmt.Errorf("missing mint")
	}
	return tok, nil
}

func tokenKey(t token) string { return t.Mint }

type recorder struct {
	mu      sync.Mutex
	batches [][]token
}

func (r *recorder) sink(batch []token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, batch)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func TestFlushKeepsLastPerKey(t *testing.T) {
	rec := &recorder{}
	q := NewQueue("cosmo", time.Second, decodeToken, tokenKey, rec.sink)

	q.Enqueue(json.RawMessage(`{"mint":"A","v":1}`))
	q.Enqueue(json.RawMessage(`{"mint":"B","v":1}`))
	q.Enqueue(json.RawMessage(`{"mint":"A","v":2}`))

	n := q.Flush()
	require.Equal(t, 2, n)
	require.Len(t, rec.batches, 1)
	assert.ElementsMatch(t, []token{{"A", 2}, {"B", 1}}, rec.batches[0])
	assert.Equal(t, []token{{"B", 1}, {"A", 2}}, rec.batches[0])
}

func TestFlushManyWritesSameKey(t *testing.T) {
	rec := &recorder{}
	q := NewQueue("cosmo", time.Second, decodeToken, tokenKey, rec.sink)

	for i := 1; i <= 50; i++ {
		q.Enqueue(json.RawMessage(fmt.Sprintf(`{"mint":"X","v":%d}`, i)))
	}
	q.Flush()

	require.Len(t, rec.batches, 1)
	assert.Equal(t, []token{{"X", 50}}, rec.batches[0])
}

func TestFlushEmptyDoesNotCallSink(t *testing.T) {
	rec := &recorder{}
	q := NewQueue("cosmo", time.Second, decodeToken, tokenKey, rec.sink)

	assert.Equal(t, 0, q.Flush())
	assert.Equal(t, 0, rec.count())
}

func TestMalformedEntryIsIsolated(t *testing.T) {
	rec := &recorder{}
	q := NewQueue("cosmo", time.Second, decodeToken, tokenKey, rec.sink)
	var dropped []string
	q.OnDrop = func(name string) { dropped = append(dropped, name) }

	q.Enqueue(json.RawMessage(`{"mint":"A","v":1}`))
	q.Enqueue(json.RawMessage(`{"mint":`))
	q.Enqueue(json.RawMessage(`{"v":3}`))
	q.Enqueue(json.RawMessage(`{"mint":"B","v":1}`))

	q.Flush()

	require.Len(t, rec.batches, 1)
	assert.Equal(t, []token{{"A", 1}, {"B", 1}}, rec.batches[0])
	assert.Equal(t, []string{"cosmo", "cosmo"}, dropped)

	stats := q.Stats()
	assert.EqualValues(t, 4, stats.Enqueued)
	assert.EqualValues(t, 2, stats.Dropped)
	assert.EqualValues(t, 2, stats.Flushed)
	assert.Equal(t, 0, stats.Pending)
}

func TestAllMalformedDoesNotCallSink(t *testing.T) {
	rec := &recorder{}
	q := NewQueue("cosmo", time.Second, decodeToken, tokenKey, rec.sink)

	q.Enqueue(json.RawMessage(`nope`))
	assert.Equal(t, 0, q.Flush())
	assert.Equal(t, 0, rec.count())
}

func TestSinkPanicIsRecovered(t *testing.T) {
	q := NewQueue("cosmo", time.Second, decodeToken, tokenKey, func([]token) { panic("boom") })
	q.Enqueue(json.RawMessage(`{"mint":"A","v":1}`))

	assert.NotPanics(t, func() { q.Flush() })
}

func TestRunFlushesOnTickAndStop(t *testing.T) {
	rec := &recorder{}
	q := NewQueue("cosmo", 10*time.Millisecond, decodeToken, tokenKey, rec.sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		q.Run(ctx)
		close(done)
	}()

	q.Enqueue(json.RawMessage(`{"mint":"A","v":1}`))
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	q.Enqueue(json.RawMessage(`{"mint":"B","v":1}`))
	assert.Equal(t, 1, q.Len())
}
