package idgen

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedGenerator(seq Sequencer, at time.Time) *Generator {
	g := New(seq)
	g.now = func() time.Time { return at }
	return g
}

func TestGenerator_Format(t *testing.T) {
	g := fixedGenerator(NewMemorySequencer(), time.Date(2023, 3, 1, 8, 0, 0, 0, time.UTC))
	ctx := context.Background()

	first, err := g.Next(ctx, BloodUnit)
	require.NoError(t, err)
	assert.Equal(t, "BU2303010001", first)

	second, err := g.Next(ctx, BloodUnit)
	require.NoError(t, err)
	assert.Equal(t, "BU2303010002", second)

	donor, err := g.Next(ctx, Donor)
	require.NoError(t, err)
	assert.Equal(t, "DN2303010001", donor, "prefixes keep independent counters")
}

func TestGenerator_NewDayRestartsSequence(t *testing.T) {
	seq := NewMemorySequencer()
	ctx := context.Background()

	id, err := fixedGenerator(seq, time.Date(2023, 3, 1, 23, 0, 0, 0, time.UTC)).Next(ctx, Transfusion)
	require.NoError(t, err)
	assert.Equal(t, "TX2303010001", id)

	id, err = fixedGenerator(seq, time.Date(2023, 3, 2, 1, 0, 0, 0, time.UTC)).Next(ctx, Transfusion)
	require.NoError(t, err)
	assert.Equal(t, "TX2303020001", id)
}

type failingSequencer struct{}

func (failingSequencer) Next(context.Context, string) (int64, error) {
	return 0, errors.New("redis unavailable")
}

func TestGenerator_PropagatesSequencerError(t *testing.T) {
	_, err := New(failingSequencer{}).Next(context.Background(), Recipient)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis unavailable")
}

func TestMemorySequencer_Concurrent(t *testing.T) {
	seq := NewMemorySequencer()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = seq.Next(context.Background(), "k")
		}()
	}
	wg.Wait()
	n, _ := seq.Next(context.Background(), "k")
	assert.Equal(t, int64(51), n)
}
