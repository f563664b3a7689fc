package session

import (
	"context"
	"testing"

	"github.com/shishobooks/lectern/internal/testgen"
	"github.com/shishobooks/lectern/pkg/bridge"
	"github.com/shishobooks/lectern/pkg/unpack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_OneSessionPerBook(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	book := f.register(t, testgen.GenerateEPUB(t, t.TempDir(), "book.epub", testgen.EPUBOptions{Chapters: 3}))

	m := NewManager(f.store, f.loader, nil, f.opts)
	t.Cleanup(func() { m.Shutdown(context.Background()) })

	s, created, err := m.Open(ctx, book.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, StateReady, s.View().State)

	again, created, err := m.Open(ctx, book.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, s, again)
	assert.Equal(t, 1, m.Len())

	got, ok := m.Get(s.ID())
	require.True(t, ok)
	assert.Same(t, s, got)

	require.NoError(t, m.Close(ctx, s.ID()))
	assert.Zero(t, m.Len())
	_, ok = m.Get(s.ID())
	assert.False(t, ok)
	assert.ErrorIs(t, m.Close(ctx, s.ID()), ErrClosed)
}

func TestManager_OutboxQueuesUntilAttached(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	book := f.register(t, testgen.GenerateEPUB(t, t.TempDir(), "book.epub", testgen.EPUBOptions{Chapters: 3}))

	m := NewManager(f.store, f.loader, nil, f.opts)
	t.Cleanup(func() { m.Shutdown(context.Background()) })

	s, _, err := m.Open(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Outbox.Pending())

	sim := bridge.NewSimulator(bridge.Viewport{Flow: bridge.FlowPaginated, Width: 100, Height: 200, ScrollWidth: 300})
	require.NoError(t, s.Outbox.Attach(ctx, sim))
	cmds := sim.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, bridge.CommandSetStyle, cmds[0].Type)
	assert.Equal(t, bridge.CommandLoadContent, cmds[1].Type)

	require.NoError(t, s.TurnPage(ctx, bridge.DirectionNext))
	turn, ok := sim.Last(bridge.CommandTurnPage)
	require.True(t, ok)
	assert.Equal(t, bridge.DirectionNext, turn.Direction)
}

func TestManager_FailedLoadIsForgotten(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	book := f.register(t, testgen.GenerateCorruptEPUB(t, t.TempDir(), "broken.epub"))

	m := NewManager(f.store, f.loader, nil, f.opts)
	_, _, err := m.Open(ctx, book.ID)
	require.Error(t, err)

	var unpackErr *unpack.Error
	assert.ErrorAs(t, err, &unpackErr)
	assert.Zero(t, m.Len())
}

func TestManager_ShutdownFlushesEverySession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	first := f.register(t, testgen.GenerateEPUB(t, t.TempDir(), "first.epub", testgen.EPUBOptions{Chapters: 3}))
	second := f.register(t, testgen.GenerateEPUB(t, t.TempDir(), "second.epub", testgen.EPUBOptions{Chapters: 3}))

	m := NewManager(f.store, f.loader, nil, f.opts)
	for _, id := range []int{first.ID, second.ID} {
		s, _, err := m.Open(ctx, id)
		require.NoError(t, err)
		_, err = s.Jump(ctx, "chapter:2")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, m.Len())

	m.Shutdown(ctx)
	assert.Zero(t, m.Len())
	assert.Equal(t, 2, f.retrieve(t, first.ID).ChapterOrdinal)
	assert.Equal(t, 2, f.retrieve(t, second.ID).ChapterOrdinal)
}
