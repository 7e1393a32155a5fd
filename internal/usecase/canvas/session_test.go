package canvas

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvaschat/internal/domain"
)

func TestView_Transitions(t *testing.T) {
	ctx := context.Background()
	s := NewSession("s1", 0, discardLogger())
	defer s.Close(ctx)

	a, b := s.Track("a"), s.Track("b")
	assert.Equal(t, ViewClosed, a.State())

	require.NoError(t, s.Canvas.Open(ctx, "a"))
	assert.Equal(t, ViewOpen, a.State())
	assert.Equal(t, ViewClosed, b.State())

	require.NoError(t, s.Canvas.Open(ctx, "b"))
	assert.Equal(t, ViewClosed, a.State())
	assert.Equal(t, ViewOpen, b.State())

	s.Canvas.MessageReplaced(ctx, "b")
	assert.Equal(t, ViewClosed, b.State())
}

func TestView_StartsOpenWhenActive(t *testing.T) {
	ctx := context.Background()
	s := NewSession("s1", 0, discardLogger())
	defer s.Close(ctx)

	require.NoError(t, s.Canvas.Open(ctx, "a"))
	assert.Equal(t, ViewOpen, s.Track("a").State())
	assert.Same(t, s.Track("a"), s.Track("a"))
}

func TestView_DetachStopsUpdates(t *testing.T) {
	ctx := context.Background()
	s := NewSession("s1", 0, discardLogger())
	defer s.Close(ctx)

	v := s.Track("a")
	s.Untrack("a")
	require.NoError(t, s.Canvas.Open(ctx, "a"))
	assert.Equal(t, ViewClosed, v.State())
	assert.Empty(t, s.OpenViews())
}

func TestSession_SwitchConversation(t *testing.T) {
	ctx := context.Background()
	s := NewSession("s1", 0, discardLogger())
	defer s.Close(ctx)

	var seen []domain.EventType
	s.Subscribe(func(_ context.Context, e domain.Event) { seen = append(seen, e.Type) })

	s.SwitchConversation(ctx, "c1")
	s.Track("a")
	require.NoError(t, s.Canvas.Open(ctx, "a"))
	require.NoError(t, s.Edit.Begin(ctx, "u1"))

	s.SwitchConversation(ctx, "c2")
	assert.Equal(t, "c2", s.ConversationID())
	assert.Equal(t, "", s.Canvas.Active())
	assert.Equal(t, "", s.Edit.Editing())
	assert.Empty(t, s.OpenViews())

	// Same conversation: nothing happens.
	n := len(seen)
	s.SwitchConversation(ctx, "c2")
	assert.Len(t, seen, n)

	assert.Equal(t, []domain.EventType{
		domain.EventConversationSwitched,
		domain.EventCanvasActivated,
		domain.EventEditStarted,
		domain.EventConversationSwitched,
		domain.EventCanvasClosed,
		domain.EventEditCancelled,
	}, seen)
}

func TestConsole_AutoRevealOnFirstError(t *testing.T) {
	ctx := context.Background()
	c, rec := newTestCoordinator(t)
	require.NoError(t, c.Open(ctx, "m1"))
	con := c.Console()

	require.NoError(t, con.Append(ctx, domain.ConsoleEntry{Level: domain.ConsoleLog, Message: "hi", Timestamp: 1}))
	assert.False(t, con.Revealed())

	require.NoError(t, con.Append(ctx, domain.ConsoleEntry{Level: domain.ConsoleError, Message: "boom", Timestamp: 2}))
	require.NoError(t, con.Append(ctx, domain.ConsoleEntry{Level: domain.ConsoleError, Message: "again", Timestamp: 3}))
	assert.True(t, con.Revealed())
	assert.True(t, c.State().ConsoleRevealed)

	assert.Equal(t, []domain.EventType{
		domain.EventCanvasActivated,
		domain.EventCanvasConsoleAppended,
		domain.EventCanvasConsoleAppended,
		domain.EventCanvasConsoleRevealed,
		domain.EventCanvasConsoleAppended,
	}, rec.types())

	entries := con.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "boom", entries[1].Message)

	// Opening another canvas starts a fresh console.
	require.NoError(t, c.Open(ctx, "m2"))
	assert.Empty(t, con.Entries())
	assert.False(t, con.Revealed())
}

func TestConsole_RejectsUnknownLevel(t *testing.T) {
	c, _ := newTestCoordinator(t)
	err := c.Console().Append(context.Background(), domain.ConsoleEntry{Level: "debug", Message: "x"})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestConsole_Bounded(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCoordinator(t)
	con := c.Console()
	for i := 0; i < MaxConsoleEntries+10; i++ {
		require.NoError(t, con.Append(ctx, domain.ConsoleEntry{Level: domain.ConsoleLog, Message: fmt.Sprint(i)}))
	}
	entries := con.Entries()
	require.Len(t, entries, MaxConsoleEntries)
	assert.Equal(t, "10", entries[0].Message)
	assert.NotZero(t, entries[0].Timestamp)
}

func TestEditCoordinator(t *testing.T) {
	ctx := context.Background()
	s := NewSession("s1", 0, discardLogger())
	defer s.Close(ctx)

	var seen []string
	s.Subscribe(func(_ context.Context, e domain.Event) {
		seen = append(seen, string(e.Type)+":"+string(e.Payload))
	})

	require.NoError(t, s.Edit.Begin(ctx, "u1"))
	require.NoError(t, s.Edit.Begin(ctx, "u1"))
	require.NoError(t, s.Edit.Begin(ctx, "u2"))
	assert.Equal(t, "u2", s.Edit.Editing())

	assert.False(t, s.Edit.Cancel(ctx, "u1"))
	assert.True(t, s.Edit.Cancel(ctx, "u2"))
	assert.Equal(t, "", s.Edit.Editing())

	assert.Equal(t, []string{
		`edit.started:{"message_id":"u1"}`,
		`edit.cancelled:{"message_id":"u1"}`,
		`edit.started:{"message_id":"u2"}`,
		`edit.cancelled:{"message_id":"u2"}`,
	}, seen)

	err := s.Edit.Begin(ctx, "")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}
