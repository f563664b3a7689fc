package bridge

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	t.Parallel()

	ev, err := DecodeEvent([]byte(`{"type":"SCROLL","percentage":40,"offset":1200,"scrollHeight":3000}`))
	require.NoError(t, err)
	assert.Equal(t, EventScroll, ev.Type)
	require.NotNil(t, ev.Percentage)
	assert.InDelta(t, 40, *ev.Percentage, 1e-9)
	assert.InDelta(t, 1200, *ev.Offset, 1e-9)
	assert.InDelta(t, 3000, *ev.ScrollHeight, 1e-9)

	ev, err = DecodeEvent([]byte(`{"type":"SELECTION","text":"call me","locationToken":"epubcfi(/6/2)","rect":{"x":1,"y":2,"width":3,"height":4}}`))
	require.NoError(t, err)
	assert.Equal(t, "call me", ev.Text)
	assert.Equal(t, "epubcfi(/6/2)", ev.LocationToken)
	assert.Equal(t, &Rect{X: 1, Y: 2, Width: 3, Height: 4}, ev.Rect)

	ev, err = DecodeEvent([]byte(`{"type":"READY","loadId":3}`))
	require.NoError(t, err)
	assert.Equal(t, 3, ev.LoadID)
	assert.Nil(t, ev.Percentage)
}

func TestDecodeEvent_Rejects(t *testing.T) {
	t.Parallel()

	_, err := DecodeEvent([]byte(`{"type":"EXPLODE"}`))
	assert.True(t, errors.Is(err, ErrUnknownEvent))

	_, err = DecodeEvent([]byte(`{"type":`))
	assert.Error(t, err)

	_, err = DecodeEvent([]byte(`{}`))
	assert.True(t, errors.Is(err, ErrUnknownEvent))
}

func TestEncodeCommand(t *testing.T) {
	t.Parallel()

	data, err := EncodeCommand(Command{Type: CommandTurnPage, Direction: DirectionNext})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"TURN_PAGE","direction":"next"}`, string(data))

	data, err = EncodeCommand(Command{Type: CommandScrollToPercentage, Percentage: Float(0)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"SCROLL_TO_PERCENTAGE","percentage":0}`, string(data))

	data, err = EncodeCommand(Command{Type: CommandSeekAnchor, Ordinal: Int(0), Anchor: "section2"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"SEEK_ANCHOR","ordinal":0,"anchor":"section2"}`, string(data))
}
