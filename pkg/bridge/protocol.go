// Package bridge is the message protocol between a reading session and the
// surface that renders its content. Commands flow one way into the surface;
// events flow one way back.
package bridge

import (
	"context"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

type EventType string

const (
	EventReady            EventType = "READY"
	EventScroll           EventType = "SCROLL"
	EventTap              EventType = "TAP"
	EventTapLeft          EventType = "TAP_LEFT"
	EventTapCenter        EventType = "TAP_CENTER"
	EventTapRight         EventType = "TAP_RIGHT"
	EventPrevChapter      EventType = "PREV_CHAPTER"
	EventNextChapter      EventType = "NEXT_CHAPTER"
	EventSelection        EventType = "SELECTION"
	EventSelectionCleared EventType = "SELECTION_CLEARED"
	EventLayoutSettled    EventType = "LAYOUT_SETTLED"
	EventLocation         EventType = "LOCATION"
	EventPage             EventType = "PAGE"
	EventBackground       EventType = "BACKGROUND"
)

var knownEvents = map[EventType]struct{}{
	EventReady: {}, EventScroll: {}, EventTap: {}, EventTapLeft: {}, EventTapCenter: {}, EventTapRight: {},
	EventPrevChapter: {}, EventNextChapter: {}, EventSelection: {}, EventSelectionCleared: {},
	EventLayoutSettled: {}, EventLocation: {}, EventPage: {}, EventBackground: {},
}

type CommandType string

const (
	CommandLoadContent        CommandType = "LOAD_CONTENT"
	CommandSetStyle           CommandType = "SET_STYLE"
	CommandTurnPage           CommandType = "TURN_PAGE"
	CommandSearch             CommandType = "SEARCH"
	CommandFindNext           CommandType = "FIND_NEXT"
	CommandFindPrevious       CommandType = "FIND_PREVIOUS"
	CommandApplyHighlights    CommandType = "APPLY_HIGHLIGHTS"
	CommandScrollToPercentage CommandType = "SCROLL_TO_PERCENTAGE"
	CommandGoToLocation       CommandType = "GO_TO_LOCATION"
	CommandSeekAnchor         CommandType = "SEEK_ANCHOR"
	CommandScrollToOffset     CommandType = "SCROLL_TO_OFFSET"
	CommandSeekTextOffset     CommandType = "SEEK_TEXT_OFFSET"
)

var ErrUnknownEvent = errors.New("unknown bridge event")

type Direction string

const (
	DirectionNext Direction = "next"
	DirectionPrev Direction = "prev"
)

type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Event is a message from the surface. Only the fields relevant to Type are
// set; numeric fields are pointers so an absent value is distinguishable
// from zero.
type Event struct {
	Type EventType `json:"type"`

	// LoadID echoes the LOAD_CONTENT the event belongs to. Zero means the
	// surface did not say.
	LoadID int `json:"loadId,omitempty"`

	Percentage   *float64 `json:"percentage,omitempty"`
	Offset       *float64 `json:"offset,omitempty"`
	ScrollHeight *float64 `json:"scrollHeight,omitempty"`

	// TAP carries x and y as fractions of the viewport.
	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`

	Text          string `json:"text,omitempty"`
	LocationToken string `json:"locationToken,omitempty"`
	Rect          *Rect  `json:"rect,omitempty"`

	Chapter  *int     `json:"chapter,omitempty"`
	Fraction *float64 `json:"fraction,omitempty"`

	Page       *int `json:"page,omitempty"`
	TotalPages *int `json:"totalPages,omitempty"`
}

type Style struct {
	Theme      string  `json:"theme"`
	FontFamily string  `json:"fontFamily"`
	FontSize   int     `json:"fontSize"`
	LineHeight float64 `json:"lineHeight"`
	Flow       Flow    `json:"flow"`
}

type Highlight struct {
	ID            string `json:"id"`
	LocationToken string `json:"locationToken"`
	Color         string `json:"color,omitempty"`
}

// Command is a message to the surface.
type Command struct {
	Type CommandType `json:"type"`

	LoadID   int    `json:"loadId,omitempty"`
	BaseURL  string `json:"baseUrl,omitempty"`
	Href     string `json:"href,omitempty"`
	Content  string `json:"content,omitempty"`
	Ordinal  *int   `json:"ordinal,omitempty"`
	Page     *int   `json:"page,omitempty"`
	Style    *Style `json:"style,omitempty"`
	Location string `json:"location,omitempty"`
	Anchor   string `json:"anchor,omitempty"`

	Direction  Direction   `json:"direction,omitempty"`
	Query      string      `json:"query,omitempty"`
	Highlights []Highlight `json:"highlights,omitempty"`

	Percentage *float64 `json:"percentage,omitempty"`
	Offset     *float64 `json:"offset,omitempty"`
	TextOffset *int64   `json:"textOffset,omitempty"`
}

// Surface is the port a session drives. Implementations must not block
// for long; Send is called from the session's own goroutine.
type Surface interface {
	Send(ctx context.Context, cmd Command) error
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func(ctx context.Context, cmd Command) error

func (f SurfaceFunc) Send(ctx context.Context, cmd Command) error {
	return f(ctx, cmd)
}

func EncodeCommand(cmd Command) ([]byte, error) {
	data, err := json.Marshal(cmd)
	return data, errors.WithStack(err)
}

// DecodeEvent parses one event and rejects unknown types.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, errors.WithStack(err)
	}
	if _, ok := knownEvents[ev.Type]; !ok {
		return ev, errors.Wrapf(ErrUnknownEvent, "%q", ev.Type)
	}
	return ev, nil
}

// Float and Int return pointers for the optional numeric fields.
func Float(f float64) *float64 { return &f }

func Int(i int) *int { return &i }

func Int64(i int64) *int64 { return &i }
