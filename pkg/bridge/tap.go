package bridge

type Flow string

const (
	FlowPaginated Flow = "paginated"
	FlowScrolled  Flow = "scrolled"
)

// ClassifyTap maps a tap at (x, y) in a width x height viewport to a zone.
// Paginated flow splits the width 30/40/30; scrolled flow splits the height
// 25/50/25, with the top band acting as "left" (back).
func ClassifyTap(flow Flow, width, height, x, y float64) EventType {
	if flow == FlowScrolled {
		switch {
		case y < height*0.25:
			return EventTapLeft
		case y >= height*0.75:
			return EventTapRight
		}
		return EventTapCenter
	}

	switch {
	case x < width*0.3:
		return EventTapLeft
	case x >= width*0.7:
		return EventTapRight
	}
	return EventTapCenter
}

// Viewport is the surface's scroll state for one chapter.
type Viewport struct {
	Flow         Flow
	Width        float64
	Height       float64
	ScrollX      float64
	ScrollY      float64
	ScrollWidth  float64
	ScrollHeight float64
}

// TurnResult is the viewport after a page turn. Chapter is set instead of a
// scroll change when the turn runs off either end of the chapter.
type TurnResult struct {
	ScrollX float64
	ScrollY float64
	Chapter EventType
}

// Turn applies one page turn. Paginated flow moves one viewport width;
// scrolled flow moves 90% of the viewport height. A chapter change is
// requested only from the extremes.
func (v Viewport) Turn(dir Direction) TurnResult {
	const epsilon = 0.5
	res := TurnResult{ScrollX: v.ScrollX, ScrollY: v.ScrollY}

	if v.Flow == FlowScrolled {
		maxY := max(v.ScrollHeight-v.Height, 0)
		step := v.Height * 0.9
		if dir == DirectionNext {
			if v.ScrollY >= maxY-epsilon {
				res.Chapter = EventNextChapter
				return res
			}
			res.ScrollY = min(v.ScrollY+step, maxY)
			return res
		}
		if v.ScrollY <= epsilon {
			res.Chapter = EventPrevChapter
			return res
		}
		res.ScrollY = max(v.ScrollY-step, 0)
		return res
	}

	maxX := max(v.ScrollWidth-v.Width, 0)
	if dir == DirectionNext {
		if v.ScrollX >= maxX-epsilon {
			res.Chapter = EventNextChapter
			return res
		}
		res.ScrollX = min(v.ScrollX+v.Width, maxX)
		return res
	}
	if v.ScrollX <= epsilon {
		res.Chapter = EventPrevChapter
		return res
	}
	res.ScrollX = max(v.ScrollX-v.Width, 0)
	return res
}

// Percentage is how far through the chapter the viewport is, in [0, 100].
func (v Viewport) Percentage() float64 {
	var pos, span float64
	if v.Flow == FlowScrolled {
		pos, span = v.ScrollY, v.ScrollHeight-v.Height
	} else {
		pos, span = v.ScrollX, v.ScrollWidth-v.Width
	}
	if span <= 0 {
		return 0
	}
	return min(max(pos/span*100, 0), 100)
}
