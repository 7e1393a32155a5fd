package canvas

import (
	"context"

	"canvaschat/internal/domain"
)

// BeginResize starts a width drag. Narrow layouts show the canvas full
// width and cannot be resized; a drag also needs an open canvas.
func (c *Coordinator) BeginResize(mobile bool) error {
	if mobile {
		return domain.NewDomainError("Canvas.BeginResize", domain.ErrResizeUnavailable, "")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.ActiveMessageID == "" {
		return domain.NewDomainError("Canvas.BeginResize", domain.ErrResizeUnavailable, "no canvas is open")
	}
	c.state.Resizing = true
	return nil
}

// DragTo converts a pointer position into a canvas width. The canvas is
// docked to the right edge, so its width is the share of the viewport to
// the right of the pointer.
func (c *Coordinator) DragTo(ctx context.Context, pointerX, viewportWidth float64) (float64, error) {
	if viewportWidth <= 0 {
		return 0, domain.NewDomainError("Canvas.DragTo", domain.ErrInvalidInput, "viewport width must be positive")
	}
	return c.setWidth(ctx, "Canvas.DragTo", (viewportWidth-pointerX)/viewportWidth*100)
}

// SetWidth sets the width in percent during a drag.
func (c *Coordinator) SetWidth(ctx context.Context, width float64) (float64, error) {
	return c.setWidth(ctx, "Canvas.SetWidth", width)
}

// EndResize finishes a drag. Ending when no drag is running is a no-op.
func (c *Coordinator) EndResize() {
	c.mu.Lock()
	c.state.Resizing = false
	c.mu.Unlock()
}

func (c *Coordinator) setWidth(ctx context.Context, op string, width float64) (float64, error) {
	c.tmu.Lock()
	defer c.tmu.Unlock()

	c.mu.Lock()
	if !c.state.Resizing {
		c.mu.Unlock()
		return 0, domain.NewDomainError(op, domain.ErrNotResizing, "")
	}
	width = domain.ClampWidth(width)
	changed := width != c.state.Width
	c.state.Width = width
	active := c.state.ActiveMessageID
	c.mu.Unlock()

	if changed {
		c.publish(ctx, domain.EventCanvasResized, domain.CanvasEventPayload{MessageID: active, Width: width})
	}
	return width, nil
}
