package main

import (
	"fmt"
	"strings"
	"time"
)

// ANSI escape codes for the overlay
const (
	reset     = "\x1b[0m"
	bold      = "\x1b[1m"
	dim       = "\x1b[2m"
	bgBlack   = "\x1b[40m"
	fgWhite   = "\x1b[97m"
	fgRed     = "\x1b[91m"
	fgGreen   = "\x1b[92m"
	fgYellow  = "\x1b[93m"
	fgCyan    = "\x1b[96m"
	clearLine = "\x1b[2K"
)

// HUD renders an overlay with the model status and the display controls.
type HUD struct {
	fps       float64
	fpsFrames int
	fpsTime   time.Time
}

// NewHUD creates a new HUD
func NewHUD() *HUD {
	return &HUD{fpsTime: time.Now()}
}

// UpdateFPS updates the FPS counter (call once per frame)
func (h *HUD) UpdateFPS() {
	h.fpsFrames++
	elapsed := time.Since(h.fpsTime)
	if elapsed >= time.Second {
		h.fps = float64(h.fpsFrames) / elapsed.Seconds()
		h.fpsFrames = 0
		h.fpsTime = time.Now()
	}
}

// hudState is what the overlay shows for one frame.
type hudState struct {
	Show        bool
	Status      string
	Color       string
	Wireframe   bool
	Scale       float64
	Ambient     float64
	Directional float64
	Message     string
	Error       bool
	Recent      int
}

func moveTo(row, col int) string {
	return fmt.Sprintf("\x1b[%d;%dH", row, col)
}

// Render draws the HUD overlay directly to the terminal
func (h *HUD) Render(width, height int, st hudState) {
	var b strings.Builder

	// Always clear the HUD rows (so toggling off works)
	b.WriteString(moveTo(1, 1) + clearLine)
	b.WriteString(moveTo(height, 1) + clearLine)

	// Messages show even with the HUD hidden
	if st.Message != "" {
		fg := fgYellow
		if st.Error {
			fg = fgRed
		}
		col := max((width-len(st.Message)-2)/2, 1)
		fmt.Fprintf(&b, "%s%s%s%s %s %s", moveTo(height, col), bgBlack, bold, fg, st.Message, reset)
	}

	if !st.Show {
		fmt.Print(b.String())
		return
	}

	// Top left: FPS
	fmt.Fprintf(&b, "%s%s%s %.0f FPS %s", moveTo(1, 1), bgBlack, fgGreen, h.fps, reset)

	// Top middle: status
	titleCol := max((width-len(st.Status)-2)/2, 1)
	fmt.Fprintf(&b, "%s%s%s%s %s %s", moveTo(1, titleCol), bold, bgBlack, fgWhite, st.Status, reset)

	// Top right: color and scale
	right := fmt.Sprintf("%s x%.2f", st.Color, st.Scale)
	fmt.Fprintf(&b, "%s%s%s%s %s %s", moveTo(1, max(width-len(right)-1, 1)), bgBlack, fgCyan, bold, right, reset)

	if st.Message != "" {
		fmt.Print(b.String())
		return
	}

	// Bottom: wireframe checkbox and lights
	check := "[ ]"
	if st.Wireframe {
		check = "[✓]"
	}
	fmt.Fprintf(&b, "%s%s%s %s Wireframe  ambient %.2f  directional %.2f %s",
		moveTo(height, 1), bgBlack, fgWhite, check, st.Ambient, st.Directional, reset)

	// Bottom right: hint
	hint := "paste a path to load"
	if st.Recent > 1 {
		hint = fmt.Sprintf("B: previous file (%d recent)", st.Recent)
	}
	fmt.Fprintf(&b, "%s%s%s%s %s %s", moveTo(height, max(width-len(hint)-1, 1)), bgBlack, dim, fgYellow, hint, reset)

	fmt.Print(b.String())
}
