// Package viz renders particle scenes in the terminal.
//
// The live view is a Bubble Tea program:
//
//   - [Model]: steps one scene through a fixed-step updater and draws it
//   - [Canvas]: Braille pixel canvas, 2x4 dots per cell
//   - [Camera]: orbit camera projecting world points onto the canvas
//   - [Plot]: asciigraph line charts for metric series
//
// # Key Bindings
//
//	Space - Pause/Resume
//	R     - Rebuild the scene
//	T     - Cycle color themes
//	G     - Toggle GIF recording
//	W     - Toggle wind
//	←↑↓→  - Orbit the camera
//	+/-   - Zoom
//	?     - Show help overlay
package viz
