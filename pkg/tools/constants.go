package tools

// Tool name constants - use these instead of magic strings to prevent typos
// and enable compile-time checking.
const (
	// ToolComputer drives the pointer, keyboard, and screen capture.
	ToolComputer = "computer"

	// ToolEditor performs targeted file edits with per-path undo history.
	ToolEditor = "str_replace_editor"

	// ToolBash runs commands in a persistent shell session.
	ToolBash = "bash"
)
