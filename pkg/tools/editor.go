package tools

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ashbuilds/computer-use/pkg/logx"
	"github.com/ashbuilds/computer-use/pkg/utils"
)

// Editor commands.
const (
	cmdView       = "view"
	cmdCreate     = "create"
	cmdStrReplace = "str_replace"
	cmdInsert     = "insert"
	cmdUndoEdit   = "undo_edit"
)

const (
	snippetContextLines = 4
	maxResponseChars    = 16000
	truncatedNotice     = "<response clipped>" +
		" To save on context, only part of this file has been shown." +
		" Retry with a view_range to read specific sections."
)

// EditorTool performs targeted file edits. Each mutated path carries its own
// undo stack: the prior content is pushed before every mutation and popped by
// undo_edit. History is owned by this instance and never shared.
type EditorTool struct {
	fileHistory map[string][]string
	logger      *logx.Logger
}

// NewEditorTool creates a new editor tool.
func NewEditorTool() *EditorTool {
	return &EditorTool{
		fileHistory: make(map[string][]string),
		logger:      logx.NewLogger("editor-tool"),
	}
}

// Name returns the tool name.
func (t *EditorTool) Name() string {
	return ToolEditor
}

// Definition returns the tool definition for the model.
func (t *EditorTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name: ToolEditor,
		Description: "View, create, and edit files. The str_replace command replaces an exact, " +
			"unique string match; insert adds text after a given line; undo_edit reverts the " +
			"last edit made to a file.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"command": {
					Type:        "string",
					Description: "The editor command to run.",
					Enum:        []string{cmdView, cmdCreate, cmdStrReplace, cmdInsert, cmdUndoEdit},
				},
				"path": {
					Type:        "string",
					Description: "Absolute path to the file or directory.",
				},
				"file_text": {
					Type:        "string",
					Description: "Content for the create command.",
				},
				"old_str": {
					Type:        "string",
					Description: "Exact string to replace; must match exactly one location.",
				},
				"new_str": {
					Type:        "string",
					Description: "Replacement string for str_replace, or text to insert for insert.",
				},
				"insert_line": {
					Type:        "integer",
					Description: "Line number after which new_str is inserted (0 inserts at the top).",
				},
				"view_range": {
					Type:        "array",
					Description: "Optional [start, end] line range for view; end of -1 reads to EOF.",
				},
			},
			Required: []string{"command", "path"},
		},
	}
}

// Exec executes the tool with the given arguments.
func (t *EditorTool) Exec(_ context.Context, args map[string]any) (*Result, error) {
	command, ok := utils.SafeAssert[string](args["command"])
	if !ok || command == "" {
		return nil, NewValidationError("command is required and must be a string")
	}

	path, ok := utils.SafeAssert[string](args["path"])
	if !ok || path == "" {
		return nil, NewValidationError("path is required and must be a string")
	}
	if err := t.validatePath(command, path); err != nil {
		return nil, err
	}

	switch command {
	case cmdView:
		return t.view(path, args)
	case cmdCreate:
		fileText, ok := utils.SafeAssert[string](args["file_text"])
		if !ok {
			return nil, NewValidationError("file_text is required for the create command")
		}
		return t.create(path, fileText)
	case cmdStrReplace:
		oldStr, ok := utils.SafeAssert[string](args["old_str"])
		if !ok {
			return nil, NewValidationError("old_str is required for the str_replace command")
		}
		newStr := utils.GetMapFieldOr(args, "new_str", "")
		return t.strReplace(path, oldStr, newStr)
	case cmdInsert:
		insertLine, err := intArg(args, "insert_line")
		if err != nil {
			return nil, err
		}
		newStr, ok := utils.SafeAssert[string](args["new_str"])
		if !ok {
			return nil, NewValidationError("new_str is required for the insert command")
		}
		return t.insert(path, insertLine, newStr)
	case cmdUndoEdit:
		return t.undoEdit(path)
	default:
		return nil, NewValidationError("%s is not a valid command", command)
	}
}

func (t *EditorTool) validatePath(command, path string) error {
	if !filepath.IsAbs(path) {
		return NewValidationError("path %s is not absolute; did you mean %s?", path,
			filepath.Join("/", path))
	}

	info, err := os.Stat(path)
	switch {
	case err == nil && command == cmdCreate:
		return NewValidationError("file already exists at %s; create cannot overwrite it", path)
	case os.IsNotExist(err) && command != cmdCreate:
		return NewValidationError("path %s does not exist", path)
	case err == nil && info.IsDir() && command != cmdView:
		return NewValidationError("path %s is a directory; only the view command accepts directories", path)
	}
	return nil
}

func (t *EditorTool) view(path string, args map[string]any) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if info.IsDir() {
		if _, present := args["view_range"]; present {
			return nil, NewValidationError("view_range is not accepted for directories")
		}
		return t.viewDirectory(path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	lines := strings.Split(string(content), "\n")
	startLine := 1
	if raw, present := args["view_range"]; present {
		pair, ok := utils.SafeAssert[[]any](raw)
		if !ok || len(pair) != 2 {
			return nil, NewValidationError("view_range must be a [start, end] pair")
		}
		start, err1 := toInt(pair[0])
		end, err2 := toInt(pair[1])
		if err1 != nil || err2 != nil {
			return nil, NewValidationError("view_range values must be integers")
		}
		if start < 1 || start > len(lines) {
			return nil, NewValidationError("view_range start %d is outside the file's %d lines", start, len(lines))
		}
		if end != -1 && (end < start || end > len(lines)) {
			return nil, NewValidationError("view_range end %d must be -1 or within [%d, %d]", end, start, len(lines))
		}
		if end == -1 {
			lines = lines[start-1:]
		} else {
			lines = lines[start-1 : end]
		}
		startLine = start
	}

	return &Result{Output: truncate(formatLines(lines, startLine, path))}, nil
}

// viewDirectory lists files and directories up to two levels deep, skipping
// hidden entries.
func (t *EditorTool) viewDirectory(path string) (*Result, error) {
	var entries []string
	err := filepath.WalkDir(path, func(entry string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry == path {
			return nil
		}
		rel, relErr := filepath.Rel(path, entry)
		if relErr != nil {
			return relErr
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.Count(rel, string(filepath.Separator)) >= 2 {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", path, err)
	}

	output := fmt.Sprintf(
		"Here are the files and directories up to 2 levels deep in %s, excluding hidden items:\n%s\n",
		path, strings.Join(entries, "\n"))
	return &Result{Output: truncate(output)}, nil
}

func (t *EditorTool) create(path, fileText string) (*Result, error) {
	if err := os.WriteFile(path, []byte(fileText), 0o644); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return &Result{Output: fmt.Sprintf("File created successfully at: %s", path)}, nil
}

func (t *EditorTool) strReplace(path, oldStr, newStr string) (*Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	text := string(content)

	occurrences := strings.Count(text, oldStr)
	if occurrences == 0 {
		return nil, NewValidationError(
			"no replacement was performed: old_str did not appear verbatim in %s", path)
	}
	if occurrences > 1 {
		var matchLines []int
		for i, line := range strings.Split(text, "\n") {
			if strings.Contains(line, oldStr) {
				matchLines = append(matchLines, i+1)
			}
		}
		return nil, NewValidationError(
			"no replacement was performed: old_str appears %d times in %s (lines %v); make it unique",
			occurrences, path, matchLines)
	}

	updated := strings.Replace(text, oldStr, newStr, 1)
	t.fileHistory[path] = append(t.fileHistory[path], text)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}

	// Show the edit in context so the model can verify it.
	replacementLine := strings.Count(strings.Split(text, oldStr)[0], "\n")
	startLine := max(0, replacementLine-snippetContextLines)
	endLine := replacementLine + snippetContextLines + strings.Count(newStr, "\n")
	snippet := sliceLines(updated, startLine, endLine)

	output := fmt.Sprintf("The file %s has been edited. %s"+
		"Review the changes and make sure they are as expected. Edit the file again if necessary.",
		path, formatLines(snippet, startLine+1, fmt.Sprintf("a snippet of %s", path)))
	return &Result{Output: truncate(output)}, nil
}

func (t *EditorTool) insert(path string, insertLine int, newStr string) (*Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	text := string(content)
	lines := strings.Split(text, "\n")

	if insertLine < 0 || insertLine > len(lines) {
		return nil, NewValidationError(
			"insert_line %d is outside the file's line range [0, %d]", insertLine, len(lines))
	}

	newLines := strings.Split(newStr, "\n")
	updatedLines := make([]string, 0, len(lines)+len(newLines))
	updatedLines = append(updatedLines, lines[:insertLine]...)
	updatedLines = append(updatedLines, newLines...)
	updatedLines = append(updatedLines, lines[insertLine:]...)
	updated := strings.Join(updatedLines, "\n")

	t.fileHistory[path] = append(t.fileHistory[path], text)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}

	snippetStart := max(0, insertLine-snippetContextLines)
	snippetEnd := insertLine + len(newLines) + snippetContextLines
	snippet := updatedLines[snippetStart:min(snippetEnd, len(updatedLines))]

	output := fmt.Sprintf("The file %s has been edited. %s"+
		"Review the changes and make sure they are as expected (correct indentation, "+
		"no duplicate lines, etc). Edit the file again if necessary.",
		path, formatLines(snippet, snippetStart+1, "a snippet of the edited file"))
	return &Result{Output: truncate(output)}, nil
}

func (t *EditorTool) undoEdit(path string) (*Result, error) {
	history := t.fileHistory[path]
	if len(history) == 0 {
		return nil, NewValidationError("no edit history found for %s", path)
	}

	previous := history[len(history)-1]
	t.fileHistory[path] = history[:len(history)-1]

	if err := os.WriteFile(path, []byte(previous), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}
	output := fmt.Sprintf("Last edit to %s undone successfully. %s",
		path, formatLines(strings.Split(previous, "\n"), 1, path))
	return &Result{Output: truncate(output)}, nil
}

// formatLines renders numbered file content the way cat -n does.
func formatLines(lines []string, startLine int, descriptor string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here's the result of running `cat -n` on %s:\n", descriptor)
	for i, line := range lines {
		fmt.Fprintf(&b, "%6d\t%s\n", startLine+i, line)
	}
	return b.String()
}

func sliceLines(text string, start, end int) []string {
	lines := strings.Split(text, "\n")
	if start < 0 {
		start = 0
	}
	if end >= len(lines) {
		end = len(lines) - 1
	}
	return lines[start : end+1]
}

func truncate(s string) string {
	if len(s) <= maxResponseChars {
		return s
	}
	return s[:maxResponseChars] + truncatedNotice
}

func intArg(args map[string]any, key string) (int, error) {
	raw, present := args[key]
	if !present {
		return 0, NewValidationError("%s is required for this command", key)
	}
	value, err := toInt(raw)
	if err != nil {
		return 0, NewValidationError("%s must be an integer", key)
	}
	return value, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}
