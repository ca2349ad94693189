package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	execpkg "github.com/ashbuilds/computer-use/pkg/exec"
	"github.com/ashbuilds/computer-use/pkg/logx"
	"github.com/ashbuilds/computer-use/pkg/utils"
)

// Computer tool actions.
const (
	actionKey            = "key"
	actionType           = "type"
	actionMouseMove      = "mouse_move"
	actionLeftClick      = "left_click"
	actionLeftClickDrag  = "left_click_drag"
	actionRightClick     = "right_click"
	actionMiddleClick    = "middle_click"
	actionDoubleClick    = "double_click"
	actionScreenshot     = "screenshot"
	actionCursorPosition = "cursor_position"
)

const (
	typingDelayMs     = 12
	typingGroupSize   = 50
	screenshotRetries = 3
)

// scaleSource indicates whose coordinate space a pair of coordinates is in.
type scaleSource string

const (
	// scaleSourceAPI means coordinates came from the model and map into the
	// real display.
	scaleSourceAPI scaleSource = "api"
	// scaleSourceComputer means coordinates came from the real display and
	// map into the advertised virtual display.
	scaleSourceComputer scaleSource = "computer"
)

// Common virtual display targets, tried in order. The first one whose aspect
// ratio matches the real display is advertised to the model.
var scalingTargets = []struct {
	name   string
	width  int
	height int
}{
	{"XGA", 1024, 768},
	{"WXGA", 1280, 800},
	{"FWXGA", 1366, 768},
}

// ComputerTool drives the pointer, keyboard, and screen capture through
// xdotool and scrot. Coordinates exchanged with the model are scaled between
// the real display and a bounded virtual display to keep screenshots small.
type ComputerTool struct {
	executor        execpkg.Executor
	logger          *logx.Logger
	outputDir       string
	width           int
	height          int
	displayNum      int
	scalingEnabled  bool
	screenshotDelay time.Duration
	captureOnAction bool
}

// NewComputerTool creates a computer tool for the given display geometry.
func NewComputerTool(executor execpkg.Executor, width, height, displayNum int) *ComputerTool {
	return &ComputerTool{
		executor:        executor,
		logger:          logx.NewLogger("computer-tool"),
		outputDir:       filepath.Join(os.TempDir(), "computer-use-outputs"),
		width:           width,
		height:          height,
		displayNum:      displayNum,
		scalingEnabled:  true,
		screenshotDelay: 2 * time.Second,
		captureOnAction: true,
	}
}

// SetScreenshotDelay overrides the settle delay before post-action captures.
func (t *ComputerTool) SetScreenshotDelay(d time.Duration) {
	t.screenshotDelay = d
}

// SetCaptureOnAction controls whether every action returns a fresh screenshot.
func (t *ComputerTool) SetCaptureOnAction(enabled bool) {
	t.captureOnAction = enabled
}

// Name returns the tool name.
func (t *ComputerTool) Name() string {
	return ToolComputer
}

// Definition returns the tool definition for the model.
func (t *ComputerTool) Definition() ToolDefinition {
	width, height := t.scaledDisplaySize()
	return ToolDefinition{
		Name: ToolComputer,
		Description: fmt.Sprintf(
			"Control the mouse and keyboard of an X11 display and capture screenshots. "+
				"The display resolution is %dx%d. Coordinates are zero-indexed from the top-left corner.",
			width, height),
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"action": {
					Type:        "string",
					Description: "The action to perform on the display.",
					Enum: []string{
						actionKey, actionType, actionMouseMove, actionLeftClick,
						actionLeftClickDrag, actionRightClick, actionMiddleClick,
						actionDoubleClick, actionScreenshot, actionCursorPosition,
					},
				},
				"text": {
					Type:        "string",
					Description: "Text to type, or an xdotool key sequence for the key action.",
				},
				"coordinate": {
					Type:        "array",
					Description: "Pixel coordinate [x, y] for mouse actions.",
				},
			},
			Required: []string{"action"},
		},
	}
}

// Exec executes the tool with the given arguments.
func (t *ComputerTool) Exec(ctx context.Context, args map[string]any) (*Result, error) {
	action, ok := utils.SafeAssert[string](args["action"])
	if !ok || action == "" {
		return nil, NewValidationError("action is required and must be a string")
	}

	switch action {
	case actionKey, actionType:
		text, ok := utils.SafeAssert[string](args["text"])
		if !ok || text == "" {
			return nil, NewValidationError("text is required for action %q", action)
		}
		if _, present := args["coordinate"]; present {
			return nil, NewValidationError("coordinate is not accepted for action %q", action)
		}
		return t.execKeyboard(ctx, action, text)

	case actionMouseMove, actionLeftClickDrag:
		x, y, err := t.parseCoordinate(args)
		if err != nil {
			return nil, err
		}
		return t.execMouseMove(ctx, action, x, y)

	case actionLeftClick, actionRightClick, actionMiddleClick, actionDoubleClick:
		if _, present := args["text"]; present {
			return nil, NewValidationError("text is not accepted for action %q", action)
		}
		return t.execClick(ctx, action)

	case actionScreenshot:
		return t.screenshot(ctx)

	case actionCursorPosition:
		return t.cursorPosition(ctx)

	default:
		return nil, NewValidationError("%s is not a valid action", action)
	}
}

func (t *ComputerTool) execKeyboard(ctx context.Context, action, text string) (*Result, error) {
	if action == actionKey {
		return t.shellAndCapture(ctx, []string{"xdotool", "key", "--", text})
	}

	// Long strings are typed in groups so a stuck xdotool does not swallow
	// the whole input.
	var outputs []string
	for _, chunk := range chunkString(text, typingGroupSize) {
		result, err := t.run(ctx, []string{
			"xdotool", "type", "--delay", strconv.Itoa(typingDelayMs), "--", chunk,
		})
		if err != nil {
			return nil, err
		}
		if result.ExitCode != 0 {
			return &Result{Error: strings.TrimSpace(result.Stderr)}, nil
		}
		if out := strings.TrimSpace(result.Stdout); out != "" {
			outputs = append(outputs, out)
		}
	}
	return t.withPostActionScreenshot(ctx, &Result{Output: strings.Join(outputs, "")})
}

func (t *ComputerTool) execMouseMove(ctx context.Context, action string, x, y int) (*Result, error) {
	realX, realY, err := t.scaleCoordinates(scaleSourceAPI, x, y)
	if err != nil {
		return nil, err
	}

	var cmd []string
	if action == actionMouseMove {
		cmd = []string{"xdotool", "mousemove", "--sync", strconv.Itoa(realX), strconv.Itoa(realY)}
	} else {
		cmd = []string{
			"xdotool", "mousedown", "1",
			"mousemove", "--sync", strconv.Itoa(realX), strconv.Itoa(realY),
			"mouseup", "1",
		}
	}
	return t.shellAndCapture(ctx, cmd)
}

func (t *ComputerTool) execClick(ctx context.Context, action string) (*Result, error) {
	var cmd []string
	switch action {
	case actionLeftClick:
		cmd = []string{"xdotool", "click", "1"}
	case actionRightClick:
		cmd = []string{"xdotool", "click", "3"}
	case actionMiddleClick:
		cmd = []string{"xdotool", "click", "2"}
	case actionDoubleClick:
		cmd = []string{"xdotool", "click", "--repeat", "2", "--delay", "500", "1"}
	}
	return t.shellAndCapture(ctx, cmd)
}

// screenshot captures the display, optionally downscaling to the advertised
// virtual size. Capture is retried because scrot intermittently fails right
// after window changes.
func (t *ComputerTool) screenshot(ctx context.Context) (*Result, error) {
	if err := os.MkdirAll(t.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	path := filepath.Join(t.outputDir, fmt.Sprintf("screenshot_%s.png", uuid.NewString()))

	var lastErr string
	for attempt := 0; attempt < screenshotRetries; attempt++ {
		result, err := t.run(ctx, []string{"scrot", "-o", path})
		if err != nil {
			return nil, err
		}
		if result.ExitCode == 0 {
			lastErr = ""
			break
		}
		lastErr = strings.TrimSpace(result.Stderr)
		t.logger.Warn("screenshot attempt %d failed: %s", attempt+1, lastErr)
		time.Sleep(500 * time.Millisecond)
	}
	if lastErr != "" {
		return &Result{Error: fmt.Sprintf("screenshot failed: %s", lastErr)}, nil
	}

	if t.scalingEnabled {
		width, height := t.scaledDisplaySize()
		if width != t.width || height != t.height {
			resize := fmt.Sprintf("%dx%d!", width, height)
			result, err := t.run(ctx, []string{"convert", path, "-resize", resize, path})
			if err != nil {
				return nil, err
			}
			if result.ExitCode != 0 {
				t.logger.Warn("screenshot downscale failed, returning full size: %s", result.Stderr)
			}
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read screenshot: %w", err)
	}
	defer os.Remove(path)

	return &Result{
		Image: &ImageData{
			Data:      base64.StdEncoding.EncodeToString(data),
			MediaType: "image/png",
		},
	}, nil
}

func (t *ComputerTool) cursorPosition(ctx context.Context) (*Result, error) {
	result, err := t.run(ctx, []string{"xdotool", "getmouselocation", "--shell"})
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		return &Result{Error: strings.TrimSpace(result.Stderr)}, nil
	}

	x, y, err := parseMouseLocation(result.Stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cursor position: %w", err)
	}

	apiX, apiY, err := t.scaleCoordinates(scaleSourceComputer, x, y)
	if err != nil {
		return nil, err
	}
	return &Result{Output: fmt.Sprintf("X=%d,Y=%d", apiX, apiY)}, nil
}

// shellAndCapture runs an xdotool command and, when enabled, attaches a
// post-action screenshot after the display settles.
func (t *ComputerTool) shellAndCapture(ctx context.Context, cmd []string) (*Result, error) {
	result, err := t.run(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		return &Result{Error: strings.TrimSpace(result.Stderr)}, nil
	}
	return t.withPostActionScreenshot(ctx, &Result{Output: strings.TrimSpace(result.Stdout)})
}

func (t *ComputerTool) withPostActionScreenshot(ctx context.Context, result *Result) (*Result, error) {
	if !t.captureOnAction {
		return result, nil
	}
	time.Sleep(t.screenshotDelay)

	capture, err := t.screenshot(ctx)
	if err != nil {
		return nil, err
	}
	if capture.Failed() {
		// Action succeeded; report the capture failure without discarding output.
		result.System = capture.Error
		return result, nil
	}
	result.Image = capture.Image
	return result, nil
}

func (t *ComputerTool) run(ctx context.Context, cmd []string) (execpkg.Result, error) {
	opts := execpkg.DefaultOpts()
	opts.Env = []string{fmt.Sprintf("DISPLAY=:%d", t.displayNum)}
	return t.executor.Run(ctx, cmd, &opts)
}

// scaledDisplaySize returns the display size advertised to the model.
func (t *ComputerTool) scaledDisplaySize() (int, int) {
	if !t.scalingEnabled {
		return t.width, t.height
	}
	width, height, scaled := t.scalingTarget()
	if !scaled {
		return t.width, t.height
	}
	return width, height
}

// scalingTarget picks the virtual display dimensions, if any apply. Only
// downscaling is performed; displays already at or below the target size are
// left alone.
func (t *ComputerTool) scalingTarget() (width, height int, ok bool) {
	ratio := float64(t.width) / float64(t.height)
	for _, target := range scalingTargets {
		targetRatio := float64(target.width) / float64(target.height)
		if math.Abs(targetRatio-ratio) > 0.02 {
			continue
		}
		if target.width >= t.width {
			return 0, 0, false
		}
		return target.width, target.height, true
	}
	return 0, 0, false
}

// scaleCoordinates translates between the model's virtual coordinate space
// and the real display.
func (t *ComputerTool) scaleCoordinates(source scaleSource, x, y int) (int, int, error) {
	if !t.scalingEnabled {
		return x, y, nil
	}
	targetWidth, targetHeight, scaled := t.scalingTarget()
	if !scaled {
		return x, y, nil
	}

	xFactor := float64(targetWidth) / float64(t.width)
	yFactor := float64(targetHeight) / float64(t.height)

	if source == scaleSourceAPI {
		if x > targetWidth || y > targetHeight {
			return 0, 0, NewValidationError("coordinates %d, %d are out of bounds", x, y)
		}
		return int(math.Round(float64(x) / xFactor)), int(math.Round(float64(y) / yFactor)), nil
	}
	return int(math.Round(float64(x) * xFactor)), int(math.Round(float64(y) * yFactor)), nil
}

func (t *ComputerTool) parseCoordinate(args map[string]any) (int, int, error) {
	raw, present := args["coordinate"]
	if !present {
		return 0, 0, NewValidationError("coordinate is required for this action")
	}

	pair, ok := utils.SafeAssert[[]any](raw)
	if !ok || len(pair) != 2 {
		return 0, 0, NewValidationError("coordinate must be a [x, y] pair")
	}

	coords := make([]int, 2)
	for i, v := range pair {
		switch n := v.(type) {
		case float64:
			coords[i] = int(n)
		case int:
			coords[i] = n
		default:
			return 0, 0, NewValidationError("coordinate values must be non-negative integers")
		}
		if coords[i] < 0 {
			return 0, 0, NewValidationError("coordinate values must be non-negative integers")
		}
	}
	return coords[0], coords[1], nil
}

// parseMouseLocation extracts X and Y from xdotool getmouselocation --shell
// output (X=..\nY=..\n...).
func parseMouseLocation(output string) (int, int, error) {
	x, y := -1, -1
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if value, found := strings.CutPrefix(line, "X="); found {
			parsed, err := strconv.Atoi(value)
			if err != nil {
				return 0, 0, fmt.Errorf("invalid X value %q", value)
			}
			x = parsed
		}
		if value, found := strings.CutPrefix(line, "Y="); found {
			parsed, err := strconv.Atoi(value)
			if err != nil {
				return 0, 0, fmt.Errorf("invalid Y value %q", value)
			}
			y = parsed
		}
	}
	if x < 0 || y < 0 {
		return 0, 0, fmt.Errorf("missing X or Y in output %q", output)
	}
	return x, y, nil
}

func chunkString(s string, size int) []string {
	var chunks []string
	for len(s) > size {
		chunks = append(chunks, s[:size])
		s = s[size:]
	}
	return append(chunks, s)
}
