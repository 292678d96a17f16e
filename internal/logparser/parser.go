package logparser

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// rawEvent covers the union of fields across every [TST] event type
// (spec.md §4.2). Unused fields are simply left at their zero value.
type rawEvent struct {
	Type        string  `json:"type"`
	Block       string  `json:"block"`
	Step        string  `json:"step"`
	Description string  `json:"description"`
	Name        string  `json:"name"`
	Value       float64 `json:"value"`
	Unit        string  `json:"unit"`
	Passed      *bool   `json:"passed"`
	Action      string  `json:"action"`
	Message     string  `json:"message"`
}

// parser holds the open-frame stack for one test's stdout stream.
type parser struct {
	log       *Log
	openBlock *Frame
	stepStack []*Frame
}

// Parse reads a test's stdout line by line, extracting [TST]-prefixed
// structured events into the frame tree while passing every other line
// through to passthrough unchanged (spec.md §4.2/§6.4). Grounded on the
// line-buffered child-process reading in internal/dag/tailer.go.
func Parse(r io.Reader, passthrough io.Writer) (*Log, error) {
	p := &parser{log: &Log{}}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, Sentinel) {
			if passthrough != nil {
				fmt.Fprintln(passthrough, line)
			}
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(trimmed, Sentinel))
		p.handleLine(payload)
	}
	if err := scanner.Err(); err != nil {
		return p.log, fmt.Errorf("reading test output: %w", err)
	}

	p.closeUnclosed()
	return p.log, nil
}

func (p *parser) handleLine(payload string) {
	var ev rawEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		message := fmt.Sprintf("malformed event JSON: %v", err)
		if frame := p.currentFrame(); frame != nil {
			p.recordFrameError(frame, message)
			return
		}
		p.recordParseError(message)
		return
	}

	switch ev.Type {
	case "block_start":
		p.blockStart(ev)
	case "block_end":
		p.blockEnd(ev)
	case "step_start":
		p.stepStart(ev)
	case "step_end":
		p.stepEnd(ev)
	case "measurement":
		p.appendMeasurement(ev)
	case "result":
		p.appendResult(ev)
	case "feature":
		p.appendFeature(ev)
	case "error":
		p.appendError(ev)
	default:
		p.recordParseError(fmt.Sprintf("unknown event type %q", ev.Type))
	}
}

func (p *parser) blockStart(ev rawEvent) {
	if p.openBlock != nil {
		p.recordFrameError(p.openBlock, fmt.Sprintf("block_start %q while block %q is still open", ev.Block, p.openBlock.Name))
		return
	}
	block := &Frame{Name: ev.Block, IsBlock: true, Kind: classifyBlock(ev.Block)}
	p.log.Blocks = append(p.log.Blocks, block)
	p.openBlock = block
}

func (p *parser) blockEnd(ev rawEvent) {
	if p.openBlock == nil || p.openBlock.Name != ev.Block {
		p.recordParseError(fmt.Sprintf("unmatched block_end %q", ev.Block))
		return
	}
	if len(p.stepStack) > 0 {
		p.recordFrameError(p.openBlock, fmt.Sprintf("block_end %q with %d step(s) still open", ev.Block, len(p.stepStack)))
		p.stepStack = nil
	}
	p.openBlock = nil
}

func (p *parser) stepStart(ev rawEvent) {
	if p.openBlock == nil {
		p.recordParseError(fmt.Sprintf("step_start %q outside any block", ev.Step))
		return
	}
	parent := p.currentFrame()
	step := &Frame{Name: ev.Step, Description: ev.Description}
	parent.Children = append(parent.Children, step)
	p.stepStack = append(p.stepStack, step)
}

func (p *parser) stepEnd(ev rawEvent) {
	if len(p.stepStack) == 0 {
		p.recordParseError(fmt.Sprintf("unmatched step_end %q", ev.Step))
		return
	}
	top := p.stepStack[len(p.stepStack)-1]
	if top.Name != ev.Step {
		p.recordFrameError(top, fmt.Sprintf("unmatched step_end %q (expected %q)", ev.Step, top.Name))
		return
	}
	p.stepStack = p.stepStack[:len(p.stepStack)-1]
}

func (p *parser) appendMeasurement(ev rawEvent) {
	frame := p.currentFrame()
	if frame == nil {
		p.recordParseError(fmt.Sprintf("measurement %q outside any block", ev.Name))
		return
	}
	frame.Measurements = append(frame.Measurements, Measurement{Name: p.prefixedName(ev.Name), Value: ev.Value, Unit: ev.Unit})
}

// prefixedName joins the currently open step path with name (spec.md §4.2:
// "name prefixed by open step path"), so two measurements sharing a bare
// name under different nested steps don't collide once read back.
func (p *parser) prefixedName(name string) string {
	if len(p.stepStack) == 0 {
		return name
	}
	parts := make([]string, 0, len(p.stepStack)+1)
	for _, step := range p.stepStack {
		parts = append(parts, step.Name)
	}
	parts = append(parts, name)
	return strings.Join(parts, ".")
}

func (p *parser) appendResult(ev rawEvent) {
	frame := p.currentFrame()
	if frame == nil {
		p.recordParseError(fmt.Sprintf("result %q outside any block", ev.Name))
		return
	}
	passed := ev.Passed == nil || *ev.Passed
	frame.Results = append(frame.Results, Result{Name: ev.Name, Passed: passed})
	if !passed {
		p.markFailed(frame)
	}
}

func (p *parser) appendFeature(ev rawEvent) {
	frame := p.currentFrame()
	if frame == nil {
		p.recordParseError(fmt.Sprintf("feature %q outside any block", ev.Name))
		return
	}
	frame.Features = append(frame.Features, Feature{Name: ev.Name, Action: ev.Action})
}

func (p *parser) appendError(ev rawEvent) {
	frame := p.currentFrame()
	if frame == nil {
		p.recordParseError(fmt.Sprintf("error %q outside any block", ev.Name))
		return
	}
	p.recordFrameError(frame, ev.Message)
	if p.openBlock != nil && p.openBlock.Kind == Rigging {
		p.log.HasRiggingFailure = true
	}
}

// currentFrame returns the innermost open step, or the open block if no
// step is open, or nil if nothing is open.
func (p *parser) currentFrame() *Frame {
	if n := len(p.stepStack); n > 0 {
		return p.stepStack[n-1]
	}
	return p.openBlock
}

// markFailed marks frame and every currently open ancestor (step frames and
// the enclosing block) failed: a frame is failed iff it directly contains a
// false result or an error, or any child step is failed, and that clause
// cascades upward through the open-frame stack (spec.md §4.2).
func (p *parser) markFailed(frame *Frame) {
	frame.Failed = true
	for i := len(p.stepStack) - 1; i >= 0; i-- {
		p.stepStack[i].Failed = true
	}
	if p.openBlock != nil {
		p.openBlock.Failed = true
	}
}

// recordFrameError attaches a named error event to frame and cascades
// failure up the open-frame stack, as an explicit `error` event does.
func (p *parser) recordFrameError(frame *Frame, message string) {
	frame.Errors = append(frame.Errors, ErrorEvent{Name: frame.Name, Message: message})
	p.markFailed(frame)
}

// recordParseError records a parser-level error in Log.ParseErrors without
// attaching it to any frame.
func (p *parser) recordParseError(message string) {
	p.log.ParseErrors = append(p.log.ParseErrors, message)
}

// closeUnclosed handles EOF with open frames (spec.md §4.2): the parse
// error is attached to the outermost unclosed frame, then every open frame
// is force-closed so the caller still gets a usable (if partial) tree.
func (p *parser) closeUnclosed() {
	if p.openBlock == nil {
		return
	}
	outermost := p.openBlock
	if len(p.stepStack) > 0 {
		p.recordFrameError(outermost, fmt.Sprintf("%d step(s) still open at end of stream", len(p.stepStack)))
	} else {
		p.recordFrameError(outermost, "block still open at end of stream")
	}
	p.stepStack = nil
	p.openBlock = nil
}
