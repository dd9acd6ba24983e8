// Package sse decodes the event stream the chat endpoint produces: a
// sequence of "data: {json}" lines terminated by "data: [DONE]". The parser
// is incremental — bytes arrive in arbitrary chunks and a frame may be split
// anywhere, including mid-JSON.
package sse

import (
	"bytes"
	"encoding/json"
	"strings"
)

const dataPrefix = "data: "

type Delta struct {
	Content string `json:"content,omitempty"`
}

type Choice struct {
	Delta        Delta  `json:"delta"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Frame is one decoded data payload. Exactly one of the two shapes is
// populated: the synthetic tool marker (ToolActions) or a model delta
// (Choices).
type Frame struct {
	ToolActions []string `json:"tool_actions,omitempty"`
	Choices     []Choice `json:"choices,omitempty"`
}

// IsToolMarker reports whether the frame is the synthetic marker listing
// which board tools the server executed.
func (f Frame) IsToolMarker() bool {
	return f.ToolActions != nil
}

// ContentDelta returns the text appended by this frame, if any.
func (f Frame) ContentDelta() string {
	if len(f.Choices) == 0 {
		return ""
	}
	return f.Choices[0].Delta.Content
}

// Parser accumulates raw bytes and yields complete frames. Comments, blank
// lines and unknown line shapes are ignored; a data line whose JSON fails to
// parse is assumed truncated by the transport and is kept in the buffer
// until the next Feed supplies the rest.
type Parser struct {
	buf  []byte
	done bool
}

// Done reports whether the [DONE] terminator has been seen. Frames are no
// longer emitted after that point, though remaining bytes may still be fed.
func (p *Parser) Done() bool {
	return p.done
}

// Feed appends a chunk and returns every frame completed by it.
func (p *Parser) Feed(data []byte) []Frame {
	p.buf = append(p.buf, data...)

	var frames []Frame
	for {
		i := bytes.IndexByte(p.buf, '\n')
		if i < 0 {
			return frames
		}

		frame, emit, truncated := p.decodeLine(string(p.buf[:i]))
		if truncated {
			// The rest of this frame is still in flight; resume
			// from the same line after the next Feed.
			return frames
		}
		p.buf = p.buf[i+1:]
		if emit {
			frames = append(frames, frame)
		}
	}
}

// Flush runs the residual buffer through the same decode pass once more.
// The last physical read can leave a complete line with no trailing newline;
// here a parse failure really is malformed input and is dropped. Flushing an
// empty buffer is a no-op.
func (p *Parser) Flush() []Frame {
	var frames []Frame
	for _, raw := range bytes.Split(p.buf, []byte{'\n'}) {
		frame, emit, _ := p.decodeLine(string(raw))
		if emit {
			frames = append(frames, frame)
		}
	}
	p.buf = nil
	return frames
}

func (p *Parser) decodeLine(line string) (frame Frame, emit, truncated bool) {
	line = strings.TrimSuffix(line, "\r")
	if line == "" || strings.HasPrefix(line, ":") {
		return Frame{}, false, false
	}
	if !strings.HasPrefix(line, dataPrefix) {
		return Frame{}, false, false
	}

	payload := strings.TrimSpace(line[len(dataPrefix):])
	if payload == "[DONE]" {
		p.done = true
		return Frame{}, false, false
	}
	if p.done {
		return Frame{}, false, false
	}

	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		return Frame{}, false, true
	}
	return frame, true, false
}
