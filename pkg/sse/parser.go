// Package sse implements an incremental parser and encoder for the
// Server-Sent Events wire format used by streaming LLM upstreams.
package sse

import "strings"

// Event is a single parsed SSE frame.
type Event struct {
	Event string
	Data  string
}

// Parser is an incremental, restartable SSE parser. Push feeds it an
// arbitrary byte chunk and returns any events completed by that chunk;
// a trailing partial line is retained across calls.
type Parser struct {
	pendingTxt string // bytes not yet split into a full line
	curEvent   string
	dataLines  []string
	haveEvent  bool
}

// NewParser creates a new, empty incremental parser.
func NewParser() *Parser {
	return &Parser{}
}

// Push feeds a chunk of bytes into the parser and returns any SSE events
// completed by it. It never buffers more than one in-progress event.
func (p *Parser) Push(chunk []byte) []Event {
	p.pendingTxt += string(chunk)
	return p.drainLines()
}

// Finish flushes any trailing event that wasn't terminated by a blank
// line (some upstreams close the connection without a final \n\n).
func (p *Parser) Finish() []Event {
	var events []Event
	if p.pendingTxt != "" {
		events = append(events, p.handleLine(p.pendingTxt)...)
		p.pendingTxt = ""
	}
	if p.haveEvent {
		events = append(events, p.dispatch())
	}
	return events
}

func (p *Parser) drainLines() []Event {
	var events []Event
	for {
		idx := strings.IndexByte(p.pendingTxt, '\n')
		if idx == -1 {
			break
		}
		line := p.pendingTxt[:idx]
		p.pendingTxt = p.pendingTxt[idx+1:]
		line = strings.TrimSuffix(line, "\r")
		events = append(events, p.handleLine(line)...)
	}
	return events
}

// handleLine processes one complete line and returns a dispatched event
// if the line was blank and an event was pending.
func (p *Parser) handleLine(line string) []Event {
	if line == "" {
		if p.haveEvent {
			return []Event{p.dispatch()}
		}
		return nil
	}

	switch {
	case strings.HasPrefix(line, ":"):
		// comment line, ignored
	case strings.HasPrefix(line, "event:"):
		p.curEvent = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		p.haveEvent = true
	case strings.HasPrefix(line, "data:"):
		val := strings.TrimPrefix(line, "data:")
		if strings.HasPrefix(val, " ") {
			val = val[1:]
		}
		p.dataLines = append(p.dataLines, val)
		p.haveEvent = true
	default:
		// unrecognized field prefix, dropped
	}
	return nil
}

func (p *Parser) dispatch() Event {
	ev := Event{
		Event: p.curEvent,
		Data:  strings.Join(p.dataLines, "\n"),
	}
	p.curEvent = ""
	p.dataLines = nil
	p.haveEvent = false
	return ev
}

// IsDone reports whether an event signals stream termination ("[DONE]").
func IsDone(ev Event) bool {
	return strings.TrimSpace(ev.Data) == "[DONE]"
}
