package serial

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"filamux/core"
)

// Line is one message of the debug console.
type Line struct {
	Tag  string // text inside the leading brackets, empty if none
	Text string
}

// ParseLine splits a "[TAG] text" console line.
func ParseLine(s string) Line {
	s = strings.TrimRight(s, "\r\n")
	if strings.HasPrefix(s, "[") {
		if end := strings.IndexByte(s, ']'); end > 0 {
			return Line{Tag: s[1:end], Text: strings.TrimSpace(s[end+1:])}
		}
	}
	return Line{Text: s}
}

// ParseTrace decodes a trace ring dump entry. ok is false for other lines.
func ParseTrace(l Line) (core.TraceEvent, bool) {
	if l.Tag != "TRACE" {
		return core.TraceEvent{}, false
	}
	fields := strings.Fields(l.Text)
	if len(fields) == 0 {
		return core.TraceEvent{}, false
	}
	var evt core.TraceEvent
	for t := uint8(1); t <= core.EvtStepRetry; t++ {
		if core.TraceEventName(t) == fields[0] {
			evt.EventType = t
		}
	}
	if evt.EventType == 0 {
		return core.TraceEvent{}, false
	}
	for _, f := range fields[1:] {
		k, v, found := strings.Cut(f, "=")
		if !found {
			continue
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return core.TraceEvent{}, false
		}
		switch k {
		case "id":
			evt.ID = uint8(n)
		case "clock":
			evt.Clock = uint32(n)
		case "v1":
			evt.Value1 = uint32(n)
		case "v2":
			evt.Value2 = uint32(n)
		}
	}
	return evt, true
}

// Monitor reads console lines from r and hands them to fn until r ends or
// ctx is done. Read timeouts of the port surface as empty reads and are
// retried.
func Monitor(ctx context.Context, r io.Reader, fn func(Line)) error {
	br := bufio.NewReader(r)
	var partial strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk, err := br.ReadString('\n')
		partial.WriteString(chunk)
		if strings.HasSuffix(chunk, "\n") {
			if s := strings.TrimRight(partial.String(), "\r\n"); s != "" {
				fn(ParseLine(s))
			}
			partial.Reset()
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if partial.Len() > 0 {
					fn(ParseLine(partial.String()))
				}
				return nil
			}
			return err
		}
	}
}
