package monitor

import (
	"log/slog"
	"strings"

	"github.com/RagnarLothbrok-Odin/FusionFall-Bot/telemetry"
)

// Protocol sentinels. Each is a full line on the wire.
const (
	beginSentinel = "begin"
	endSentinel   = "end"
	emailSentinel = "endemail"
)

// framer reassembles the upstream byte stream into lines and extracts
// complete begin/end blocks. It is owned by the session goroutine and is
// deliberately not reset on reconnect, so lines received before a disconnect
// survive until their block completes.
type framer struct {
	lines   []string
	partial string
}

// feed appends incoming bytes and returns every block completed by them.
// A read may end mid-line; the unterminated tail is kept and prepended to
// the next feed.
func (f *framer) feed(p []byte) [][]string {
	data := f.partial + string(p)
	f.partial = ""
	if i := strings.LastIndexByte(data, '\n'); i >= 0 {
		f.partial = data[i+1:]
		data = data[:i]
	} else {
		f.partial = data
		data = ""
	}
	if data != "" {
		for _, line := range strings.Split(data, "\n") {
			line = strings.TrimSuffix(line, "\r")
			if line != "" {
				f.lines = append(f.lines, line)
			}
		}
	}
	return f.extract()
}

// extract repeatedly pulls the span strictly between the first "begin" and
// the first "end" off the buffer until no "end" sentinel remains. An "end"
// with no "begin" before it means we joined mid-block or the upstream
// garbled the stream; the ambiguous leading section is discarded.
func (f *framer) extract() [][]string {
	var blocks [][]string
	for {
		end := indexOf(f.lines, endSentinel)
		if end < 0 {
			return blocks
		}
		begin := indexOf(f.lines[:end], beginSentinel)
		if begin < 0 {
			slog.Warn("malformed block: end without begin", slog.Int("discarded_lines", end+1))
			telemetry.BlocksMalformed.Inc()
		} else {
			block := make([]string, end-begin-1)
			copy(block, f.lines[begin+1:end])
			blocks = append(blocks, block)
		}
		f.lines = append(f.lines[:0:0], f.lines[end+1:]...)
	}
}

func indexOf(lines []string, s string) int {
	for i, l := range lines {
		if l == s {
			return i
		}
	}
	return -1
}
