package sources

import (
	"bufio"
	"context"
	"io"

	"github.com/erhlee-bird/vector/api/v1/events"
)

// MaxLineLength bounds a single line read by the line based sources.
const MaxLineLength = 1 << 20

// Source is the long-running task built from a source configuration. It
// pushes events downstream until it is shut down or runs out of input.
// The topology closes the output channel after the task returns.
type Source func() error

// Emit sends an event downstream, giving up when shutdown is requested.
func Emit(ctx context.Context, out chan<- any, event events.Event) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- event:
		return true
	}
}

// ReadLines calls fn for every line of r until r is exhausted or fn returns
// false. Trailing carriage returns are stripped.
func ReadLines(r io.Reader, fn func(line string) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineLength)
	for scanner.Scan() {
		line := scanner.Text()
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		if !fn(line) {
			return nil
		}
	}
	return scanner.Err()
}
