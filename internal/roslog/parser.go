package roslog

import (
	"regexp"
	"time"
)

// linePattern matches the rclpy console format:
// [INFO] [<timestamp>] [<node>]: <message>
var linePattern = regexp.MustCompile(`^\[INFO\] \[([^\]]+)\] \[([^\]]+)\]: (.*)$`)

// Record is one structured log line extracted from node stdout. The
// timestamp is kept as the raw text the node printed (seconds.nanos for
// rclpy); clients render it.
type Record struct {
	Timestamp  string    `json:"timestamp"`
	Node       string    `json:"node"`
	Message    string    `json:"message"`
	ReceivedAt time.Time `json:"received_at"`
}

// Parse extracts a Record from one stdout line. The second return is
// false when the line does not match the pattern.
func Parse(line string) (Record, bool) {
	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return Record{}, false
	}
	return Record{
		Timestamp:  m[1],
		Node:       m[2],
		Message:    m[3],
		ReceivedAt: time.Now(),
	}, true
}
