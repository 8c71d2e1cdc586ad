package roslog

import (
	"github.com/rs/zerolog/log"

	"github.com/sanketmali2409/ros2-sensor-dashboard/internal/observability"
)

// Ingestor feeds raw stdout lines through the parser into a history
// buffer. Unmatched lines are counted and dropped.
type Ingestor struct {
	history *History
}

func NewIngestor(history *History) *Ingestor {
	return &Ingestor{history: history}
}

func (i *Ingestor) History() *History {
	return i.history
}

// IngestLine implements launcher.LineSink.
func (i *Ingestor) IngestLine(node, line string) {
	record, ok := Parse(line)
	if !ok {
		observability.RecordLogLine("unmatched")
		log.Debug().Str("node", node).Str("line", line).Msg("stdout line unmatched")
		return
	}
	i.history.Push(record)
	observability.RecordLogLine("parsed")
}
