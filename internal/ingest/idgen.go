package ingest

import (
	"strconv"
	"sync"
	"time"
)

// IDGen hands out numeric point ids that are unique for the lifetime of one
// ingestion run. An id is the process-start unix-ms timestamp with a
// monotonically increasing counter appended in decimal, so two chunks ingested
// in the same millisecond never collide. Construct one per run and pass it by
// handle; there is no package-level state.
type IDGen struct {
	mu   sync.Mutex
	base int64
	seq  uint64
}

func NewIDGen() *IDGen {
	return &IDGen{base: time.Now().UnixMilli()}
}

// Next returns the next unique id. When the decimal concatenation would no
// longer fit in a uint64 the epoch is re-based on the current time and the
// counter restarts.
func (g *IDGen) Next() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	for {
		id, err := strconv.ParseUint(strconv.FormatInt(g.base, 10)+strconv.FormatUint(g.seq, 10), 10, 64)
		if err == nil {
			g.seq++
			return id
		}
		g.base = time.Now().UnixMilli()
		g.seq = 0
	}
}
