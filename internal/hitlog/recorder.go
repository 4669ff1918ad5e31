// Package hitlog is the runtime side of the coverage contract: probes
// call Record to durably mark "this index executed". Recording is
// advisory telemetry — it must never change the behavior of the program
// it is compiled into, so every failure on this path is swallowed.
package hitlog

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	"fortio.org/safecast"
)

// Recorder accumulates probe hits for one process into one output file
// named after the destination prefix. The file is created lazily on the
// first fire and its name embeds the pid and a nanosecond timestamp, so
// concurrently running instrumented processes never share an output.
type Recorder struct {
	mu     sync.Mutex
	prefix string
	f      *os.File
	seen   map[uint32]struct{}
	failed bool
}

// NewRecorder builds a recorder for the given destination prefix.
func NewRecorder(prefix string) *Recorder {
	return &Recorder{prefix: prefix, seen: make(map[uint32]struct{})}
}

// Hit marks the probe index as executed. Repeat fires of the same index
// are cheap no-ops; concurrent fires are serialized so records cannot
// tear. Failures are swallowed.
func (r *Recorder) Hit(index int) {
	idx, err := safecast.Conv[uint32](index)
	if err != nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failed {
		return
	}
	if _, ok := r.seen[idx]; ok {
		return
	}
	if r.f == nil {
		name := fmt.Sprintf("%s.%d.%d", r.prefix, os.Getpid(), time.Now().UnixNano())
		f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			r.failed = true
			return
		}
		r.f = f
	}
	var record [4]byte
	binary.LittleEndian.PutUint32(record[:], idx)
	if _, err := r.f.Write(record[:]); err != nil {
		r.failed = true
		return
	}
	r.seen[idx] = struct{}{}
}

// Close releases the output file. Only tests need it; an instrumented
// process just exits and the OS flushes the descriptor.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f != nil {
		r.f.Close()
		r.f = nil
	}
}

var (
	recordersMu sync.Mutex
	recorders   = make(map[string]*Recorder)
)

// Record is the entry point injected probes call: fire probe index
// against the recorder for prefix, creating it on first use.
func Record(prefix string, index int) {
	recordersMu.Lock()
	r, ok := recorders[prefix]
	if !ok {
		r = NewRecorder(prefix)
		recorders[prefix] = r
	}
	recordersMu.Unlock()
	r.Hit(index)
}
