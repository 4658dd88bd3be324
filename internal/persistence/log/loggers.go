package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"blockremental/internal/sim/session"
)

// journal appends one JSON document per line to <dir>/<prefix>-YYYY-MM-DD-HH.jsonl.zst,
// switching files when the UTC hour changes. Each entry is flushed as its own
// zstd block so a crash loses at most the entry being written.
type journal struct {
	dir, prefix string
	now         func() time.Time

	mu   sync.Mutex
	hour string
	file *os.File
	zw   *zstd.Encoder
	je   *json.Encoder
}

func newJournal(dir, prefix string) *journal {
	return &journal{dir: dir, prefix: prefix, now: time.Now}
}

func (j *journal) append(v any) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if hour := j.now().UTC().Format("2006-01-02-15"); hour != j.hour {
		if err := j.open(hour); err != nil {
			return err
		}
	}
	if err := j.je.Encode(v); err != nil {
		return err
	}
	return j.zw.Flush()
}

func (j *journal) open(hour string) error {
	if err := j.closeFile(); err != nil {
		return err
	}
	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return err
	}
	name := filepath.Join(j.dir, fmt.Sprintf("%s-%s.jsonl.zst", j.prefix, hour))
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(1))
	if err != nil {
		_ = f.Close()
		return err
	}
	j.hour, j.file, j.zw, j.je = hour, f, zw, json.NewEncoder(zw)
	return nil
}

func (j *journal) closeFile() error {
	if j.zw == nil {
		return nil
	}
	err := j.zw.Close()
	if cerr := j.file.Close(); err == nil {
		err = cerr
	}
	j.hour, j.file, j.zw, j.je = "", nil, nil, nil
	return err
}

func (j *journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closeFile()
}

// TickLogger journals the actions applied on each tick together with the resulting digest.
type TickLogger struct{ j *journal }

func NewTickLogger(sessionDir string) *TickLogger {
	return &TickLogger{j: newJournal(filepath.Join(sessionDir, "events"), "events")}
}

func (l *TickLogger) WriteTick(v session.TickLogEntry) error { return l.j.append(v) }
func (l *TickLogger) Close() error                           { return l.j.Close() }

// AuditLogger records accepted purchases.
type AuditLogger struct{ j *journal }

func NewAuditLogger(sessionDir string) *AuditLogger {
	return &AuditLogger{j: newJournal(filepath.Join(sessionDir, "audit"), "audit")}
}

func (l *AuditLogger) WriteAudit(v session.AuditEntry) error { return l.j.append(v) }
func (l *AuditLogger) Close() error                          { return l.j.Close() }

// ListFiles returns <prefix>-*.jsonl.zst files in dir, oldest hour first.
func ListFiles(dir, prefix string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix+"-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

// ReadTicks decodes one events file and calls fn for each entry in order.
func ReadTicks(path string, fn func(session.TickLogEntry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	for line := 1; sc.Scan(); line++ {
		var entry session.TickLogEntry
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			return fmt.Errorf("%s:%d: unmarshal: %w", filepath.Base(path), line, err)
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return sc.Err()
}
