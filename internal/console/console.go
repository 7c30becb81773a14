// Package console holds the process-wide message queue that scripts, the
// scheduler and the command port write to and the UI drains.
package console

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultCapacity bounds the default sink.
const DefaultCapacity = 1000

type Level int8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	}
	return fmt.Sprintf("level(%d)", int8(l))
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "debug":
		*l = LevelDebug
	case "info", "log":
		*l = LevelInfo
	case "warn", "warning":
		*l = LevelWarn
	case "error":
		*l = LevelError
	default:
		return fmt.Errorf("unknown console level %q", b)
	}
	return nil
}

// Message is one console entry. ScriptPath is empty for messages that did
// not come from a script.
type Message struct {
	Timestamp  time.Time `json:"timestamp"`
	ScriptPath string    `json:"script_path,omitempty"`
	Level      Level     `json:"level"`
	Text       string    `json:"message"`
}

// Sink is a bounded FIFO. When full, the oldest message is dropped.
type Sink struct {
	mu      sync.Mutex
	buf     []Message
	head    int
	size    int
	dropped uint64
	now     func() time.Time
}

func NewSink(capacity int) *Sink {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Sink{buf: make([]Message, capacity), now: time.Now}
}

var (
	defaultOnce sync.Once
	defaultSink *Sink
)

// Default returns the process-wide sink, creating it on first use.
func Default() *Sink {
	defaultOnce.Do(func() {
		defaultSink = NewSink(DefaultCapacity)
	})
	return defaultSink
}

// Push records a message stamped with the current time.
func (s *Sink) Push(level Level, scriptPath, text string) {
	s.Write(Message{ScriptPath: scriptPath, Level: level, Text: text})
}

func (s *Sink) Infof(format string, args ...any) {
	s.Push(LevelInfo, "", fmt.Sprintf(format, args...))
}

func (s *Sink) Warnf(format string, args ...any) {
	s.Push(LevelWarn, "", fmt.Sprintf(format, args...))
}

func (s *Sink) Errorf(format string, args ...any) {
	s.Push(LevelError, "", fmt.Sprintf(format, args...))
}

// Write appends msg, filling in the timestamp if it is zero.
func (s *Sink) Write(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	c := len(s.buf)
	if s.size == c {
		s.buf[s.head] = msg
		s.head = (s.head + 1) % c
		s.dropped++
		return
	}
	s.buf[(s.head+s.size)%c] = msg
	s.size++
}

// Drain removes and returns every queued message, oldest first.
func (s *Sink) Drain() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.copyLocked(s.size)
	c := len(s.buf)
	for i := 0; i < s.size; i++ {
		s.buf[(s.head+i)%c] = Message{}
	}
	s.head, s.size = 0, 0
	return out
}

// Tail returns up to n of the newest messages without removing them.
// n <= 0 returns all of them.
func (s *Sink) Tail(n int) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > s.size {
		n = s.size
	}
	all := s.copyLocked(s.size)
	return all[len(all)-n:]
}

func (s *Sink) copyLocked(n int) []Message {
	out := make([]Message, n)
	c := len(s.buf)
	for i := 0; i < n; i++ {
		out[i] = s.buf[(s.head+i)%c]
	}
	return out
}

func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

func (s *Sink) Capacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// Dropped counts messages discarded on overflow since creation.
func (s *Sink) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Resize changes the bound, keeping the newest messages that still fit.
func (s *Sink) Resize(capacity int) {
	if capacity <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	keep := s.copyLocked(s.size)
	if len(keep) > capacity {
		s.dropped += uint64(len(keep) - capacity)
		keep = keep[len(keep)-capacity:]
	}
	s.buf = make([]Message, capacity)
	copy(s.buf, keep)
	s.head, s.size = 0, len(keep)
}
