package remote

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrLineTooLong is returned when a request line exceeds the configured limit.
var ErrLineTooLong = errors.New("request line too long")

// ReadFrame reads one newline-terminated request from r and returns it
// without the terminator. Blank lines are skipped.
func ReadFrame(r *bufio.Reader, max int) ([]byte, error) {
	for {
		var line []byte
		for {
			chunk, isPrefix, err := r.ReadLine()
			if err != nil {
				if errors.Is(err, io.EOF) && len(line) > 0 {
					return line, nil
				}
				return nil, err
			}
			line = append(line, chunk...)
			if max > 0 && len(line) > max {
				return nil, fmt.Errorf("%w: more than %d bytes", ErrLineTooLong, max)
			}
			if !isPrefix {
				break
			}
		}
		if line = bytes.TrimSpace(line); len(line) > 0 {
			return line, nil
		}
	}
}

// WriteFrame writes v as one JSON line.
func WriteFrame(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	raw = append(raw, '\n')
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
