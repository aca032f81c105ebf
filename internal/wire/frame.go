package wire

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrFrameTooLong is returned for frames over MaxFrameSize. The reader has
// already skipped the rest of the offending line and may be used again.
var ErrFrameTooLong = errors.New("wire: frame too long")

// ErrLineBreak is returned for frames carrying a CR or LF inside their
// payload. Such a frame would split into several on a line transport.
var ErrLineBreak = errors.New("wire: line break inside frame")

// FrameReader reads newline-terminated frames.
type FrameReader struct {
	r *bufio.Reader
}

func NewFrameReader(r io.Reader) *FrameReader {
	// Room for the payload plus "\r\n".
	return &FrameReader{r: bufio.NewReaderSize(r, MaxFrameSize+2)}
}

// ReadFrame returns the next frame without its line terminator. A final
// unterminated line is returned as a frame before io.EOF.
func (fr *FrameReader) ReadFrame() (string, error) {
	line, err := fr.r.ReadSlice('\n')
	switch {
	case err == nil:
		return trimFrame(line)
	case errors.Is(err, bufio.ErrBufferFull):
		return "", fr.discardLine()
	case errors.Is(err, io.EOF):
		if len(line) > 0 {
			return trimFrame(line)
		}
		return "", io.EOF
	default:
		return "", fmt.Errorf("read frame: %w", err)
	}
}

func (fr *FrameReader) discardLine() error {
	for {
		_, err := fr.r.ReadSlice('\n')
		switch {
		case err == nil:
			return ErrFrameTooLong
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			return io.EOF
		default:
			return fmt.Errorf("read frame: %w", err)
		}
	}
}

func trimFrame(line []byte) (string, error) {
	s := strings.TrimRight(string(line), "\r\n")
	if err := CheckFrame(s); err != nil {
		return "", err
	}
	return s, nil
}

// IsFrameError reports whether err rejects one frame and leaves the stream
// usable for the next.
func IsFrameError(err error) bool {
	return errors.Is(err, ErrFrameTooLong) || errors.Is(err, ErrLineBreak)
}

// CheckFrame reports whether line can travel as a single frame.
func CheckFrame(line string) error {
	if len(line) > MaxFrameSize {
		return ErrFrameTooLong
	}
	if strings.ContainsAny(line, "\r\n") {
		return ErrLineBreak
	}
	return nil
}

// WriteFrame writes m followed by a newline to w.
func WriteFrame(w io.Writer, m Message) error {
	line := m.Encode()
	if err := CheckFrame(line); err != nil {
		return err
	}
	if _, err := io.WriteString(w, line+"\n"); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
