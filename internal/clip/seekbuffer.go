package clip

import (
	"fmt"
	"io"
)

// seekBuffer is an in-memory io.WriteSeeker. The wav encoder needs to seek
// back and patch RIFF chunk sizes on Close, which bytes.Buffer cannot do.
type seekBuffer struct {
	buf []byte
	pos int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.buf) {
		grown := make([]byte, need)
		copy(grown, b.buf)
		b.buf = grown
	}
	copy(b.buf[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.buf)) + offset
	default:
		return 0, fmt.Errorf("seekbuffer: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("seekbuffer: negative position %d", abs)
	}
	b.pos = int(abs)
	return abs, nil
}

// Bytes returns the written contents.
func (b *seekBuffer) Bytes() []byte {
	return b.buf
}
