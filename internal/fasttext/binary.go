package fasttext

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
)

// binReader decodes little-endian values and keeps the first error it hits so
// header parsing can check once per section. size is the stream length when
// known and -1 otherwise.
type binReader struct {
	r    *bufio.Reader
	buf  [8]byte
	err  error
	size int64
	off  int64
}

func newBinReader(r io.Reader, size int64) *binReader {
	return &binReader{r: bufio.NewReaderSize(r, 1<<20), size: size}
}

// fits reports whether n more bytes can still be read. It is always true when
// the stream length is unknown.
func (b *binReader) fits(n int64) bool {
	return n >= 0 && (b.size < 0 || n <= b.size-b.off)
}

func (b *binReader) fill(n int) []byte {
	if b.err != nil {
		return nil
	}
	if _, err := io.ReadFull(b.r, b.buf[:n]); err != nil {
		b.err = err
		return nil
	}
	b.off += int64(n)
	return b.buf[:n]
}

func (b *binReader) int8() int8 {
	p := b.fill(1)
	if p == nil {
		return 0
	}
	return int8(p[0])
}

func (b *binReader) bool() bool {
	return b.int8() != 0
}

func (b *binReader) int32() int32 {
	p := b.fill(4)
	if p == nil {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(p))
}

func (b *binReader) int64() int64 {
	p := b.fill(8)
	if p == nil {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(p))
}

func (b *binReader) float64() float64 {
	p := b.fill(8)
	if p == nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(p))
}

// cstring reads a NUL-terminated string.
func (b *binReader) cstring() string {
	if b.err != nil {
		return ""
	}
	s, err := b.r.ReadBytes(0)
	if err != nil {
		b.err = err
		return ""
	}
	b.off += int64(len(s))
	return string(s[:len(s)-1])
}

// float32s fills dst from the stream in fixed-size chunks.
func (b *binReader) float32s(dst []float32) {
	if b.err != nil {
		return
	}
	const chunk = 1 << 16
	raw := make([]byte, 4*chunk)
	for off := 0; off < len(dst); off += chunk {
		n := min(chunk, len(dst)-off)
		if _, err := io.ReadFull(b.r, raw[:4*n]); err != nil {
			b.err = err
			return
		}
		for i := 0; i < n; i++ {
			dst[off+i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
		}
		b.off += int64(4 * n)
	}
}

// readFloat32s reads count values. On a stream of unknown length the result
// grows as data arrives, so a bogus count fails at EOF instead of allocating
// it up front.
func (b *binReader) readFloat32s(count int64) []float32 {
	if b.size >= 0 {
		out := make([]float32, count)
		b.float32s(out)
		return out
	}
	const step = 1 << 20
	var out []float32
	for int64(len(out)) < count && b.err == nil {
		n := int(min(step, count-int64(len(out))))
		out = append(out, make([]float32, n)...)
		b.float32s(out[len(out)-n:])
	}
	return out
}

type binWriter struct {
	w   *bufio.Writer
	buf [8]byte
	err error
}

func newBinWriter(w io.Writer) *binWriter {
	return &binWriter{w: bufio.NewWriter(w)}
}

func (b *binWriter) write(p []byte) {
	if b.err != nil {
		return
	}
	_, b.err = b.w.Write(p)
}

func (b *binWriter) int8(v int8) {
	b.buf[0] = byte(v)
	b.write(b.buf[:1])
}

func (b *binWriter) bool(v bool) {
	if v {
		b.int8(1)
		return
	}
	b.int8(0)
}

func (b *binWriter) int32(v int32) {
	binary.LittleEndian.PutUint32(b.buf[:4], uint32(v))
	b.write(b.buf[:4])
}

func (b *binWriter) int64(v int64) {
	binary.LittleEndian.PutUint64(b.buf[:8], uint64(v))
	b.write(b.buf[:8])
}

func (b *binWriter) float64(v float64) {
	binary.LittleEndian.PutUint64(b.buf[:8], math.Float64bits(v))
	b.write(b.buf[:8])
}

func (b *binWriter) cstring(s string) {
	b.write([]byte(s))
	b.int8(0)
}

func (b *binWriter) float32s(src []float32) {
	for _, v := range src {
		binary.LittleEndian.PutUint32(b.buf[:4], math.Float32bits(v))
		b.write(b.buf[:4])
	}
}

func (b *binWriter) flush() error {
	if b.err != nil {
		return b.err
	}
	return b.w.Flush()
}
