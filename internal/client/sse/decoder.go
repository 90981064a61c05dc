package sse

import (
	"errors"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// FrameDelimiter separates events in the stream.
const FrameDelimiter = "\n\n"

// Decoder turns an arbitrarily chunked byte stream into SSE frames.
//
// It keeps two pieces of state between calls: the trailing bytes of a UTF-8
// sequence that was split by a chunk boundary, and the decoded text of a frame
// whose delimiter has not arrived yet. Feeding the same bytes in any chunking
// therefore yields the same frames.
type Decoder struct {
	utf8    transform.Transformer
	pending []byte
	text    string
	scratch []byte
}

// NewDecoder returns a decoder ready for the first chunk.
func NewDecoder() *Decoder {
	return &Decoder{
		utf8:    unicode.UTF8.NewDecoder(),
		scratch: make([]byte, 4096),
	}
}

// Feed decodes chunk and returns every frame it completed, in order.
func (d *Decoder) Feed(chunk []byte) []string {
	d.decode(chunk, false)
	return d.frames()
}

// Flush ends the stream. The remaining undelimited text, if any, is returned
// as a final frame and the decoder is reset for reuse.
func (d *Decoder) Flush() []string {
	d.decode(nil, true)
	frames := d.frames()
	if d.text != "" {
		frames = append(frames, d.text)
	}
	d.text = ""
	d.pending = nil
	d.utf8.Reset()
	return frames
}

func (d *Decoder) decode(chunk []byte, atEOF bool) {
	src := chunk
	if len(d.pending) > 0 {
		src = append(d.pending, chunk...)
	}

	var sb strings.Builder
	sb.WriteString(d.text)
	for {
		nDst, nSrc, err := d.utf8.Transform(d.scratch, src, atEOF)
		sb.Write(d.scratch[:nDst])
		src = src[nSrc:]
		if errors.Is(err, transform.ErrShortDst) {
			continue
		}
		// ErrShortSrc leaves an incomplete rune in src; it is retried with
		// the next chunk.
		break
	}

	d.pending = append([]byte(nil), src...)
	d.text = sb.String()
}

func (d *Decoder) frames() []string {
	var out []string
	for {
		idx := strings.Index(d.text, FrameDelimiter)
		if idx < 0 {
			return out
		}
		if frame := d.text[:idx]; frame != "" {
			out = append(out, frame)
		}
		d.text = d.text[idx+len(FrameDelimiter):]
	}
}
