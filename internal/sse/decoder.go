// Package sse decodes text/event-stream bodies into discrete data frames.
// The transport delivers opaque chunks of arbitrary size, not aligned to line
// boundaries, so the decoder buffers the trailing partial line across feeds.
package sse

import (
	"io"
	"iter"
	"strings"
)

// dataPrefix is the only line class this layer yields. Blank separators,
// comments and "event:"/"id:"/"retry:" fields are discarded; providers
// discriminate events by the "type" field inside the JSON payload.
const dataPrefix = "data: "

// readBufferSize is the chunk size used by Frames when pulling from a body.
const readBufferSize = 32 * 1024

// Decoder turns an incrementally delivered byte stream into complete frame
// payloads. The zero value is ready to use.
type Decoder struct {
	buf []byte
}

// Feed appends a chunk and returns the payloads of every line completed by
// it. A line is complete only once its terminating newline arrives; content
// still buffered when the stream ends is intentionally dropped, since an
// unterminated frame is meaningless.
func (d *Decoder) Feed(chunk []byte) []string {
	d.buf = append(d.buf, chunk...)

	var payloads []string
	for {
		idx := -1
		for i, b := range d.buf {
			if b == '\n' {
				idx = i
				break
			}
		}
		if idx == -1 {
			return payloads
		}

		line := string(d.buf[:idx])
		d.buf = d.buf[idx+1:]
		line = strings.TrimSuffix(line, "\r")

		if strings.HasPrefix(line, dataPrefix) {
			payloads = append(payloads, line[len(dataPrefix):])
		}
	}
}

// Frames reads the body to completion and yields one payload per frame. A
// read failure is yielded as the final element's error; io.EOF terminates
// the sequence silently. The caller owns closing the body.
func Frames(body io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		decoder := &Decoder{}
		chunk := make([]byte, readBufferSize)

		for {
			n, err := body.Read(chunk)
			if n > 0 {
				for _, payload := range decoder.Feed(chunk[:n]) {
					if !yield(payload, nil) {
						return
					}
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
		}
	}
}
