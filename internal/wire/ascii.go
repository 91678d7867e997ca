package wire

import "io"

// crlfWriter rewrites bare LF as CRLF on the way to the network (TYPE A upload).
// Existing CRLF pairs pass through unchanged.
type crlfWriter struct {
	w      io.Writer
	prevCR bool
}

func (cw *crlfWriter) Write(p []byte) (int, error) {
	buf := make([]byte, 0, len(p)+len(p)/16+1)
	for _, b := range p {
		if b == '\n' && !cw.prevCR {
			buf = append(buf, '\r')
		}
		buf = append(buf, b)
		cw.prevCR = b == '\r'
	}
	if _, err := cw.w.Write(buf); err != nil {
		return 0, err
	}
	return len(p), nil
}

// lfWriter rewrites CRLF as LF on the way to local storage (TYPE A download).
// A CR at the end of a chunk is held back until the next byte is known;
// Flush emits it at end of stream.
type lfWriter struct {
	w         io.Writer
	pendingCR bool
}

func (lw *lfWriter) Write(p []byte) (int, error) {
	buf := make([]byte, 0, len(p)+1)
	for _, b := range p {
		if lw.pendingCR {
			lw.pendingCR = false
			if b != '\n' {
				buf = append(buf, '\r')
			}
		}
		if b == '\r' {
			lw.pendingCR = true
			continue
		}
		buf = append(buf, b)
	}
	if _, err := lw.w.Write(buf); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (lw *lfWriter) Flush() error {
	if !lw.pendingCR {
		return nil
	}
	lw.pendingCR = false
	_, err := lw.w.Write([]byte{'\r'})
	return err
}
