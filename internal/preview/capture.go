package preview

import "bytes"

// LineCapture: io.Writer, который запоминает байты до maxLines-го перевода строки
// включительно, но не больше maxBytes, и молча отбрасывает всё остальное.
// Позволяет строить превью, не декодируя весь файл.
type LineCapture struct {
	maxLines int
	maxBytes int
	lines    int
	buf      bytes.Buffer
}

// NewLineCapture создаёт буфер на первые maxLines строк и не более maxBytes байт.
// Неположительный лимит не ограничивает.
func NewLineCapture(maxLines, maxBytes int) *LineCapture {
	return &LineCapture{maxLines: maxLines, maxBytes: maxBytes}
}

func (c *LineCapture) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 && !c.full() {
		if room := c.room(); room >= 0 && len(p) > room {
			p = p[:room]
		}
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			c.buf.Write(p)
			break
		}
		c.buf.Write(p[:i+1])
		c.lines++
		p = p[i+1:]
	}
	return n, nil
}

// room возвращает, сколько байт ещё влезет, или -1 без ограничения.
func (c *LineCapture) room() int {
	if c.maxBytes <= 0 {
		return -1
	}
	return c.maxBytes - c.buf.Len()
}

func (c *LineCapture) full() bool {
	if c.maxBytes > 0 && c.buf.Len() >= c.maxBytes {
		return true
	}
	return c.maxLines > 0 && c.lines >= c.maxLines
}

// String возвращает захваченный префикс как текст.
func (c *LineCapture) String() string {
	return c.buf.String()
}
