//go:build !unix

package tcp

func (c *Conn) readRaw(buf []byte) (int, error) {
	return c.readDeadline(buf)
}
