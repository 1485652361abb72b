package mailbox

import (
	"context"
	"net"
	"time"
)

// ioTimeout bounds each read and write on an open session. The
// protocol library sets no deadlines of its own, so without a rolling
// deadline a server that stalls after the handshake would hang every
// command wait indefinitely.
const ioTimeout = 30 * time.Second

// deadlineConn wraps a connection with a rolling per-I/O deadline and
// observes the operation context: a context deadline sooner than the
// rolling one wins, and a done context fails the next I/O immediately.
type deadlineConn struct {
	net.Conn
	ctx     context.Context
	timeout time.Duration
}

func newDeadlineConn(ctx context.Context, conn net.Conn, timeout time.Duration) *deadlineConn {
	if ctx == nil {
		ctx = context.Background()
	}
	return &deadlineConn{Conn: conn, ctx: ctx, timeout: timeout}
}

// deadline computes the next I/O deadline.
func (c *deadlineConn) deadline() time.Time {
	d := time.Now().Add(c.timeout)
	if ctxDeadline, ok := c.ctx.Deadline(); ok && ctxDeadline.Before(d) {
		d = ctxDeadline
	}
	return d
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	if err := c.Conn.SetReadDeadline(c.deadline()); err != nil {
		return 0, err
	}
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	if err := c.Conn.SetWriteDeadline(c.deadline()); err != nil {
		return 0, err
	}
	return c.Conn.Write(b)
}
