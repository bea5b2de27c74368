package wire

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// dialTimeout bounds the whole request/response exchange; an unresponsive
// node is treated as dead by callers, not waited on.
const dialTimeout = 10 * time.Second

// Send delivers the request to addr and waits for the response. Connection
// and read deadlines come from ctx, bounded by dialTimeout.
func Send(ctx context.Context, addr string, req Request) (Response, error) {
	deadline := time.Now().Add(dialTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	var dialer net.Dialer
	dialer.Deadline = deadline
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Response{}, fmt.Errorf("wire: dial %s: %w", addr, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(deadline)

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("wire: send to %s: %w", addr, err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("wire: read from %s: %w", addr, err)
	}
	return resp, nil
}
