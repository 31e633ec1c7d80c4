package tweet

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Send hands url to the bridge at addr and waits for its reply.
func Send(ctx context.Context, addr, url string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect bridge: %w", err)
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", url); err != nil {
		return fmt.Errorf("send url: %w", err)
	}
	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && reply == "" {
		return fmt.Errorf("read bridge reply: %w", err)
	}
	reply = strings.TrimSpace(reply)
	switch {
	case reply == "ok":
		return nil
	case strings.HasPrefix(reply, "error: "):
		return errors.New("bridge: " + strings.TrimPrefix(reply, "error: "))
	default:
		return fmt.Errorf("bridge: unexpected reply %q", reply)
	}
}
