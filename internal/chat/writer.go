package chat

import (
	"log/slog"

	"github.com/andy6609/roomchat/internal/transport"
	"github.com/andy6609/roomchat/internal/wire"
)

// StartOutboundWriter drains out onto conn until out is closed. The returned
// channel is closed when the writer has exited.
func StartOutboundWriter(conn transport.Conn, out <-chan wire.Message, logger *slog.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range out {
			if err := conn.WriteFrame(msg); err != nil {
				if wire.IsFrameError(err) {
					logger.Warn("outbound frame dropped", "type", string(msg.Type), "error", err)
					continue
				}
				if !transport.IsExpectedCloseError(err) {
					logger.Warn("write failed", "error", err)
				}
				// Unblock the reader; the session tears itself down.
				_ = conn.Close()
				for range out {
				}
				return
			}
		}
	}()
	return done
}
