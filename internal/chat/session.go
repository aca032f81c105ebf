package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/andy6609/roomchat/internal/transport"
	"github.com/andy6609/roomchat/internal/wire"
)

const defaultDrainTimeout = 5 * time.Second

// SessionOptions tunes one connection handler.
type SessionOptions struct {
	OutboundBuffer int
	RateBurst      int
	RateInterval   time.Duration
	// DrainTimeout bounds how long teardown waits for queued replies to
	// reach a peer that stopped reading.
	DrainTimeout time.Duration
}

// HandleSession runs the receive loop for one connection: read a frame,
// decode it, dispatch it, until the peer goes away, the user disconnects or
// ctx is cancelled. The user is always released from the registries before
// it returns, and conn is closed.
func HandleSession(ctx context.Context, conn transport.Conn, d *Dispatcher, opts SessionOptions, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = defaultDrainTimeout
	}
	u := NewUser(uuid.NewString(), opts.OutboundBuffer)
	log := logger.With("session", u.ID, "remote", conn.RemoteAddr())

	ConnectedClients.Inc()
	defer ConnectedClients.Dec()

	writerDone := StartOutboundWriter(conn, u.Outbound(), log)
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	defer func() {
		d.Release(u)
		u.close()
		drain := time.NewTimer(opts.DrainTimeout)
		select {
		case <-writerDone:
		case <-drain.C:
			log.Warn("peer not reading, dropping queued replies")
			_ = conn.Close()
			<-writerDone
		}
		drain.Stop()
		_ = conn.Close()
		log.Info("session closed", "login", u.Login())
	}()

	log.Info("session opened")
	limiter := newRateLimiter(opts.RateBurst, opts.RateInterval, time.Now())

	for u.State() != StateDisconnected {
		line, err := conn.ReadFrame()
		if err != nil {
			if wire.IsFrameError(err) {
				RejectionsTotal.WithLabelValues(ClassProtocol.String()).Inc()
				log.Debug("frame dropped", "error", err)
				continue
			}
			if !errors.Is(err, io.EOF) && !transport.IsExpectedCloseError(err) && ctx.Err() == nil {
				log.Warn("read failed", "error", err)
			}
			return
		}
		if !limiter.allow(time.Now()) {
			RejectionsTotal.WithLabelValues(ClassProtocol.String()).Inc()
			log.Debug("frame dropped", "error", ErrRateLimited)
			continue
		}
		_ = d.Handle(u, wire.Decode(line))
	}
}
