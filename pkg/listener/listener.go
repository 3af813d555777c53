// Package listener binds the gateway's TCP port and dispatches one session
// handler goroutine per accepted connection, per §4.7 and the concurrency
// model of §5.
package listener

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/satgroupe/fmb-gateway/pkg/metrics"
	"github.com/satgroupe/fmb-gateway/pkg/session"
	"github.com/satgroupe/fmb-gateway/pkg/sockconn"
)

// ShutdownGrace bounds how long Run waits for in-flight sessions to finish
// their current frame after ctx is cancelled before returning anyway; a
// worker mid-frame is abandoned past this point (§5's "forcibly aborted
// after a grace period").
const ShutdownGrace = 30 * time.Second

// Listener accepts device connections on Addr and runs Handler.Handle for
// each, one goroutine per connection.
type Listener struct {
	Addr      string
	Handler   *session.Handler
	Collector *metrics.TCPInfoCollector // optional; nil disables per-connection TCP_INFO export
}

// New builds a Listener bound to addr.
func New(addr string, handler *session.Handler, collector *metrics.TCPInfoCollector) *Listener {
	return &Listener{Addr: addr, Handler: handler, Collector: collector}
}

// Run binds Addr and accepts connections until ctx is cancelled, blocking
// until every in-flight session finishes or ShutdownGrace elapses,
// whichever comes first.
func (l *Listener) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.Addr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	logrus.WithField("addr", l.Addr).Info("listener: accepting connections")

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			logrus.WithError(err).Warn("listener: accept failed")
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			l.serve(ctx, conn)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(ShutdownGrace):
		logrus.Warn("listener: shutdown grace period elapsed with sessions still in flight")
	}
	return nil
}

func (l *Listener) serve(ctx context.Context, raw net.Conn) {
	sessionID := xid.New().String()

	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	wrapped := sockconn.Wrap(raw, sessionID, l.reportConnStats)
	if l.Collector != nil {
		// Labelled by session id only: the IMEI isn't known until the
		// handshake completes, after which the collector's label set for
		// this connection can no longer change.
		l.Collector.Add(wrapped, []string{sessionID})
		defer l.Collector.Remove(wrapped)
	}

	l.Handler.Handle(ctx, wrapped)
}

func (l *Listener) reportConnStats(c *sockconn.Conn, state int) {
	logrus.WithFields(logrus.Fields{
		"session_id": c.SessionID,
		"imei":       c.IMEI,
		"event":      sockconn.StateMap[state],
		"rx_bytes":   c.RxBytes,
		"tx_bytes":   c.TxBytes,
	}).Debug("listener: connection stats")
}
