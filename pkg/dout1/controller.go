// Package dout1 implements the per-device DOUT1 auto-control policy: a
// state machine that watches the DOUT1 digital-output IO signal across
// time and issues setdigout commands with a duration timer, independent of
// any particular transport or storage.
package dout1

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/satgroupe/fmb-gateway/pkg/model"
	"github.com/satgroupe/fmb-gateway/pkg/repository"
)

// Defaults per spec §4.5.
const (
	DefaultTimeout12H         = 12 * time.Hour
	DefaultActivationDuration = 4000 * time.Second
)

// DefaultDout1IOID is the device-family-wide IO id carrying the DOUT1 line.
const DefaultDout1IOID uint16 = 179

// CommandSender issues a textual command on the open device socket and
// reports whether the device confirmed it (Codec 12 "OK"). It is the
// session handler's codec12 send/wait path, injected so the controller has
// no transport dependency of its own.
type CommandSender func(ctx context.Context, command string) (ok bool)

// Controller runs the DOUT1 policy. One Controller is shared by every
// session the Handler serves; it keeps no per-device state in memory and
// reads and writes each IMEI's state through Store on every Observe (the
// device holds at most one connection at a time, so policy evaluation is
// naturally serialized per IMEI by the session boundary — spec §5).
type Controller struct {
	Store          repository.Store
	Timeout12H     time.Duration
	ActivationTime time.Duration
	IOID           uint16
	Transitions    prometheus.Counter // optional; nil disables the metric
}

// New returns a Controller configured with spec defaults; zero-value
// overrides on the returned Controller are safe to set before first use.
func New(store repository.Store) *Controller {
	return &Controller{
		Store:          store,
		Timeout12H:     DefaultTimeout12H,
		ActivationTime: DefaultActivationDuration,
		IOID:           DefaultDout1IOID,
	}
}

// Observe feeds one (timestamp, DOUT1 value) sample for imei through the
// policy, issuing at most one command via send and persisting the updated
// state. Observations within a single uplink batch must be applied in
// received order, one call per record, using only the last DOUT1 value in
// that record (model.Record.ValueByID already resolves duplicates that
// way).
func (c *Controller) Observe(ctx context.Context, imei string, t time.Time, v uint64, send CommandSender) error {
	state, err := c.Store.GetDout1State(ctx, imei)
	if err != nil {
		return fmt.Errorf("dout1: get state for %s: %w", imei, err)
	}
	if state == nil {
		state = &model.Dout1State{IMEI: imei}
		if v == 0 {
			zt := t
			state.LastZeroTime = &zt
		}
		return c.persist(ctx, *state)
	}

	next := *state

	// 1. Expiry check.
	if next.Active && next.DeactivateTime != nil && !t.Before(*next.DeactivateTime) {
		if send(ctx, "setdigout 0") {
			next.Active = false
			next.DeactivateTime = nil
			c.logTransition(imei, "deactivate", t)
		}
		// On failure, state is left as-is; retried on the next observation.
	}

	// 2. Zero-tracking.
	if v == 0 {
		if next.LastZeroTime == nil {
			zt := t
			next.LastZeroTime = &zt
		} else if !next.Active && t.Sub(*next.LastZeroTime) > c.Timeout12H {
			if send(ctx, "setdigout 1") {
				next.Active = true
				dt := t.Add(c.ActivationTime)
				next.DeactivateTime = &dt
				c.logTransition(imei, "activate", t)
			}
			// LastZeroTime is intentionally left untouched on both success
			// and failure.
		}
	} else {
		// 3. Nonzero reset.
		next.LastZeroTime = nil
	}

	return c.persist(ctx, next)
}

func (c *Controller) persist(ctx context.Context, state model.Dout1State) error {
	if err := c.Store.UpsertDout1State(ctx, state); err != nil {
		return fmt.Errorf("dout1: persist state for %s: %w", state.IMEI, err)
	}
	return nil
}

func (c *Controller) logTransition(imei, action string, t time.Time) {
	logrus.WithFields(logrus.Fields{
		"imei":   imei,
		"action": action,
		"at":     t.Format(model.TimeLayout),
	}).Info("dout1: commanded transition")
	if c.Transitions != nil {
		c.Transitions.Inc()
	}
}
