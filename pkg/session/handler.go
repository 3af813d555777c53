// Package session orchestrates one accepted device connection end to end:
// IMEI handshake, queued-command drain, uplink ingest, and acknowledgement,
// in that fixed order (§9's drain-before-ingest decision).
package session

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"strings"
	"time"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/satgroupe/fmb-gateway/pkg/codec12"
	"github.com/satgroupe/fmb-gateway/pkg/codec8e"
	"github.com/satgroupe/fmb-gateway/pkg/dout1"
	"github.com/satgroupe/fmb-gateway/pkg/framer"
	"github.com/satgroupe/fmb-gateway/pkg/metrics"
	"github.com/satgroupe/fmb-gateway/pkg/model"
	"github.com/satgroupe/fmb-gateway/pkg/repository"
	"github.com/satgroupe/fmb-gateway/pkg/sockconn"
)

const maxIMEILen = 17

// Handler runs one session per connection. A single Handler is shared
// across every connection the listener accepts; all per-connection state
// lives on the stack of Handle's call.
type Handler struct {
	Store           repository.Store
	Dout1           *dout1.Controller
	ResponseTimeout time.Duration
	ReadTimeout     time.Duration
}

// New builds a Handler with the given collaborators and timeouts.
func New(store repository.Store, controller *dout1.Controller, responseTimeout, readTimeout time.Duration) *Handler {
	return &Handler{
		Store:           store,
		Dout1:           controller,
		ResponseTimeout: responseTimeout,
		ReadTimeout:     readTimeout,
	}
}

// Handle runs the full handshake/drain/ingest/ack sequence on conn, closing
// it before returning. It never panics on protocol errors: every failure
// path logs and returns, leaving the caller free to move on to the next
// connection.
func (h *Handler) Handle(ctx context.Context, conn *sockconn.Conn) {
	defer conn.Close()

	log := logrus.WithField("session_id", conn.SessionID)

	_ = conn.SetReadDeadline(time.Now().Add(h.ReadTimeout))
	raw, err := framer.ReadIMEI(conn)
	if err != nil {
		log.WithError(err).Warn("session: IMEI handshake failed")
		return
	}

	imei, ok := normalizeIMEI(raw)
	if !ok {
		log.WithField("imei_raw", raw).Warn("session: rejected malformed IMEI")
		_, _ = conn.Write([]byte{0x00})
		return
	}
	conn.SetIMEI(imei)
	log = log.WithField("imei", imei)

	if _, err := conn.Write([]byte{0x01}); err != nil {
		log.WithError(err).Warn("session: writing IMEI handshake ack")
		return
	}

	h.drainCommands(ctx, conn, imei, log)

	persisted, err := h.ingest(ctx, conn, imei, log)
	if err != nil {
		writeAck(conn, 0, log)
		return
	}
	writeAck(conn, persisted, log)
}

// normalizeIMEI trims trailing NULs and validates length [1,17] and
// all-ASCII content per §4.6.
func normalizeIMEI(raw string) (string, bool) {
	trimmed := strings.TrimRight(raw, "\x00")
	if len(trimmed) < 1 || len(trimmed) > maxIMEILen {
		return trimmed, false
	}
	for _, r := range trimmed {
		if r > unicode.MaxASCII {
			return trimmed, false
		}
	}
	return trimmed, true
}

// drainCommands sends every command queued for imei before ingest starts,
// marking each completed or failed. A failed command never aborts the
// session (§7).
func (h *Handler) drainCommands(ctx context.Context, conn *sockconn.Conn, imei string, log *logrus.Entry) {
	pending, err := h.Store.ListPendingCommands(ctx, imei)
	if err != nil {
		log.WithError(err).Error("session: listing pending commands")
		return
	}

	for _, cmd := range pending {
		ok := h.sendCommand(ctx, conn, cmd.Command, log)

		status := model.CommandFailed
		outcome := "failed"
		if ok {
			status = model.CommandCompleted
			outcome = "completed"
		}
		metrics.CommandsDrained.WithLabelValues(outcome).Inc()

		if err := h.Store.MarkCommand(ctx, cmd.ID, status); err != nil {
			log.WithError(err).WithField("command_id", cmd.ID).Error("session: marking command status")
		}
	}
}

// sendCommand issues command via Codec 12 and waits up to ResponseTimeout
// for a response, reporting success per §4.3's is_ok predicate.
func (h *Handler) sendCommand(_ context.Context, conn *sockconn.Conn, command string, log *logrus.Entry) bool {
	if err := framer.WriteFrame(conn, codec12.BuildRequest(command)); err != nil {
		log.WithError(err).WithField("command", command).Warn("session: sending command")
		return false
	}

	_ = conn.SetReadDeadline(time.Now().Add(h.ResponseTimeout))
	data, err := framer.ReadFrame(conn)
	if err != nil {
		log.WithError(err).WithField("command", command).Warn("session: command response timed out or malformed")
		return false
	}

	resp, err := codec12.ParseResponse(data)
	if err != nil {
		log.WithError(err).WithField("command", command).Warn("session: malformed command response")
		return false
	}
	return resp.OK
}

// commandSender adapts sendCommand to the signature the DOUT1 controller
// expects, so inline setdigout commands share the same transport path as
// queue-drain commands.
func (h *Handler) commandSender(conn *sockconn.Conn, log *logrus.Entry) dout1.CommandSender {
	return func(ctx context.Context, command string) bool {
		return h.sendCommand(ctx, conn, command, log)
	}
}

// ingest reads exactly one Codec 8E frame, persists every record, and feeds
// the DOUT1 controller. It returns the count of records the Repository
// confirmed persisted (what the ack reports per §7's RepositoryError rule)
// and a non-nil error only for frame-structural failures (§7), which abort
// the session with a zero-record ack.
func (h *Handler) ingest(ctx context.Context, conn *sockconn.Conn, imei string, log *logrus.Entry) (int, error) {
	_ = conn.SetReadDeadline(time.Now().Add(h.ReadTimeout))
	data, err := framer.ReadFrame(conn)
	if err != nil {
		if fe, ok := err.(*framer.Error); ok {
			metrics.FramesRejected.WithLabelValues(string(fe.Kind)).Inc()
		}
		log.WithError(err).Error("session: uplink frame read failed")
		return 0, err
	}

	records, err := codec8e.Decode(data)
	if err != nil {
		if de, ok := err.(*codec8e.Error); ok {
			metrics.FramesRejected.WithLabelValues(string(de.Kind)).Inc()
		}
		log.WithError(err).WithField("hexdump", hex.EncodeToString(data)).Error("session: decoding uplink frame")
		return 0, err
	}

	send := h.commandSender(conn, log)
	persisted := 0

	for _, rec := range records {
		modelRec := toModelRecord(rec)
		if rec.BadTimestamp {
			log.WithField("imei", imei).Warn("session: record had an unparseable timestamp, substituted wall-clock")
		}

		if err := h.Store.InsertGPS(ctx, imei, modelRec); err != nil {
			log.WithError(err).Error("session: persisting GPS row")
			continue
		}
		persisted++
		metrics.RecordsIngested.Inc()

		for _, io := range rec.IOs {
			if err := h.Store.InsertIO(ctx, imei, modelRec.Timestamp, io.IOID, io.Value); err != nil {
				log.WithError(err).Error("session: persisting IO row")
			}
		}

		if v, ok := modelRec.ValueByID(h.Dout1.IOID); ok {
			if err := h.Dout1.Observe(ctx, imei, modelRec.Timestamp, v, send); err != nil {
				log.WithError(err).Error("session: DOUT1 policy observation failed")
			}
		}
	}

	return persisted, nil
}

func toModelRecord(rec codec8e.Record) model.Record {
	ios := make([]model.IoPoint, len(rec.IOs))
	for i, io := range rec.IOs {
		ios[i] = model.IoPoint{IOID: io.IOID, Value: io.Value}
	}
	return model.Record{
		Timestamp:  rec.Timestamp,
		Priority:   rec.Priority,
		Longitude:  rec.Longitude,
		Latitude:   rec.Latitude,
		Altitude:   rec.Altitude,
		Angle:      rec.Angle,
		Satellites: rec.Satellites,
		Speed:      rec.Speed,
		EventIOID:  rec.EventIOID,
		IOs:        ios,
	}
}

func writeAck(conn *sockconn.Conn, count int, log *logrus.Entry) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(count))
	if _, err := conn.Write(buf[:]); err != nil {
		log.WithError(err).Warn("session: writing acknowledgement")
	}
}
