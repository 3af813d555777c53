// Package sockconn wraps an accepted device net.Conn to observe byte
// counts, timestamps, and (on platforms that support it) kernel TCP_INFO
// at open/close — the accept-side analogue of this codebase's original
// dial-side connection wrapper, now labelled by IMEI and session id instead
// of a generic dial target.
package sockconn

import (
	"net"
	"time"

	"github.com/satgroupe/fmb-gateway/pkg/tcpinfo"
)

const (
	Opened = 0
	Closed = 1
)

var StateMap = map[int]string{
	Opened: "open",
	Closed: "close",
}

// ReportFn is invoked once per open/close event, after the wrapped
// connection has gathered whatever tcp_info is available.
type ReportFn func(c *Conn, state int)

// Conn wraps an accepted net.Conn, tracking throughput/timing and exposing
// the IMEI once the session handshake has identified it (SetIMEI).
type Conn struct {
	net.Conn

	SessionID string
	IMEI      string

	reportStats ReportFn
	OpenedAt    int64
	ClosedAt    int64
	FirstRxAt   int64
	FirstTxAt   int64
	RxBytes     int64
	TxBytes     int64
	RxErr       error
	TxErr       error

	OpenedInfo *tcpinfo.Info
	ClosedInfo *tcpinfo.Info

	supportsTCPInfo bool
	infoErr         error
}

// Wrap wraps ncon, immediately gathering and reporting an Opened event when
// reportStatsFn is non-nil; with a nil reportStatsFn nothing is gathered.
func Wrap(ncon net.Conn, sessionID string, reportStatsFn ReportFn) *Conn {
	w := &Conn{
		Conn:            ncon,
		SessionID:       sessionID,
		reportStats:     reportStatsFn,
		OpenedAt:        time.Now().UnixNano(),
		supportsTCPInfo: tcpinfo.Supported(),
	}
	w.gatherAndReport(Opened)
	return w
}

// SetIMEI records the IMEI once the handshake has identified the device,
// so later reports (notably the Closed event) are labelled correctly.
func (w *Conn) SetIMEI(imei string) { w.IMEI = imei }

func (w *Conn) gatherAndReport(state int) {
	if w.reportStats == nil {
		return
	}
	defer w.reportStats(w, state)

	if !w.supportsTCPInfo || w.infoErr != nil {
		return
	}

	tcpConn, ok := w.Conn.(*net.TCPConn)
	if !ok {
		return
	}

	rawConn, err := tcpConn.SyscallConn()
	if err != nil {
		w.infoErr = err
		return
	}

	var sysInfo *tcpinfo.SysInfo
	if err := rawConn.Control(func(fd uintptr) {
		sysInfo, err = tcpinfo.GetTCPInfo(fd)
	}); err != nil {
		w.infoErr = err
		return
	}
	if err != nil {
		w.infoErr = err
		return
	}
	info := sysInfo.ToInfo()

	if state == Opened {
		w.OpenedInfo = info
	} else {
		w.ClosedInfo = info
	}
}

// Close reports a Closed event (with a final tcp_info snapshot, where
// supported) before closing the underlying connection.
func (w *Conn) Close() error {
	w.ClosedAt = time.Now().UnixNano()
	w.gatherAndReport(Closed)
	return w.Conn.Close()
}

func (w *Conn) Read(b []byte) (int, error) {
	n, err := w.Conn.Read(b)
	if err == nil && n > 0 {
		if w.FirstRxAt == 0 {
			w.FirstRxAt = time.Now().UnixNano()
		}
	}
	w.RxBytes += int64(n)
	if netErr, ok := err.(net.Error); ok && !netErr.Timeout() {
		w.RxErr = err
	}
	return n, err
}

func (w *Conn) Write(b []byte) (int, error) {
	n, err := w.Conn.Write(b)
	if err == nil && n > 0 {
		if w.FirstTxAt == 0 {
			w.FirstTxAt = time.Now().UnixNano()
		}
	}
	w.TxBytes += int64(n)
	if netErr, ok := err.(net.Error); ok && !netErr.Timeout() {
		w.TxErr = err
	}
	return n, err
}
