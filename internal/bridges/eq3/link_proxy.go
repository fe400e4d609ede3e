package eq3

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
)

// Proxy protocol verbs. Frames are single lines:
//
//	host  -> proxy: CONNECT <mac> | WRITE <handle> <hex> | DISCONNECT
//	proxy -> host:  OK | ERR <message> | NOTIFY <handle> <hex>
//
// Handles are hexadecimal. NOTIFY frames may arrive at any time.
const (
	verbConnect    = "CONNECT"
	verbWrite      = "WRITE"
	verbDisconnect = "DISCONNECT"
	verbOK         = "OK"
	verbErr        = "ERR"
	verbNotify     = "NOTIFY"

	defaultBaudRate  = 115200
	replyQueueSize   = 4
	maxProxyFrameLen = 512
)

// errProxyClosed is returned when the proxy connection ends mid-request.
var errProxyClosed = errors.New("proxy connection closed")

// FrameConn carries line frames to and from a BLE proxy.
type FrameConn interface {
	ReadFrame() (string, error)
	WriteFrame(frame string) error
	Close() error
}

// Dialer opens a FrameConn to a proxy.
type Dialer func(ctx context.Context) (FrameConn, error)

// ProxyLink reaches the thermostat through a BLE proxy (for example an
// ESP32 next to the radiator) that speaks the line protocol above over a
// serial port or a websocket.
type ProxyLink struct {
	*notifier

	cfg  LinkConfig
	dial Dialer

	// reqMu serialises request/reply exchanges.
	reqMu sync.Mutex

	mu        sync.Mutex
	conn      FrameConn
	replies   chan string
	done      chan struct{}
	connected bool
}

// Ensure ProxyLink implements Link.
var _ Link = (*ProxyLink)(nil)

// NewProxyLink creates a proxy link using dial to reach the proxy.
func NewProxyLink(cfg LinkConfig, dial Dialer, logger Logger) *ProxyLink {
	if logger == nil {
		logger = nopLogger{}
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	return &ProxyLink{
		notifier: newNotifier(cfg.Address, logger),
		cfg:      cfg,
		dial:     dial,
	}
}

// Connect opens the proxy connection and asks the proxy to connect to the
// device.
func (l *ProxyLink) Connect(ctx context.Context) error {
	if l.IsConnected() {
		return nil
	}
	backend := l.cfg.Backend
	if backend == "" {
		backend = "proxy"
	}
	return l.connectWithRetry(ctx, l.cfg.ConnectTimeout, backend, l.connectOnce)
}

func (l *ProxyLink) connectOnce(ctx context.Context) error {
	conn, err := l.dial(ctx)
	if err != nil {
		return err
	}

	replies := make(chan string, replyQueueSize)
	done := make(chan struct{})

	l.mu.Lock()
	l.conn = conn
	l.replies = replies
	l.done = done
	l.mu.Unlock()

	go l.receiveLoop(conn, replies, done)

	if err := l.request(ctx, verbConnect+" "+l.address); err != nil {
		l.closeConn()
		return err
	}

	l.mu.Lock()
	l.connected = true
	l.mu.Unlock()
	return nil
}

// receiveLoop reads frames until the connection fails or is closed.
func (l *ProxyLink) receiveLoop(conn FrameConn, replies chan<- string, done chan<- struct{}) {
	defer close(done)

	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			l.mu.Lock()
			wasConnected := l.connected && l.conn == conn
			if l.conn == conn {
				l.connected = false
			}
			l.mu.Unlock()
			if wasConnected {
				l.logger.Warn("proxy connection lost", "address", l.address, "error", err)
			}
			return
		}

		frame = strings.TrimSpace(frame)
		if frame == "" {
			continue
		}

		verb, rest, _ := strings.Cut(frame, " ")
		switch verb {
		case verbNotify:
			handle, payload, err := parseHandlePayload(rest)
			if err != nil {
				l.logger.Warn("invalid proxy notification", "address", l.address, "frame", frame, "error", err)
				continue
			}
			l.deliver(uint16(int(handle)-l.cfg.HandleOffset), payload)
		case verbOK, verbErr:
			select {
			case replies <- frame:
			default:
				l.logger.Warn("unexpected proxy reply", "address", l.address, "frame", frame)
			}
		default:
			l.logger.Debug("ignored proxy frame", "address", l.address, "frame", frame)
		}
	}
}

// request sends a frame and waits for OK or ERR.
func (l *ProxyLink) request(ctx context.Context, frame string) error {
	l.reqMu.Lock()
	defer l.reqMu.Unlock()

	l.mu.Lock()
	conn, replies, done := l.conn, l.replies, l.done
	l.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	// A reply that missed an earlier request's timeout must not answer this one.
	for drained := false; !drained; {
		select {
		case stale := <-replies:
			l.logger.Debug("discarding late proxy reply", "address", l.address, "frame", stale)
		default:
			drained = true
		}
	}

	if err := conn.WriteFrame(frame); err != nil {
		return fmt.Errorf("sending %q: %w", frame, err)
	}

	timer := time.NewTimer(defaultWriteTimeout)
	defer timer.Stop()

	select {
	case reply := <-replies:
		if verb, msg, _ := strings.Cut(reply, " "); verb == verbErr {
			return fmt.Errorf("proxy rejected %q: %s", frame, msg)
		}
		return nil
	case <-done:
		return errProxyClosed
	case <-timer.C:
		return fmt.Errorf("no reply to %q within %s", frame, defaultWriteTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect asks the proxy to drop the device and closes the connection.
func (l *ProxyLink) Disconnect() error {
	if !l.IsConnected() {
		l.closeConn()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultWriteTimeout)
	defer cancel()

	err := l.request(ctx, verbDisconnect)
	l.closeConn()
	if err != nil {
		return fmt.Errorf("%w: disconnecting: %w", ErrLinkFailed, err)
	}
	l.logger.Debug("disconnected", "address", l.address)
	return nil
}

func (l *ProxyLink) closeConn() {
	l.mu.Lock()
	conn, done := l.conn, l.done
	l.conn = nil
	l.connected = false
	l.mu.Unlock()

	if conn == nil {
		return
	}
	_ = conn.Close() //nolint:errcheck // best effort
	if done != nil {
		<-done
	}
}

// Write sends payload to handle through the proxy.
func (l *ProxyLink) Write(ctx context.Context, handle uint16, payload []byte) error {
	if !l.IsConnected() {
		return ErrNotConnected
	}

	l.clearQueue()
	wireHandle := int(handle) + l.cfg.HandleOffset
	l.logger.Debug("writing", "address", l.address, "handle", fmt.Sprintf("0x%03X", handle), "payload", fmt.Sprintf("%X", payload))

	frame := fmt.Sprintf("%s %04X %X", verbWrite, wireHandle, payload)
	if err := l.request(ctx, frame); err != nil {
		return fmt.Errorf("%w: write: %w", ErrLinkFailed, err)
	}
	l.recordWrite()
	return nil
}

// IsConnected reports whether the proxy holds a connection to the device.
func (l *ProxyLink) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

// Stats returns link counters.
func (l *ProxyLink) Stats() LinkStats {
	return l.stats(l.IsConnected())
}

// parseHandlePayload parses "<handle> <hex>".
func parseHandlePayload(s string) (uint16, []byte, error) {
	handleStr, hexStr, ok := strings.Cut(strings.TrimSpace(s), " ")
	if !ok {
		return 0, nil, fmt.Errorf("want \"<handle> <hex>\", got %q", s)
	}
	handle, err := strconv.ParseUint(handleStr, 16, 16)
	if err != nil {
		return 0, nil, fmt.Errorf("handle: %w", err)
	}
	payload, err := hex.DecodeString(strings.TrimSpace(hexStr))
	if err != nil {
		return 0, nil, fmt.Errorf("payload: %w", err)
	}
	return uint16(handle), payload, nil
}

// serialFrames carries frames over a serial port, one per line.
type serialFrames struct {
	port   serial.Port
	reader *bufio.Reader
	mu     sync.Mutex
}

func serialDialer(portName string, baud int) Dialer {
	return func(_ context.Context) (FrameConn, error) {
		if portName == "" {
			return nil, fmt.Errorf("%w: serial port not configured", ErrLinkFailed)
		}
		if baud <= 0 {
			baud = defaultBaudRate
		}
		port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", portName, err)
		}
		return &serialFrames{port: port, reader: bufio.NewReaderSize(port, maxProxyFrameLen)}, nil
	}
}

func (s *serialFrames) ReadFrame() (string, error) {
	return s.reader.ReadString('\n')
}

func (s *serialFrames) WriteFrame(frame string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.port.Write([]byte(frame + "\n"))
	return err
}

func (s *serialFrames) Close() error {
	return s.port.Close()
}

// wsFrames carries one frame per websocket text message.
type wsFrames struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func websocketDialer(url string) Dialer {
	return func(ctx context.Context) (FrameConn, error) {
		if url == "" {
			return nil, fmt.Errorf("%w: websocket url not configured", ErrLinkFailed)
		}
		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close() //nolint:errcheck // handshake body is unused
		}
		if err != nil {
			return nil, fmt.Errorf("dialing %s: %w", url, err)
		}
		conn.SetReadLimit(maxProxyFrameLen)
		return &wsFrames{conn: conn}, nil
	}
}

func (w *wsFrames) ReadFrame() (string, error) {
	_, data, err := w.conn.ReadMessage()
	return string(data), err
}

func (w *wsFrames) WriteFrame(frame string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

func (w *wsFrames) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.WriteControl(websocket.CloseMessage, //nolint:errcheck // peer may be gone
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return w.conn.Close()
}
