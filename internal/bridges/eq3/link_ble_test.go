//go:build linux

package eq3

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tinygo.org/x/bluetooth"
)

type fakeCharacteristic struct {
	mu       sync.Mutex
	writes   [][]byte
	callback func(buf []byte)
	writeErr error
}

func (c *fakeCharacteristic) WriteWithoutResponse(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	c.writes = append(c.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (c *fakeCharacteristic) EnableNotifications(callback func(buf []byte)) error {
	c.mu.Lock()
	c.callback = callback
	c.mu.Unlock()
	return nil
}

func (c *fakeCharacteristic) notify(buf []byte) {
	c.mu.Lock()
	cb := c.callback
	c.mu.Unlock()
	cb(buf)
}

type fakePeer struct {
	write, notify *fakeCharacteristic
	charErr       error

	mu           sync.Mutex
	disconnected int
}

func (p *fakePeer) Characteristics() (bleCharacteristic, bleCharacteristic, error) {
	if p.charErr != nil {
		return nil, nil, p.charErr
	}
	return p.write, p.notify, nil
}

func (p *fakePeer) Disconnect() error {
	p.mu.Lock()
	p.disconnected++
	p.mu.Unlock()
	return nil
}

func newTestBLELink(t *testing.T, peer *fakePeer) (*BLELink, *int) {
	t.Helper()
	dials := 0
	l := &BLELink{
		notifier: newNotifier("00:1A:22:0C:3D:4E", nopLogger{}),
		cfg:      LinkConfig{Address: "00:1A:22:0C:3D:4E", ConnectTimeout: time.Second},
		enable:   func() error { return nil },
		dial: func(bluetooth.Address) (blePeer, error) {
			dials++
			return peer, nil
		},
	}
	return l, &dials
}

func newFakePeer() *fakePeer {
	return &fakePeer{write: &fakeCharacteristic{}, notify: &fakeCharacteristic{}}
}

func TestBLELink_WriteAndNotify(t *testing.T) {
	peer := newFakePeer()
	link, _ := newTestBLELink(t, peer)

	var sunk []byte
	link.SetNotificationSink(NotifyHandle, func(handle uint16, payload []byte) {
		if handle != NotifyHandle {
			t.Errorf("sink handle = 0x%03X, want 0x%03X", handle, NotifyHandle)
		}
		sunk = payload
	})

	ctx := context.Background()
	if err := link.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !link.IsConnected() {
		t.Fatal("IsConnected() = false after Connect()")
	}

	if err := link.Write(ctx, WriteHandle, []byte{0x45, 0x01}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if len(peer.write.writes) != 1 || !bytes.Equal(peer.write.writes[0], []byte{0x45, 0x01}) {
		t.Errorf("writes = %X, want [4501]", peer.write.writes)
	}

	status := []byte{0x02, 0x01, 0x08, 0x00, 0x04, 0x28}
	peer.notify.notify(status)

	got, ok := link.AwaitNotification(ctx, time.Second)
	if !ok || !bytes.Equal(got, status) {
		t.Errorf("AwaitNotification() = %X, %v, want %X, true", got, ok, status)
	}
	if !bytes.Equal(sunk, status) {
		t.Errorf("sink payload = %X, want %X", sunk, status)
	}

	stats := link.Stats()
	if stats.WritesTotal != 1 || stats.NotificationsTotal != 1 || !stats.Connected {
		t.Errorf("Stats() = %+v", stats)
	}

	if err := link.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if link.IsConnected() || peer.disconnected != 1 {
		t.Errorf("after Disconnect: connected=%v disconnects=%d", link.IsConnected(), peer.disconnected)
	}
}

func TestBLELink_WriteErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("not connected", func(t *testing.T) {
		link, _ := newTestBLELink(t, newFakePeer())
		if err := link.Write(ctx, WriteHandle, []byte{0x00}); !errors.Is(err, ErrNotConnected) {
			t.Errorf("Write() error = %v, want ErrNotConnected", err)
		}
	})

	t.Run("notify handle", func(t *testing.T) {
		link, _ := newTestBLELink(t, newFakePeer())
		if err := link.Connect(ctx); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		if err := link.Write(ctx, NotifyHandle, []byte{0x00}); !errors.Is(err, ErrLinkFailed) {
			t.Errorf("Write() error = %v, want ErrLinkFailed", err)
		}
	})

	t.Run("characteristic failure", func(t *testing.T) {
		peer := newFakePeer()
		peer.write.writeErr = errors.New("att error")
		link, _ := newTestBLELink(t, peer)
		if err := link.Connect(ctx); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		if err := link.Write(ctx, WriteHandle, []byte{0x00}); !errors.Is(err, ErrLinkFailed) {
			t.Errorf("Write() error = %v, want ErrLinkFailed", err)
		}
		if link.Stats().WritesTotal != 0 {
			t.Error("failed write counted")
		}
	})
}

func TestBLELink_ConnectRetriesOnce(t *testing.T) {
	peer := newFakePeer()
	peer.charErr = errors.New("service not found")
	link, dials := newTestBLELink(t, peer)

	err := link.Connect(context.Background())
	if !errors.Is(err, ErrLinkFailed) {
		t.Fatalf("Connect() error = %v, want ErrLinkFailed", err)
	}
	if *dials != 2 {
		t.Errorf("dials = %d, want 2", *dials)
	}
	if peer.disconnected != 2 {
		t.Errorf("disconnects = %d, want 2 (one per failed attempt)", peer.disconnected)
	}
	if link.IsConnected() {
		t.Error("IsConnected() = true after failed Connect()")
	}
}

func TestBLELink_EnableFailure(t *testing.T) {
	link, dials := newTestBLELink(t, newFakePeer())
	link.enable = func() error { return errors.New("no adapter") }

	if err := link.Connect(context.Background()); !errors.Is(err, ErrLinkFailed) {
		t.Fatalf("Connect() error = %v, want ErrLinkFailed", err)
	}
	if *dials != 0 {
		t.Errorf("dials = %d, want 0", *dials)
	}
}

func TestNewBLELink_InvalidAddress(t *testing.T) {
	if _, err := newBLELink(LinkConfig{Address: "not-a-mac"}, nopLogger{}); !errors.Is(err, ErrLinkFailed) {
		t.Errorf("newBLELink() error = %v, want ErrLinkFailed", err)
	}
}
