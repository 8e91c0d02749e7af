package mcumgr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"
)

// bleSMPCharacteristicUUID identifies the GATT characteristic that
// carries SMP traffic.
var bleSMPCharacteristicUUID, _ = bluetooth.ParseUUID("da2e7828-fbce-4e01-ae9e-261174997c48")

var _ Transport = (*BLETransport)(nil)

// BLETransportConfig selects the target device by advertised name or
// address, and bounds how long Connect scans before giving up.
type BLETransportConfig struct {
	Name        string
	Address     string
	ScanTimeout time.Duration
}

// BLETransport is an alternate Transport implementation over a
// Bluetooth LE GATT characteristic. It only accumulates raw notification
// bytes into an internal buffer: BLE is just another duplex byte stream,
// so the generic frame codec runs on top of it unmodified.
type BLETransport struct {
	cfg BLETransportConfig

	adapter           *bluetooth.Adapter
	device            bluetooth.Device
	smpCharacteristic bluetooth.DeviceCharacteristic

	mu      sync.Mutex
	buf     bytes.Buffer
	notify  chan struct{}
	timeout time.Duration
}

// NewBLETransport enables the default Bluetooth adapter and prepares a
// transport that will scan for cfg's device on Connect.
func NewBLETransport(cfg BLETransportConfig) (*BLETransport, error) {
	if err := bluetooth.DefaultAdapter.Enable(); err != nil {
		return nil, fmt.Errorf("mcumgr: enable bluetooth adapter: %w", err)
	}
	if cfg.ScanTimeout == 0 {
		cfg.ScanTimeout = 10 * time.Second
	}
	return &BLETransport{
		adapter: bluetooth.DefaultAdapter,
		cfg:     cfg,
		notify:  make(chan struct{}, 1),
	}, nil
}

// Connect scans for, connects to, and discovers the SMP characteristic
// on the configured device.
func (b *BLETransport) Connect(ctx context.Context) error {
	var found bool
	var deviceAddr bluetooth.Address

	scanCtx, cancel := context.WithTimeout(ctx, b.cfg.ScanTimeout)
	defer cancel()

	err := b.adapter.Scan(func(a *bluetooth.Adapter, sr bluetooth.ScanResult) {
		slog.Debug("mcumgr: found ble device", "name", sr.LocalName(), "addr", sr.Address)

		nameMatch := b.cfg.Name != "" && sr.LocalName() == b.cfg.Name
		addrMatch := b.cfg.Address != "" && sr.Address.String() == b.cfg.Address
		if !nameMatch && !addrMatch {
			return
		}

		deviceAddr = sr.Address
		found = true
		cancel()
		_ = b.adapter.StopScan()
	})
	if err != nil {
		return fmt.Errorf("mcumgr: start ble scan: %w", err)
	}

	slog.Info("mcumgr: started ble scan", "config", b.cfg)
	<-scanCtx.Done()
	_ = b.adapter.StopScan()

	if !found {
		return errors.New("mcumgr: ble device could not be found")
	}

	dev, err := b.adapter.Connect(deviceAddr, bluetooth.ConnectionParams{
		ConnectionTimeout: bluetooth.NewDuration(10 * time.Second),
		Timeout:           bluetooth.NewDuration(10 * time.Second),
	})
	if err != nil {
		return fmt.Errorf("mcumgr: connect ble: %w", err)
	}
	b.device = dev

	if err := b.discoverSMPCharacteristic(); err != nil {
		return fmt.Errorf("mcumgr: discover smp characteristic: %w", err)
	}
	if err := b.enableNotifications(); err != nil {
		return fmt.Errorf("mcumgr: enable notifications: %w", err)
	}
	return nil
}

func (b *BLETransport) discoverSMPCharacteristic() error {
	services, err := b.device.DiscoverServices([]bluetooth.UUID{bluetooth.ServiceUUIDSMP})
	if err != nil {
		return fmt.Errorf("discover services: %w", err)
	}
	if len(services) != 1 {
		return errors.New("no matching SMP service")
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{bleSMPCharacteristicUUID})
	if err != nil {
		return fmt.Errorf("discover characteristics: %w", err)
	}
	if len(chars) == 0 {
		return errors.New("SMP characteristic not found")
	}
	b.smpCharacteristic = chars[0]
	return nil
}

func (b *BLETransport) enableNotifications() error {
	return b.smpCharacteristic.EnableNotifications(func(data []byte) {
		b.mu.Lock()
		b.buf.Write(data)
		b.mu.Unlock()
		select {
		case b.notify <- struct{}{}:
		default:
		}
	})
}

// WriteAll implements Transport by writing through the SMP characteristic.
func (b *BLETransport) WriteAll(data []byte) error {
	_, err := b.smpCharacteristic.WriteWithoutResponse(data)
	if err != nil {
		return fmt.Errorf("mcumgr: ble write: %w", err)
	}
	return nil
}

// SetReadTimeout implements Transport.
func (b *BLETransport) SetReadTimeout(d time.Duration) error {
	b.timeout = d
	return nil
}

// ReadUntil implements Transport by draining accumulated notification
// bytes until terminator is seen or the configured timeout elapses.
func (b *BLETransport) ReadUntil(terminator byte) ([]byte, error) {
	deadline := time.Now().Add(b.timeout)
	for {
		b.mu.Lock()
		if idx := bytes.IndexByte(b.buf.Bytes(), terminator); idx >= 0 {
			line := append([]byte(nil), b.buf.Next(idx+1)...)
			b.mu.Unlock()
			return line, nil
		}
		b.mu.Unlock()

		if b.timeout <= 0 {
			return nil, newTimeoutError("ble_transport.read", nil)
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, newTimeoutError("ble_transport.read", nil)
		}
		select {
		case <-b.notify:
		case <-time.After(remaining):
			return nil, newTimeoutError("ble_transport.read", nil)
		}
	}
}

// Close disconnects from the BLE device.
func (b *BLETransport) Close() error {
	if err := b.device.Disconnect(); err != nil {
		return fmt.Errorf("mcumgr: disconnect ble: %w", err)
	}
	return nil
}
