package engine

import (
	"time"

	"github.com/veloce/gnrouter/device"
)

// fakeRxToken/fakeTxToken let fakeDevice satisfy device.Device without any
// real link layer, mirroring the teacher's test doubles for its balancer
// backends.
type fakeRxToken struct {
	payload []byte
	source  [6]byte
}

func (t *fakeRxToken) Consume(f func([]byte) error) error { return f(t.payload) }
func (t *fakeRxToken) Source() [6]byte                    { return t.source }

type fakeTxToken struct{ d *fakeDevice }

func (t *fakeTxToken) Consume(size int, f func([]byte) error) error {
	buf := make([]byte, size)
	if err := f(buf); err != nil {
		return err
	}
	t.d.sent = append(t.d.sent, buf)
	return nil
}

// fakeDevice is an in-memory device.Device: Receive drains a preloaded
// inbound queue, Transmit always succeeds and records every frame handed
// to it.
type fakeDevice struct {
	rx   [][6]byte
	inQ  [][]byte
	sent [][]byte

	txBlocked bool
}

func (d *fakeDevice) push(source [6]byte, payload []byte) {
	d.rx = append(d.rx, source)
	d.inQ = append(d.inQ, payload)
}

func (d *fakeDevice) Receive(_ time.Time) (device.RxToken, device.TxToken, bool) {
	if len(d.inQ) == 0 {
		return nil, nil, false
	}
	payload := d.inQ[0]
	source := d.rx[0]
	d.inQ = d.inQ[1:]
	d.rx = d.rx[1:]
	return &fakeRxToken{payload: payload, source: source}, &fakeTxToken{d: d}, true
}

func (d *fakeDevice) Transmit(_ time.Time) (device.TxToken, bool) {
	if d.txBlocked {
		return nil, false
	}
	return &fakeTxToken{d: d}, true
}

func (d *fakeDevice) Capabilities() device.Capabilities {
	return device.Capabilities{MTU: 1500}
}
