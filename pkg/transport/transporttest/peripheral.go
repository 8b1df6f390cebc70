package transporttest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sousvide-ble/nano-go/pkg/frame"
	"github.com/sousvide-ble/nano-go/pkg/transport"
	"github.com/sousvide-ble/nano-go/pkg/wire"
)

// ChunkSize is the notification payload size used by the appliance.
const ChunkSize = 20

// Responder returns the notification chunks sent in reply to a request
// frame. Returning nil sends nothing.
type Responder func(request []byte) [][]byte

// EventKind distinguishes entries of the peripheral's event log.
type EventKind uint8

const (
	EventWrite EventKind = iota
	EventNotify
	EventDisconnect
)

// Event is one entry of the peripheral's event log.
type Event struct {
	Kind EventKind
	Data []byte
}

// Peripheral is a simulated BLE peripheral.
type Peripheral struct {
	mu         sync.Mutex
	dev        transport.Device
	respond    Responder
	chunkDelay time.Duration
	writeErr   error
	conn       *Conn
	events     []Event

	subscriptions atomic.Int32
}

// NewPeripheral returns a peripheral advertising dev.
func NewPeripheral(dev transport.Device, respond Responder) *Peripheral {
	return &Peripheral{dev: dev, respond: respond}
}

// Device returns the advertised device.
func (p *Peripheral) Device() transport.Device {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dev
}

// Respond replaces the responder.
func (p *Peripheral) Respond(r Responder) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.respond = r
}

// SetChunkDelay sets the pause before each notification chunk.
func (p *Peripheral) SetChunkDelay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chunkDelay = d
}

// SetWriteError makes subsequent writes fail with err.
func (p *Peripheral) SetWriteError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeErr = err
}

// Events returns a copy of the event log.
func (p *Peripheral) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

// Writes returns the frames written to the write characteristic.
func (p *Peripheral) Writes() [][]byte {
	var out [][]byte
	for _, e := range p.Events() {
		if e.Kind == EventWrite {
			out = append(out, e.Data)
		}
	}
	return out
}

// Subscriptions returns how many notify subscriptions were made.
func (p *Peripheral) Subscriptions() int {
	return int(p.subscriptions.Load())
}

// Notify pushes an unsolicited chunk to the current connection.
func (p *Peripheral) Notify(chunk []byte) {
	p.mu.Lock()
	c := p.conn
	p.mu.Unlock()
	if c != nil {
		c.notify(transport.NotifyCharUUID, chunk)
	}
}

// Drop simulates loss of the link.
func (p *Peripheral) Drop() {
	p.mu.Lock()
	c := p.conn
	p.mu.Unlock()
	if c != nil {
		_ = c.Disconnect()
	}
}

// Connected reports whether a connection is open.
func (p *Peripheral) Connected() bool {
	p.mu.Lock()
	c := p.conn
	p.mu.Unlock()
	return c != nil && c.Connected()
}

func (p *Peripheral) attach(onDisconnect func()) *Conn {
	c := &Conn{
		p:            p,
		onDisconnect: onDisconnect,
		subs:         make(map[string]map[int]func([]byte)),
	}
	c.connected.Store(true)

	p.mu.Lock()
	p.conn = c
	p.mu.Unlock()
	return c
}

func (p *Peripheral) record(kind EventKind, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, Event{Kind: kind, Data: append([]byte(nil), data...)})
}

// Conn is a connection to a Peripheral.
type Conn struct {
	p            *Peripheral
	onDisconnect func()
	connected    atomic.Bool

	mu      sync.Mutex
	subs    map[string]map[int]func([]byte)
	nextSub int
}

// Device implements transport.Conn.
func (c *Conn) Device() transport.Device {
	return c.p.Device()
}

// Write implements transport.Conn.
func (c *Conn) Write(ctx context.Context, charUUID string, data []byte, withResponse bool) error {
	if !c.connected.Load() {
		return transport.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.p.mu.Lock()
	writeErr := c.p.writeErr
	respond := c.p.respond
	delay := c.p.chunkDelay
	c.p.mu.Unlock()

	if writeErr != nil {
		return writeErr
	}
	c.p.record(EventWrite, data)

	if charUUID != transport.WriteCharUUID || respond == nil {
		return nil
	}

	chunks := respond(append([]byte(nil), data...))
	if len(chunks) == 0 {
		return nil
	}
	go func() {
		for _, chunk := range chunks {
			if delay > 0 {
				time.Sleep(delay)
			}
			if !c.connected.Load() {
				return
			}
			c.notify(transport.NotifyCharUUID, chunk)
		}
	}()
	return nil
}

// Subscribe implements transport.Conn.
func (c *Conn) Subscribe(charUUID string, onChunk func([]byte)) (func(), error) {
	if !c.connected.Load() {
		return nil, transport.ErrNotConnected
	}
	c.p.subscriptions.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subs[charUUID] == nil {
		c.subs[charUUID] = make(map[int]func([]byte))
	}
	id := c.nextSub
	c.nextSub++
	c.subs[charUUID][id] = onChunk

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs[charUUID], id)
	}, nil
}

// Disconnect implements transport.Conn.
func (c *Conn) Disconnect() error {
	if !c.connected.Swap(false) {
		return nil
	}
	c.p.record(EventDisconnect, nil)
	if c.onDisconnect != nil {
		go c.onDisconnect()
	}
	return nil
}

// Connected implements transport.Conn.
func (c *Conn) Connected() bool {
	return c.connected.Load()
}

func (c *Conn) notify(charUUID string, chunk []byte) {
	c.mu.Lock()
	handlers := make([]func([]byte), 0, len(c.subs[charUUID]))
	for _, h := range c.subs[charUUID] {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()

	c.p.record(EventNotify, chunk)
	for _, h := range handlers {
		h(append([]byte(nil), chunk...))
	}
}

var _ transport.Conn = (*Conn)(nil)

// Chunk splits data into notification-sized chunks.
func Chunk(data []byte) [][]byte {
	var out [][]byte
	for len(data) > ChunkSize {
		out = append(out, data[:ChunkSize])
		data = data[ChunkSize:]
	}
	if len(data) > 0 {
		out = append(out, data)
	}
	return out
}

// ResponseFrame encodes msg as the appliance's reply to instruction.
func ResponseFrame(instruction wire.MessageType, msg wire.Message) []byte {
	payload := []byte{byte(wire.DomainConfig), byte(instruction)}
	if msg != nil {
		payload = append(payload, msg.Marshal()...)
	}
	return frame.Encode(payload, true)
}

// Reply returns a Responder that answers every request with the given
// raw response frame, split into chunks.
func Reply(raw []byte) Responder {
	return func([]byte) [][]byte { return Chunk(raw) }
}

// Silent is a Responder that never answers.
func Silent([]byte) [][]byte { return nil }
