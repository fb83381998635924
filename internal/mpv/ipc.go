// Package mpv implements a minimal client for mpv's JSON IPC protocol.
//
// mpv exposes a line-delimited JSON interface over a unix socket (started
// with --input-ipc-server=PATH). Commands are written as single lines and
// replies plus asynchronous events come back the same way.
package mpv

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// Event is a single message read from the IPC socket. mpv sends both command
// replies (RequestID and Error set) and asynchronous events (Event set);
// replies are consumed internally, so consumers of Events() only ever see
// the asynchronous kind.
type Event struct {
	Event     string      `json:"event,omitempty"`
	ID        int         `json:"id,omitempty"`
	Name      string      `json:"name,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	RequestID int         `json:"request_id,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// Bool returns the event data as a bool. Missing or mistyped data reads as
// false, which matches mpv reporting an unset property.
func (e Event) Bool() bool {
	b, _ := e.Data.(bool)
	return b
}

// Float returns the event data as a float64 and whether it was present.
// mpv reports time-pos as null while no file is loaded.
func (e Event) Float() (float64, bool) {
	f, ok := e.Data.(float64)
	return f, ok
}

type command struct {
	Command   []interface{} `json:"command"`
	RequestID int           `json:"request_id"`
}

// Client maintains a connection to a running mpv instance. Writes are
// serialized; reads happen on a dedicated goroutine that feeds Events().
type Client struct {
	conn   net.Conn
	logger *slog.Logger

	mu        sync.Mutex
	requestID int

	events    chan Event
	closeOnce sync.Once
}

// Dial connects to mpv's IPC socket and starts the read loop.
func Dial(socketPath string, logger *slog.Logger) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mpv socket %s: %w", socketPath, err)
	}
	return NewClient(conn, logger), nil
}

// NewClient wraps an existing connection. Tests use this with an in-memory
// pipe instead of a real socket.
func NewClient(conn net.Conn, logger *slog.Logger) *Client {
	c := &Client{
		conn:   conn,
		logger: logger,
		events: make(chan Event, 64),
	}
	go c.readLoop()
	return c
}

// Events returns the stream of asynchronous mpv events. The channel is
// closed when the connection drops.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Command sends a raw mpv command, e.g. Command("set_property", "pause", true).
func (c *Client) Command(args ...interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requestID++
	data, err := json.Marshal(command{Command: args, RequestID: c.requestID})
	if err != nil {
		return fmt.Errorf("failed to encode mpv command: %w", err)
	}
	if _, err := c.conn.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write mpv command: %w", err)
	}
	return nil
}

// SetProperty sets an mpv property such as "pause" or "time-pos".
func (c *Client) SetProperty(name string, value interface{}) error {
	return c.Command("set_property", name, value)
}

// ObserveProperty subscribes to property-change events for the named
// property. The id is echoed back on each change event.
func (c *Client) ObserveProperty(id int, name string) error {
	return c.Command("observe_property", id, name)
}

// Close shuts down the connection. The Events channel closes once the read
// loop observes the closed socket.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) readLoop() {
	defer c.closeOnce.Do(func() { close(c.events) })

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			c.logger.Warn("discarding malformed mpv IPC line", "error", err)
			continue
		}
		if ev.Event == "" {
			// Command reply. mpv reports "success" for accepted commands.
			if ev.Error != "" && ev.Error != "success" {
				c.logger.Warn("mpv command failed", "request_id", ev.RequestID, "error", ev.Error)
			}
			continue
		}
		c.events <- ev
	}
	if err := scanner.Err(); err != nil {
		c.logger.Debug("mpv IPC read loop ended", "error", err)
	}
}
