package ofono

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
)

// PropertyChange is one "PropertyChanged" signal delivered for an object
// path, carrying the interface it was received on.
type PropertyChange struct {
	Path  dbus.ObjectPath
	Iface string
	Name  string
	Value dbus.Variant
}

// Handle is a cancellable subscription. The design notes call for an
// explicit handle on every on_property_changed subscription so a rescan or
// interface removal can cancel it deterministically, instead of leaving a
// callback dangling into a torn-down object.
type Handle struct {
	cancel func()
	once   sync.Once
}

// Cancel releases the subscription. Safe to call more than once.
func (h *Handle) Cancel() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		if h.cancel != nil {
			h.cancel()
		}
	})
}

// Client is the shared, path-and-interface-keyed facade onto the lower
// stack. One Client is shared by every Modem's property mirror; proxies are
// cheap dbus.BusObject wrappers, not per-caller connections.
type Client struct {
	conn *dbus.Conn
	log  *logrus.Entry

	mu        sync.Mutex
	listeners map[string]func(PropertyChange) // keyed by path+iface
	sigCh     chan *dbus.Signal
}

// NewClient wires a Client onto an established system-bus connection and
// starts its signal dispatch loop.
func NewClient(conn *dbus.Conn, log *logrus.Entry) *Client {
	c := &Client{
		conn:      conn,
		log:       log,
		listeners: make(map[string]func(PropertyChange)),
		sigCh:     make(chan *dbus.Signal, 64),
	}
	conn.Signal(c.sigCh)
	go c.dispatch()
	return c
}

func (c *Client) dispatch() {
	for sig := range c.sigCh {
		if sig.Name != IfaceModem+".PropertyChanged" &&
			sig.Name != IfaceSimManager+".PropertyChanged" &&
			sig.Name != IfaceConnectionManager+".PropertyChanged" &&
			sig.Name != IfaceConnectionContext+".PropertyChanged" &&
			sig.Name != IfaceNetworkRegistration+".PropertyChanged" &&
			sig.Name != IfaceRadioSettings+".PropertyChanged" {
			continue
		}
		if len(sig.Body) != 2 {
			continue
		}
		name, ok := sig.Body[0].(string)
		if !ok {
			continue
		}
		value, ok := sig.Body[1].(dbus.Variant)
		if !ok {
			continue
		}
		iface := sig.Name[:len(sig.Name)-len(".PropertyChanged")]
		key := listenerKey(sig.Path, iface)
		c.mu.Lock()
		cb := c.listeners[key]
		c.mu.Unlock()
		if cb == nil {
			continue
		}
		cb(PropertyChange{Path: sig.Path, Iface: iface, Name: name, Value: value})
	}
}

func listenerKey(path dbus.ObjectPath, iface string) string {
	return string(path) + "\x00" + iface
}

// Watch subscribes to PropertyChanged signals for one object path on one
// interface. Silently becomes a no-op for signal delivery once the
// returned Handle is cancelled, per the facade contract of dropping
// subscriptions when a proxy disappears.
func (c *Client) Watch(path dbus.ObjectPath, iface string, cb func(PropertyChange)) (*Handle, error) {
	rule := fmt.Sprintf("type='signal',interface='%s',member='PropertyChanged',path='%s'", iface, path)
	if err := c.conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule).Err; err != nil {
		return nil, fmt.Errorf("ofono: add match %s: %w", rule, err)
	}

	key := listenerKey(path, iface)
	c.mu.Lock()
	c.listeners[key] = cb
	c.mu.Unlock()

	return &Handle{cancel: func() {
		c.mu.Lock()
		delete(c.listeners, key)
		c.mu.Unlock()
		c.conn.BusObject().Call("org.freedesktop.DBus.RemoveMatch", 0, rule)
	}}, nil
}

// GetProperties calls GetProperties on iface at path and returns the
// resulting property map. Transient bus errors are returned to the caller,
// who (per §7) treats them as an empty map and continues with defaults.
func (c *Client) GetProperties(path dbus.ObjectPath, iface string) (map[string]dbus.Variant, error) {
	var props map[string]dbus.Variant
	call := c.conn.Object(BusName, path).Call(iface+".GetProperties", 0)
	if call.Err != nil {
		return nil, fmt.Errorf("ofono: GetProperties %s %s: %w", iface, path, call.Err)
	}
	if err := call.Store(&props); err != nil {
		return nil, fmt.Errorf("ofono: decode GetProperties %s %s: %w", iface, path, err)
	}
	return props, nil
}

// SetProperty calls SetProperty(name, value) on iface at path.
func (c *Client) SetProperty(path dbus.ObjectPath, iface, name string, value interface{}) error {
	v := dbus.MakeVariant(value)
	call := c.conn.Object(BusName, path).Call(iface+".SetProperty", 0, name, v)
	if call.Err != nil {
		return fmt.Errorf("ofono: SetProperty %s.%s=%v at %s: %w", iface, name, value, path, call.Err)
	}
	return nil
}

// Call invokes an arbitrary method on iface at path and decodes the reply
// into dest (a pointer), if non-nil.
func (c *Client) Call(path dbus.ObjectPath, iface, method string, dest interface{}, args ...interface{}) error {
	call := c.conn.Object(BusName, path).Call(iface+"."+method, 0, args...)
	if call.Err != nil {
		return fmt.Errorf("ofono: %s.%s at %s: %w", iface, method, path, call.Err)
	}
	if dest == nil {
		return nil
	}
	return call.Store(dest)
}

// NameHasOwner reports whether BusName currently has an owner.
func (c *Client) NameHasOwner() (bool, error) {
	var has bool
	err := c.conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, BusName).Store(&has)
	if err != nil {
		return false, fmt.Errorf("ofono: NameHasOwner: %w", err)
	}
	return has, nil
}

// WatchNameOwnerChanged subscribes to NameOwnerChanged for BusName and
// invokes cb(newOwner) on every change (empty newOwner means the lower
// stack went away).
func (c *Client) WatchNameOwnerChanged(cb func(newOwner string)) error {
	rule := fmt.Sprintf("type='signal',interface='org.freedesktop.DBus',member='NameOwnerChanged',arg0='%s'", BusName)
	if err := c.conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule).Err; err != nil {
		return fmt.Errorf("ofono: watch name owner: %w", err)
	}

	go func() {
		ch := make(chan *dbus.Signal, 8)
		c.conn.Signal(ch)
		for sig := range ch {
			if sig.Name != "org.freedesktop.DBus.NameOwnerChanged" || len(sig.Body) != 3 {
				continue
			}
			name, _ := sig.Body[0].(string)
			newOwner, _ := sig.Body[2].(string)
			if name == BusName {
				cb(newOwner)
			}
		}
	}()
	return nil
}
