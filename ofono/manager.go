package ofono

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// ManagerObjectPath is the root object org.ofono.Manager is exported at.
const ManagerObjectPath = dbus.ObjectPath("/")

// ModemInfo is one entry returned by Manager.GetModems: a modem path and
// its initial property bag.
type ModemInfo struct {
	Path  dbus.ObjectPath
	Props map[string]dbus.Variant
}

// Manager is the typed facade onto org.ofono.Manager.
type Manager struct {
	client *Client
}

// NewManager binds a Manager facade to an already-connected Client.
func NewManager(client *Client) *Manager {
	return &Manager{client: client}
}

// GetModems enumerates every modem the lower stack currently knows about.
func (m *Manager) GetModems() ([]ModemInfo, error) {
	var raw []struct {
		Path  dbus.ObjectPath
		Props map[string]dbus.Variant
	}
	if err := m.client.Call(ManagerObjectPath, IfaceManager, "GetModems", &raw); err != nil {
		return nil, fmt.Errorf("ofono: GetModems: %w", err)
	}
	out := make([]ModemInfo, 0, len(raw))
	for _, r := range raw {
		out = append(out, ModemInfo{Path: r.Path, Props: r.Props})
	}
	return out, nil
}

// WatchModemAdded/WatchModemRemoved subscribe to Manager's ModemAdded and
// ModemRemoved signals. Each returns an explicit Handle so discovery can
// cancel the subscription on teardown or before a fresh enumerate.

func (m *Manager) WatchModemAdded(cb func(ModemInfo)) (*Handle, error) {
	return m.watchModemSignal("ModemAdded", func(sig *dbus.Signal) {
		if len(sig.Body) != 2 {
			return
		}
		path, ok := sig.Body[0].(dbus.ObjectPath)
		if !ok {
			return
		}
		props, _ := sig.Body[1].(map[string]dbus.Variant)
		cb(ModemInfo{Path: path, Props: props})
	})
}

func (m *Manager) WatchModemRemoved(cb func(dbus.ObjectPath)) (*Handle, error) {
	return m.watchModemSignal("ModemRemoved", func(sig *dbus.Signal) {
		if len(sig.Body) != 1 {
			return
		}
		path, ok := sig.Body[0].(dbus.ObjectPath)
		if !ok {
			return
		}
		cb(path)
	})
}

func (m *Manager) watchModemSignal(member string, handle func(*dbus.Signal)) (*Handle, error) {
	conn := m.client.conn
	rule := fmt.Sprintf("type='signal',interface='%s',member='%s'", IfaceManager, member)
	if err := conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule).Err; err != nil {
		return nil, fmt.Errorf("ofono: watch %s: %w", member, err)
	}

	ch := make(chan *dbus.Signal, 16)
	conn.Signal(ch)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig, ok := <-ch:
				if !ok {
					return
				}
				if sig.Name != IfaceManager+"."+member {
					continue
				}
				handle(sig)
			case <-done:
				conn.RemoveSignal(ch)
				return
			}
		}
	}()

	return &Handle{cancel: func() {
		close(done)
		conn.BusObject().Call("org.freedesktop.DBus.RemoveMatch", 0, rule)
	}}, nil
}
