/*
 * Copyright 2014 Canonical Ltd.
 *
 * This file is part of ofono2mm-go.
 *
 * ofono2mm-go is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; version 3.
 *
 * ofono2mm-go is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package ofono

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Context is one ConnectionManager-owned data context, as returned by
// GetContexts: a context path and its property bag.
type Context struct {
	Path  dbus.ObjectPath
	Props map[string]dbus.Variant
}

// Type returns the context's "Type" property, or "" if absent.
func (c Context) Type() string {
	if v, ok := c.Props["Type"]; ok {
		if s, ok := v.Value().(string); ok {
			return s
		}
	}
	return ""
}

// IsInternet reports whether this is an "internet" (default data) context.
func (c Context) IsInternet() bool {
	return c.Type() == ContextTypeInternet
}

// ConnectionManager is the typed facade onto org.ofono.ConnectionManager
// for one modem.
type ConnectionManager struct {
	client *Client
	Path   dbus.ObjectPath
}

// NewConnectionManager binds a ConnectionManager facade to the owning
// modem's path.
func NewConnectionManager(client *Client, path dbus.ObjectPath) *ConnectionManager {
	return &ConnectionManager{client: client, Path: path}
}

// GetProperties fetches org.ofono.ConnectionManager's property bag
// (notably RoamingAllowed).
func (c *ConnectionManager) GetProperties() (map[string]dbus.Variant, error) {
	return c.client.GetProperties(c.Path, IfaceConnectionManager)
}

// GetContexts enumerates the modem's data contexts.
func (c *ConnectionManager) GetContexts() ([]Context, error) {
	var raw []struct {
		Path  dbus.ObjectPath
		Props map[string]dbus.Variant
	}
	if err := c.client.Call(c.Path, IfaceConnectionManager, "GetContexts", &raw); err != nil {
		return nil, fmt.Errorf("ofono: GetContexts %s: %w", c.Path, err)
	}
	out := make([]Context, 0, len(raw))
	for _, r := range raw {
		out = append(out, Context{Path: r.Path, Props: r.Props})
	}
	return out, nil
}

// AddContext creates a new data context of the given type ("internet",
// "mms", ...) and returns its object path.
func (c *ConnectionManager) AddContext(typ string) (dbus.ObjectPath, error) {
	var path dbus.ObjectPath
	if err := c.client.Call(c.Path, IfaceConnectionManager, "AddContext", &path, typ); err != nil {
		return "", fmt.Errorf("ofono: AddContext %s: %w", c.Path, err)
	}
	return path, nil
}

// RemoveContext tears down a data context.
func (c *ConnectionManager) RemoveContext(ctx dbus.ObjectPath) error {
	if err := c.client.Call(c.Path, IfaceConnectionManager, "RemoveContext", nil, ctx); err != nil {
		return fmt.Errorf("ofono: RemoveContext %s: %w", ctx, err)
	}
	return nil
}

// WatchContextAdded/WatchContextRemoved subscribe to ConnectionManager's
// ContextAdded and ContextRemoved signals for this modem.

func (c *ConnectionManager) WatchContextAdded(cb func(Context)) (*Handle, error) {
	return c.watch("ContextAdded", func(sig *dbus.Signal) {
		if len(sig.Body) != 2 {
			return
		}
		path, ok := sig.Body[0].(dbus.ObjectPath)
		if !ok {
			return
		}
		props, _ := sig.Body[1].(map[string]dbus.Variant)
		cb(Context{Path: path, Props: props})
	})
}

func (c *ConnectionManager) WatchContextRemoved(cb func(dbus.ObjectPath)) (*Handle, error) {
	return c.watch("ContextRemoved", func(sig *dbus.Signal) {
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

func (c *ConnectionManager) watch(member string, handle func(*dbus.Signal)) (*Handle, error) {
	conn := c.client.conn
	rule := fmt.Sprintf("type='signal',interface='%s',member='%s',path='%s'", IfaceConnectionManager, member, c.Path)
	if err := conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule).Err; err != nil {
		return nil, fmt.Errorf("ofono: watch %s %s: %w", member, c.Path, err)
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
				if sig.Path != c.Path || sig.Name != IfaceConnectionManager+"."+member {
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

// ConnectionContext is the typed facade onto org.ofono.ConnectionContext
// for one data context.
type ConnectionContext struct {
	client *Client
	Path   dbus.ObjectPath
}

// NewConnectionContext binds a ConnectionContext facade to path.
func NewConnectionContext(client *Client, path dbus.ObjectPath) *ConnectionContext {
	return &ConnectionContext{client: client, Path: path}
}

// SetProperty sets one ConnectionContext property ("Active",
// "AccessPointName", "Protocol", "Username", "Password", ...).
func (c *ConnectionContext) SetProperty(name string, value interface{}) error {
	return c.client.SetProperty(c.Path, IfaceConnectionContext, name, value)
}

// GetProperties fetches the context's current property bag.
func (c *ConnectionContext) GetProperties() (map[string]dbus.Variant, error) {
	return c.client.GetProperties(c.Path, IfaceConnectionContext)
}

// WatchPropertyChanged subscribes to this context's PropertyChanged signal.
func (c *ConnectionContext) WatchPropertyChanged(cb func(PropertyChange)) (*Handle, error) {
	return c.client.Watch(c.Path, IfaceConnectionContext, cb)
}
