// Package ofono provides typed D-Bus client facades for the org.ofono
// telephony stack: the Manager, Modem, SimManager, ConnectionManager,
// ConnectionContext, NetworkRegistration and RadioSettings interfaces.
package ofono

import "github.com/godbus/dbus/v5"

// BusName is the well-known name the lower stack owns on the system bus.
const BusName = "org.ofono"

// Interface names, as reported in a Modem's "Interfaces" property.
const (
	IfaceManager             = "org.ofono.Manager"
	IfaceModem               = "org.ofono.Modem"
	IfaceSimManager          = "org.ofono.SimManager"
	IfaceConnectionManager   = "org.ofono.ConnectionManager"
	IfaceConnectionContext   = "org.ofono.ConnectionContext"
	IfaceNetworkRegistration = "org.ofono.NetworkRegistration"
	IfaceRadioSettings       = "org.ofono.RadioSettings"
	IfaceMessageManager      = "org.ofono.MessageManager"
	IfaceVoiceCallManager    = "org.ofono.VoiceCallManager"
)

// Well-known ofono error names surfaced from method calls.
const (
	ErrorInProgress       = "org.ofono.Error.InProgress"
	ErrorAttachInProgress = "org.ofono.Error.AttachInProgress"
	ErrorNotAttached      = "org.ofono.Error.NotAttached"
	ErrorFailed           = "org.ofono.Error.Failed"
)

// ContextTypeInternet is the ConnectionContext "Type" value the bearer
// subsystem mirrors.
const ContextTypeInternet = "internet"

// AcceptedModemPathPrefixes lists the object path prefixes discovery treats
// as real cellular modems (as opposed to e.g. loopback/test modems ofono
// may also export).
var AcceptedModemPathPrefixes = []string{"/ril_", "/phonesim"}

// HasAcceptedPrefix reports whether path is an acceptable modem path.
func HasAcceptedPrefix(path dbus.ObjectPath) bool {
	s := string(path)
	for _, p := range AcceptedModemPathPrefixes {
		if len(s) >= len(p) && s[:len(p)] == p {
			return true
		}
	}
	return false
}
