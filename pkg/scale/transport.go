package scale

// NotificationFunc is called by a Transport for every notification received
// on a subscribed characteristic, strictly in arrival order per connection
type NotificationFunc func(characteristic string, data []byte, err error)

// Transport denotes the GATT-level operations a connected scale handler
// requires. Writes are fire-and-forget from the handler's perspective:
// sequencing correctness is driven by inbound notifications alone, never by
// write completion. Writing to or subscribing on an absent characteristic is
// a no-op, not an error, since one handler may serve multiple mutually
// exclusive hardware variants
type Transport interface {

	// ReadCharacteristic reads the current value of a characteristic
	ReadCharacteristic(service, characteristic string) ([]byte, error)

	// WriteCharacteristic writes data to a characteristic; a no-op if the
	// characteristic is not present on the connected device
	WriteCharacteristic(service, characteristic string, data []byte, withResponse bool) error

	// SubscribeNotify subscribes to notifications on a characteristic; a no-op
	// if the characteristic is not present on the connected device
	SubscribeNotify(service, characteristic string, fn NotificationFunc) error

	// HasCharacteristic reports whether the connected device exposes a characteristic
	HasCharacteristic(service, characteristic string) bool
}
