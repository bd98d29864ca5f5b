package vitalink

import (
	"fmt"

	"github.com/JPFrancoia/openScale/pkg/scale"
	"github.com/fako1024/gatt"
)

// gattTransport adapts a connected gatt peripheral to the scale.Transport
// contract. The characteristic map is built once after connection, so
// presence checks never touch the radio
type gattTransport struct {
	peripheral gatt.Peripheral
	chars      map[string]map[string]*gatt.Characteristic
}

func newGATTTransport(p gatt.Peripheral) (*gattTransport, error) {

	t := &gattTransport{
		peripheral: p,
		chars:      make(map[string]map[string]*gatt.Characteristic),
	}

	// Discover services
	ss, err := p.DiscoverServices(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to discover services: %w", err)
	}
	for _, svc := range ss {

		// Discover characteristics
		cs, err := p.DiscoverCharacteristics(nil, svc)
		if err != nil {
			return nil, fmt.Errorf("failed to discover characteristics: %w", err)
		}
		m := make(map[string]*gatt.Characteristic)
		for _, c := range cs {
			m[c.UUID().String()] = c
		}
		t.chars[svc.UUID().String()] = m
	}

	return t, nil
}

// ReadCharacteristic reads the current value of a characteristic
func (t *gattTransport) ReadCharacteristic(service, characteristic string) ([]byte, error) {
	c, ok := t.lookup(service, characteristic)
	if !ok {
		return nil, fmt.Errorf("characteristic %s/%s not present on device", service, characteristic)
	}

	return t.peripheral.ReadCharacteristic(c)
}

// WriteCharacteristic writes data to a characteristic; writing to an absent
// characteristic is a no-op since one handler serves multiple hardware variants
func (t *gattTransport) WriteCharacteristic(service, characteristic string, data []byte, withResponse bool) error {
	c, ok := t.lookup(service, characteristic)
	if !ok {
		return nil
	}

	return t.peripheral.WriteCharacteristic(c, data, !withResponse)
}

// SubscribeNotify subscribes to notifications on a characteristic; a no-op
// if the characteristic is absent
func (t *gattTransport) SubscribeNotify(service, characteristic string, fn scale.NotificationFunc) error {
	c, ok := t.lookup(service, characteristic)
	if !ok {
		return nil
	}

	// Discover descriptors
	if _, err := t.peripheral.DiscoverDescriptors(nil, c); err != nil {
		return fmt.Errorf("failed to discover descriptors: %w", err)
	}

	return t.peripheral.SetNotifyValue(c, func(gc *gatt.Characteristic, data []byte, err error) {
		fn(gc.UUID().String(), data, err)
	})
}

// HasCharacteristic reports whether the connected device exposes a characteristic
func (t *gattTransport) HasCharacteristic(service, characteristic string) bool {
	_, ok := t.lookup(service, characteristic)
	return ok
}

////////////////////////////////////////////////////////////////////////////////

func (t *gattTransport) lookup(service, characteristic string) (*gatt.Characteristic, bool) {
	m, ok := t.chars[service]
	if !ok {
		return nil, false
	}
	c, ok := m[characteristic]

	return c, ok
}
