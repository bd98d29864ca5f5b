package vitalink

import (
	"github.com/JPFrancoia/openScale/pkg/scale"
	"github.com/fako1024/gatt"
)

// WithDeviceID sets the Bluetooth device ID, pinning the driver to a
// specific peripheral regardless of its advertisement
func WithDeviceID(deviceID string) func(*VitaLink) {
	return func(v *VitaLink) {
		v.deviceID = deviceID
	}
}

// WithDeviceName sets the Bluetooth device name to match instead of the
// default vendor name substring
func WithDeviceName(deviceName string) func(*VitaLink) {
	return func(v *VitaLink) {
		v.deviceName = deviceName
	}
}

// WithDevice sets the Bluetooth device
func WithDevice(btDevice gatt.Device) func(*VitaLink) {
	return func(v *VitaLink) {
		v.btDevice = btDevice
	}
}

// WithUserProfile sets the user profile weighed on connection
func WithUserProfile(user scale.UserProfile) func(*VitaLink) {
	return func(v *VitaLink) {
		v.user = &user
	}
}

// WithUnit sets the display unit configured on the device
func WithUnit(unit scale.Unit) func(*VitaLink) {
	return func(v *VitaLink) {
		v.unit = unit
	}
}

// WithLogger sets a logger to be used for any (debug) output
func WithLogger(logger scale.Logger) func(*VitaLink) {
	return func(v *VitaLink) {
		v.logger = logger
	}
}
