package media

import "strings"

// DeviceKind mirrors MediaDeviceInfo.kind.
type DeviceKind string

const (
	AudioInput  DeviceKind = "audioinput"
	VideoInput  DeviceKind = "videoinput"
	AudioOutput DeviceKind = "audiooutput"
)

// Device is one entry of navigator.mediaDevices.enumerateDevices().
type Device struct {
	DeviceID string     `json:"deviceId"`
	GroupID  string     `json:"groupId"`
	Kind     DeviceKind `json:"kind"`
	Label    string     `json:"label"`
}

// UniqueInputs returns the devices of kind in enumeration order, dropping
// the "default" pseudo devices and repeated device IDs.
func UniqueInputs(devices []Device, kind DeviceKind) []Device {
	var out []Device
	seen := make(map[string]struct{})
	for _, d := range devices {
		if d.Kind != kind || strings.Contains(d.DeviceID, "default") {
			continue
		}
		if _, dup := seen[d.DeviceID]; dup {
			continue
		}
		seen[d.DeviceID] = struct{}{}
		out = append(out, d)
	}
	return out
}

// Labels returns the labels of devices, in order.
func Labels(devices []Device) []string {
	labels := make([]string, len(devices))
	for i, d := range devices {
		labels[i] = d.Label
	}
	return labels
}

// DefaultDevice returns the device an app selects when the user has not
// chosen one: the first unique input of kind.
func DefaultDevice(devices []Device, kind DeviceKind) (Device, bool) {
	inputs := UniqueInputs(devices, kind)
	if len(inputs) == 0 {
		return Device{}, false
	}
	return inputs[0], true
}
