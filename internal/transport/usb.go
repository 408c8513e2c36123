package transport

import (
	"os"

	kerrors "knxtool/internal/errors"
)

// USBDevice is an open KNX USB interface, accessed through its HID
// device node.
type USBDevice struct {
	f    *os.File
	name string
}

// OpenUSB opens the KNX USB interface identified by its device node
// path (e.g. /dev/hidraw0).
func OpenUSB(device string) (*USBDevice, error) {
	if device == "" {
		return nil, &kerrors.ConfigError{
			Field:   "host",
			Message: "no KNX USB device given",
			Hint:    "pass the HID device node, e.g. /dev/hidraw0",
		}
	}
	f, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return nil, kerrors.Wrap("open", device, err)
	}
	return &USBDevice{f: f, name: device}, nil
}

// Name returns the device node the interface was opened on.
func (u *USBDevice) Name() string { return u.name }

func (u *USBDevice) Read(p []byte) (int, error)  { return u.f.Read(p) }
func (u *USBDevice) Write(p []byte) (int, error) { return u.f.Write(p) }
func (u *USBDevice) Close() error                { return u.f.Close() }
