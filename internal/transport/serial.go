package transport

import (
	"fmt"
	"os"
	"runtime"

	kerrors "knxtool/internal/errors"
)

// SerialPort is an open FT1.2 serial connection to a KNX interface.
// Framing is either the standard FT1.2 protocol or, in cEMI mode, the
// FT1.2 frame format carrying cEMI messages.
type SerialPort struct {
	f    *os.File
	path string
	cemi bool
}

// OpenSerial opens the serial device for FT1.2 communication.
func OpenSerial(device string, cemi bool) (*SerialPort, error) {
	f, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return nil, kerrors.Wrap("open", device, err)
	}
	return &SerialPort{f: f, path: device, cemi: cemi}, nil
}

// PortPath maps a numeric serial port identifier to the platform
// device name.
func PortPath(n int) string {
	if runtime.GOOS == "windows" {
		return fmt.Sprintf("COM%d", n)
	}
	return fmt.Sprintf("/dev/ttyS%d", n)
}

// Path returns the device the port was opened on.
func (s *SerialPort) Path() string { return s.path }

// CEMI reports whether the port uses cEMI framing.
func (s *SerialPort) CEMI() bool { return s.cemi }

func (s *SerialPort) Read(p []byte) (int, error)  { return s.f.Read(p) }
func (s *SerialPort) Write(p []byte) (int, error) { return s.f.Write(p) }
func (s *SerialPort) Close() error                { return s.f.Close() }
