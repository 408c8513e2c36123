package transport

import (
	"knxtool/internal/medium"
)

// BusMonitor is a passive TP-UART connection delivering raw bus
// traffic.  With an empty acknowledge list the monitor never
// acknowledges frames, so it stays invisible on the bus.
type BusMonitor struct {
	port *SerialPort
	ack  []medium.IndividualAddress
}

// OpenBusMonitor opens a TP-UART controller on the given serial device.
// ack lists the individual addresses to acknowledge; pass nil for a
// purely passive monitor.
func OpenBusMonitor(device string, ack []medium.IndividualAddress) (*BusMonitor, error) {
	port, err := OpenSerial(device, false)
	if err != nil {
		return nil, err
	}
	return &BusMonitor{port: port, ack: ack}, nil
}

// Addresses returns the acknowledged addresses; empty means passive.
func (m *BusMonitor) Addresses() []medium.IndividualAddress { return m.ack }

// Device returns the serial device the monitor runs on.
func (m *BusMonitor) Device() string { return m.port.Path() }

func (m *BusMonitor) Read(p []byte) (int, error) { return m.port.Read(p) }
func (m *BusMonitor) Close() error               { return m.port.Close() }
