// Package max3010x drives the MAX30100/MAX30102 pulse-oximeter front end
// used for the kiosk's PPG measurement.
//
// The driver is deliberately thin: it owns register bring-up and raw
// sample reads only. Beat detection, DC removal and BPM estimation live in
// internal/ppg, which consumes Sample() in a tight poll loop.
package max3010x

import (
	"errors"
	"fmt"

	"github.com/theralink/kiosk/internal/i2c"
)

// Part identifies the detected silicon revision.
type Part uint8

const (
	PartUnknown Part = iota
	PartMAX30100
	PartMAX30102
)

func (p Part) String() string {
	switch p {
	case PartMAX30100:
		return "MAX30100"
	case PartMAX30102:
		return "MAX30102"
	default:
		return "unknown"
	}
}

// Registers common to both parts; the MAX30102 adds an FIFO/multi-LED
// configuration register set that this driver does not need, since it
// only consumes raw IR/red samples one at a time.
const (
	regPartID    = 0xFF
	regFIFOData  = 0x05
	regModeCfg   = 0x06
	regSpO2Cfg   = 0x07
	regLEDConfig = 0x09

	idMAX30100 = 0x11
	idMAX30102 = 0x15
)

// Thresholds is the finger-presence gate, parameterized per part since the
// raw IR baseline differs substantially between the MAX30100 and the
// MAX30102 (the two silicon revisions seen in the field for this kiosk).
type Thresholds struct {
	FingerOnMin  uint32
	FingerOffMin uint32
}

var defaultThresholds = map[Part]Thresholds{
	PartMAX30100: {FingerOnMin: 3000, FingerOffMin: 2000},
	PartMAX30102: {FingerOnMin: 12000, FingerOffMin: 8000},
}

// Dev is a handle to an initialized pulse-oximeter front end.
type Dev struct {
	d    i2c.Dev
	part Part
	th   Thresholds
}

// NewI2C probes the device at addr on bus and returns a ready Dev.
//
// The part ID register is read to distinguish MAX30100 from MAX30102 so
// that the finger-presence thresholds can be selected correctly; if the ID
// does not match either known part, NewI2C returns an error wrapping
// ErrNotFound (cmd/kiosk's bring-up retries the probe up to three times).
func NewI2C(bus i2c.Bus, addr uint16) (*Dev, error) {
	d := &Dev{d: i2c.Dev{Bus: bus, Addr: addr}}
	id, err := d.d.ReadReg8(regPartID)
	if err != nil {
		return nil, d.wrap(fmt.Errorf("probing part id: %w", err))
	}
	switch id {
	case idMAX30100:
		d.part = PartMAX30100
	case idMAX30102:
		d.part = PartMAX30102
	default:
		return nil, d.wrap(fmt.Errorf("unrecognized part id %#x: %w", id, ErrNotFound))
	}
	d.th = defaultThresholds[d.part]

	if err := d.d.WriteReg8(regModeCfg, 0x03); err != nil { // SpO2 mode
		return nil, d.wrap(err)
	}
	if err := d.d.WriteReg8(regSpO2Cfg, 0x27); err != nil { // 100 Hz, 16-bit ADC
		return nil, d.wrap(err)
	}
	if err := d.d.WriteReg8(regLEDConfig, 0x24); err != nil { // moderate LED current
		return nil, d.wrap(err)
	}
	return d, nil
}

// Part reports the detected silicon revision.
func (d *Dev) Part() Part { return d.part }

// Thresholds reports the finger-presence thresholds selected for this part.
func (d *Dev) Thresholds() Thresholds { return d.th }

// Sample reads one raw IR/red pair from the FIFO.
//
// A bus read failure is returned as-is; callers (internal/ppg) treat this
// as a transient fault and simply skip the tick rather than advancing
// state, per the kiosk's BusTransient error semantics.
func (d *Dev) Sample() (ir, red uint32, err error) {
	b, err := d.d.ReadReg(regFIFOData, 6)
	if err != nil {
		return 0, 0, d.wrap(err)
	}
	ir = uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	red = uint32(b[3])<<16 | uint32(b[4])<<8 | uint32(b[5])
	return ir, red, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("max3010x{%s, %s}", d.part, &d.d)
}

func (d *Dev) wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("max3010x: %w", err)
}

// ErrNotFound is wrapped into NewI2C's error when the part ID matches
// neither known part, so callers can tell the SensorAbsent condition apart
// from a bus error during the probe.
var ErrNotFound = errors.New("max3010x: device not found")
