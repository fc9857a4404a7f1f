package max3010x

import (
	"errors"
	"testing"

	"github.com/theralink/kiosk/internal/i2c/i2ctest"
)

func TestNewI2CDetectsPart(t *testing.T) {
	tests := []struct {
		name    string
		id      byte
		want    Part
		wantErr bool
	}{
		{name: "max30100", id: idMAX30100, want: PartMAX30100},
		{name: "max30102", id: idMAX30102, want: PartMAX30102},
		{name: "unknown", id: 0x99, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := &i2ctest.Record{}
			bus.QueueReply(regPartID, []byte{tt.id})
			d, err := NewI2C(bus, 0x57)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error for unrecognized part id")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewI2C: %v", err)
			}
			if d.Part() != tt.want {
				t.Errorf("Part() = %v, want %v", d.Part(), tt.want)
			}
			if d.Thresholds() != defaultThresholds[tt.want] {
				t.Errorf("Thresholds() = %+v, want %+v", d.Thresholds(), defaultThresholds[tt.want])
			}
		})
	}
}

func TestNewI2CUnrecognizedIDIsErrNotFound(t *testing.T) {
	bus := &i2ctest.Record{}
	bus.QueueReply(regPartID, []byte{0x99})
	_, err := NewI2C(bus, 0x57)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("NewI2C err = %v, want errors.Is match against ErrNotFound", err)
	}
}

func TestSampleParsesFIFOWord(t *testing.T) {
	bus := &i2ctest.Record{}
	bus.QueueReply(regPartID, []byte{idMAX30102})
	d, err := NewI2C(bus, 0x57)
	if err != nil {
		t.Fatalf("NewI2C: %v", err)
	}
	bus.QueueReply(regFIFOData, []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06})
	ir, red, err := d.Sample()
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if want := uint32(0x010203); ir != want {
		t.Errorf("ir = %#x, want %#x", ir, want)
	}
	if want := uint32(0x040506); red != want {
		t.Errorf("red = %#x, want %#x", red, want)
	}
}
