package medium

import "testing"

func TestParseKind(t *testing.T) {
	tests := []struct {
		id      string
		want    Kind
		wantErr bool
	}{
		{"tp1", TP1, false},
		{"TP1", TP1, false},
		{"p110", PL110, false},
		{"pl110", PL110, false},
		{"rf", RF, false},
		{"knxip", KNXIP, false},
		{"ip", KNXIP, false},
		{"tp0", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := ParseKind(tt.id)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKind(%q) error = %v, wantErr = %v", tt.id, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ParseKind(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    IndividualAddress
		wantErr bool
	}{
		{"0.0.0", 0, false},
		{"1.1.1", 0x1101, false},
		{"15.15.255", 0xffff, false},
		{"16.0.0", 0, true},
		{"1.16.0", 0, true},
		{"1.1.256", 0, true},
		{"1.1", 0, true},
		{"a.b.c", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAddress(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAddress(%q) error = %v, wantErr = %v", tt.in, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ParseAddress(%q) = %#x, want %#x", tt.in, got, tt.want)
			}
		})
	}
}

func TestIndividualAddress_RoundTrip(t *testing.T) {
	for _, s := range []string{"0.0.0", "1.1.1", "15.15.255", "2.7.130"} {
		a, err := ParseAddress(s)
		if err != nil {
			t.Fatal(err)
		}
		if a.String() != s {
			t.Errorf("round trip %q -> %q", s, a.String())
		}
	}
}

func TestUnregisteredConstant(t *testing.T) {
	if Unregistered != Address(15, 15, 255) {
		t.Errorf("Unregistered = %#x, want %#x", Unregistered, Address(15, 15, 255))
	}
}

func TestSettings_Defaults(t *testing.T) {
	s := NewSettings(TP1)
	if s.DeviceAddress() != BackboneRouter {
		t.Errorf("default device address = %v, want %v", s.DeviceAddress(), BackboneRouter)
	}
	s.SetDeviceAddress(Address(1, 1, 254))
	if got := s.DeviceAddress().String(); got != "1.1.254" {
		t.Errorf("device address = %s, want 1.1.254", got)
	}
}
