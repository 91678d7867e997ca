package wire

import "testing"

func TestParsePASV(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"standard", "227 Entering Passive Mode (192,168,1,1,195,149)", "192.168.1.1:50069", false},
		{"loopback", "227 Entering Passive Mode (127,0,0,1,4,1)", "127.0.0.1:1025", false},
		{"missing parens", "227 Entering Passive Mode 127,0,0,1,4,1", "", true},
		{"octet out of range", "227 Entering Passive Mode (300,0,0,1,4,1)", "", true},
		{"port out of range", "227 Entering Passive Mode (127,0,0,1,256,1)", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePASV(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parsePASV() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parsePASV() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseEPSV(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"standard", "229 Entering Extended Passive Mode (|||6446|)", "6446", false},
		{"zero port", "229 Entering Extended Passive Mode (|||0|)", "", true},
		{"too large", "229 Entering Extended Passive Mode (|||70000|)", "", true},
		{"garbage", "229 whatever", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseEPSV(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseEPSV() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseEPSV() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveDataAddr(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		pasvAddr    string
		controlHost string
		want        string
	}{
		{"normal address", "192.168.1.5:12345", "10.0.0.1", "192.168.1.5:12345"},
		{"zero address", "0.0.0.0:12345", "10.0.0.1", "10.0.0.1:12345"},
		{"invalid address", "invalid", "10.0.0.1", "invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveDataAddr(tt.pasvAddr, tt.controlHost); got != tt.want {
				t.Errorf("resolveDataAddr() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatPORTAndEPRT(t *testing.T) {
	t.Parallel()

	got, err := formatPORT("192.168.1.100:50000")
	if err != nil {
		t.Fatalf("formatPORT: %v", err)
	}
	if want := "192,168,1,100,195,80"; got != want {
		t.Errorf("formatPORT() = %q, want %q", got, want)
	}

	if _, err := formatPORT("[::1]:21"); err == nil {
		t.Error("formatPORT() accepted an IPv6 address")
	}

	got, err = formatEPRT("[::1]:2121")
	if err != nil {
		t.Fatalf("formatEPRT: %v", err)
	}
	if want := "|2|::1|2121|"; got != want {
		t.Errorf("formatEPRT() = %q, want %q", got, want)
	}

	got, err = formatEPRT("10.0.0.1:2121")
	if err != nil {
		t.Fatalf("formatEPRT: %v", err)
	}
	if want := "|1|10.0.0.1|2121|"; got != want {
		t.Errorf("formatEPRT() = %q, want %q", got, want)
	}
}
