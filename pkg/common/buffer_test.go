package common

import "testing"

func TestHexDump(t *testing.T) {
	data := []byte{
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77,
		0x88, 0x99, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF,
		0x48, 0x65, 0x6C, 0x6C, 0x6F, // "Hello"
	}

	dump := HexDump(data)

	// Just verify it produces output
	if len(dump) == 0 {
		t.Error("HexDump() returned empty string")
	}

	// Should contain hex representation
	if len(dump) < len(data)*3 {
		t.Error("HexDump() output seems too short")
	}
}

func TestHexDump_UsedForDriverFrameDiagnostics(t *testing.T) {
	// cmd/pfwd logs every frame it would deliver to the client with
	// HexDump (main.go); a frame shorter than one line must still render
	// without padding past its own length.
	frame := []byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	dump := HexDump(frame)

	if dump == "" {
		t.Fatal("HexDump() returned empty string for short frame")
	}
	wantPrefix := "0000  02 00 00 00 00 01"
	if len(dump) < len(wantPrefix) || dump[:len(wantPrefix)] != wantPrefix {
		t.Errorf("HexDump() = %q, want prefix %q", dump, wantPrefix)
	}
}
