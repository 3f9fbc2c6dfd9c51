package protocol

import "testing"

func TestCRC16Vectors(t *testing.T) {
	cases := []struct {
		data []byte
		want uint16
	}{
		// The CRC of nothing is the initial register.
		{[]byte{}, 0xFFFF},
	}
	for i, tc := range cases {
		if got := CRC16(tc.data); got != tc.want {
			t.Errorf("Case %d: expected %04X, got %04X", i, tc.want, got)
		}
	}
}

func TestCRC16Consistency(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	if CRC16(data) != CRC16(data) {
		t.Error("Expected the same input to produce the same checksum")
	}
}

func TestCRC16DetectsSingleByteChange(t *testing.T) {
	a := []byte{0x01, 0x02, 0x03}
	b := []byte{0x01, 0x02, 0x04}
	if CRC16(a) == CRC16(b) {
		t.Errorf("Expected different checksums, both %04X", CRC16(a))
	}
}

func TestCRC16DetectsTransposition(t *testing.T) {
	a := []byte{0xA0, 0x0B, 0x0C}
	b := []byte{0xA0, 0x0C, 0x0B}
	if CRC16(a) == CRC16(b) {
		t.Error("Expected swapped bytes to change the checksum")
	}
}
