package protocol

import "errors"

var (
	// ErrVarintTruncated reports a varint cut off by the end of the
	// payload.
	ErrVarintTruncated = errors.New("varint truncated")
	// ErrVarintOverflow reports a varint wider than 32 bits.
	ErrVarintOverflow = errors.New("varint overflows uint32")
	// ErrShortPayload reports a payload missing a fixed field.
	ErrShortPayload = errors.New("payload too short")
)

// AppendUvarint appends v to dst in LEB128 form: 7 bits per byte,
// least significant group first, high bit set on every byte but the
// last.
func AppendUvarint(dst []byte, v uint32) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// ReadUvarint decodes a LEB128 varint from the front of *data and
// advances the slice past the consumed bytes.
func ReadUvarint(data *[]byte) (uint32, error) {
	var v uint32
	var shift uint
	for i, b := range *data {
		if shift >= 32 || (shift == 28 && b > 0x0F) {
			return 0, ErrVarintOverflow
		}
		v |= uint32(b&0x7F) << shift
		if b&0x80 == 0 {
			*data = (*data)[i+1:]
			return v, nil
		}
		shift += 7
	}
	return 0, ErrVarintTruncated
}

// ReadByte pops the first byte of *data.
func ReadByte(data *[]byte) (byte, error) {
	if len(*data) == 0 {
		return 0, ErrShortPayload
	}
	b := (*data)[0]
	*data = (*data)[1:]
	return b, nil
}
