package medium

import (
	"encoding/binary"

	kerrors "knxtool/internal/errors"
)

// Domain address widths by medium.
const (
	domainLenPL = 2
	domainLenRF = 6
)

// DomainAddress encodes a 64-bit domain value as the big-endian byte
// address of the given medium: 2 bytes on power line, 6 bytes on radio
// frequency.  Values exceeding the target width are silently truncated
// to the low-order bits.  Other media fail with a configuration error.
func DomainAddress(value uint64, kind Kind) ([]byte, error) {
	var width int
	switch kind {
	case PL110:
		width = domainLenPL
	case RF:
		width = domainLenRF
	default:
		return nil, &kerrors.ConfigError{
			Field:   "domain",
			Value:   value,
			Message: kind.String() + " networks don't use domain addresses",
			Hint:    "use --medium to specify the KNX network medium",
		}
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], value)
	domain := make([]byte, width)
	copy(domain, buf[8-width:])
	return domain, nil
}
