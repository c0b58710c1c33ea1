// Package der writes a DER GeneralizedTime, the one shape the response
// template cache stamps per response, directly into caller-owned buffers,
// without touching encoding/asn1 on the hot path.
package der

import (
	"fmt"
	"time"
)

// GeneralizedTimeLen is the total byte length of a DER GeneralizedTime TLV:
// tag(1) + length(1) + "YYYYMMDDhhmmssZ"(15).
const GeneralizedTimeLen = 17

const generalizedTimeTag = 0x18 // UNIVERSAL 24, primitive

// WriteGeneralizedTime encodes t (truncated to whole seconds, UTC) as a DER
// GeneralizedTime TLV and writes exactly GeneralizedTimeLen bytes into buf
// starting at offset. buf must have at least offset+GeneralizedTimeLen bytes.
func WriteGeneralizedTime(t time.Time, buf []byte, offset int) error {
	if offset < 0 || offset+GeneralizedTimeLen > len(buf) {
		return fmt.Errorf("der: buffer too small for GeneralizedTime at offset %d (need %d, have %d)", offset, GeneralizedTimeLen, len(buf)-offset)
	}

	buf[offset] = generalizedTimeTag
	buf[offset+1] = 0x0F // content length, always 15 for "YYYYMMDDhhmmssZ"

	content := t.UTC().Format("20060102150405") // 14 bytes: YYYYMMDDhhmmss
	copy(buf[offset+2:offset+16], content)
	buf[offset+16] = 'Z'
	return nil
}
