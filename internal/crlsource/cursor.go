package crlsource

import (
	"fmt"
	"io"
	"os"
)

// derCursor walks a DER file tag-by-tag without buffering more than one
// field at a time. It never supports BER indefinite-length encoding, which
// DER forbids, so a missing length octet is always an error rather than a
// search for an end-of-contents marker.
type derCursor struct {
	f   *os.File
	pos int64
}

func newDERCursor(f *os.File) *derCursor {
	return &derCursor{f: f}
}

// readHeader reads one tag octet and its length, returning the tag, the
// declared content length, and the raw header bytes (so callers that need
// the full TLV encoding, not just the content, can reassemble it without a
// second read).
func (c *derCursor) readHeader() (tag byte, length int, header []byte, err error) {
	var b [2]byte
	if _, err = io.ReadFull(c.f, b[:]); err != nil {
		return 0, 0, nil, err
	}
	c.pos += 2
	tag = b[0]
	header = append(header, b[0], b[1])

	if b[1]&0x80 == 0 {
		return tag, int(b[1]), header, nil
	}

	n := int(b[1] &^ 0x80)
	if n == 0 || n > 4 {
		return 0, 0, nil, fmt.Errorf("crlsource: unsupported DER length form (%d octets)", n)
	}
	lenBytes := make([]byte, n)
	if _, err = io.ReadFull(c.f, lenBytes); err != nil {
		return 0, 0, nil, err
	}
	c.pos += int64(n)
	header = append(header, lenBytes...)
	for _, octet := range lenBytes {
		length = length<<8 | int(octet)
	}
	return tag, length, header, nil
}

// readTLV reads one full tag-length-value field into memory. Used only for
// fields that are small regardless of CRL size: version, algorithm
// identifiers, issuer name, timestamps, a single revoked-cert entry, and
// the crlExtensions/signature trailer. The potentially enormous
// revokedCertificates SEQUENCE OF is never passed through this method.
func (c *derCursor) readTLV() (tag byte, header, content []byte, err error) {
	tag, length, header, err = c.readHeader()
	if err != nil {
		return 0, nil, nil, err
	}
	content = make([]byte, length)
	if _, err = io.ReadFull(c.f, content); err != nil {
		return 0, nil, nil, err
	}
	c.pos += int64(length)
	return tag, header, content, nil
}

// peekTag reports the next tag octet without consuming it.
func (c *derCursor) peekTag() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(c.f, b[:]); err != nil {
		return 0, err
	}
	if _, err := c.f.Seek(-1, io.SeekCurrent); err != nil {
		return 0, err
	}
	return b[0], nil
}

// skip advances n content octets without reading them into memory — how the
// cursor steps over revokedCertificates once it has recorded that field's
// offset and length for the entry iterator to window over separately.
func (c *derCursor) skip(n int) error {
	if n == 0 {
		return nil
	}
	if _, err := c.f.Seek(int64(n), io.SeekCurrent); err != nil {
		return err
	}
	c.pos += int64(n)
	return nil
}
