// Package badge implements the scannable badge token scheme and QR rendering.
//
// A badge token is the constant prefix followed by the attendee's decimal id,
// e.g. "USER-42". There is no checksum: the printed string stays readable and
// debuggable, and the id space is server-assigned so collisions cannot occur.
package badge

import (
	"strconv"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// Prefix marks a badge token. Scanners reject anything without it.
const Prefix = "USER-"

// QRSize is the pixel width/height of generated QR images.
const QRSize = 256

// Encode returns the badge token for an attendee id.
func Encode(id int64) string {
	return Prefix + strconv.FormatInt(id, 10)
}

// Decode parses a badge token back into an attendee id. It is total: any
// malformed input (empty, missing prefix, non-numeric or negative remainder,
// trailing characters) returns ok=false, never an error or panic.
func Decode(token string) (int64, bool) {
	rest, found := strings.CutPrefix(token, Prefix)
	if !found || rest == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

// QR renders the token as a PNG QR code. High error correction matches what
// gets printed on paper badges that take a beating during the event.
func QR(token string) ([]byte, error) {
	return qrcode.Encode(token, qrcode.Highest, QRSize)
}
