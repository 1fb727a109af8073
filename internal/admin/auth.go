package admin

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/furetosan/cjdnsadmin/internal/bencode"
)

// passwordHash derives the first-pass authentication token:
// hex(sha256(password ++ ascii_decimal(cookie_number))). The cookie number is
// the base-10 integer parsed from the cookie string, truncated to 32 bits the
// way the daemon does it; a missing or unparseable cookie counts as 0.
func passwordHash(password []byte, cookie string) string {
	n, _ := strconv.ParseInt(cookie, 10, 64)
	preimage := fmt.Sprintf("%s%d", password, uint32(n))
	sum := sha256.Sum256([]byte(preimage))
	return hex.EncodeToString(sum[:])
}

// signEnvelope builds the wire bytes of an authenticated call. The message
// must already carry q, aq, args and txid. The two-pass hash is a commitment:
//
//  1. hash = hex(sha256(password ++ cookie_number)) and the cookie string are
//     inserted into the message, which is then serialized.
//  2. The serialized bytes are hashed, and that digest replaces the hash
//     field. Both digests render as 64 hex characters, so re-encoding after
//     the substitution yields byte-identical framing to the reference
//     implementation's in-place overwrite.
//
// The daemon verifies by recomputing pass 2 over the received frame with the
// password hash restored, proving the client knew the password bound to this
// cookie.
func signEnvelope(msg *bencode.Dict, password []byte, cookie string, max int) ([]byte, error) {
	msg.Set("hash", bencode.String(passwordHash(password, cookie)))
	msg.Set("cookie", bencode.String(cookie))

	first, err := bencode.EncodeBounded(msg, max)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(first)
	msg.Set("hash", bencode.String(hex.EncodeToString(sum[:])))

	return bencode.EncodeBounded(msg, max)
}
