package admin

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/furetosan/cjdnsadmin/internal/bencode"
)

// txidLen is the wire length of a transaction id: 4 handle bytes hex encoded.
const txidLen = 8

// encodeTxid renders a request handle as the wire txid: the 4 raw bytes of
// the handle in little-endian order as 8 lowercase hex characters. The byte
// order matches the reference daemon tooling on common hardware, so txids
// round-trip bit-exactly against it.
func encodeTxid(handle uint32) bencode.String {
	var raw [4]byte
	binary.LittleEndian.PutUint32(raw[:], handle)
	dst := make([]byte, txidLen)
	hex.Encode(dst, raw[:])
	return bencode.String(dst)
}

// decodeTxid parses a wire txid back into a handle. It requires exactly 8
// lowercase-or-uppercase hex characters.
func decodeTxid(txid bencode.String) (uint32, bool) {
	if len(txid) != txidLen {
		return 0, false
	}
	var raw [4]byte
	if _, err := hex.Decode(raw[:], txid); err != nil {
		return 0, false
	}
	return binary.LittleEndian.Uint32(raw[:]), true
}
