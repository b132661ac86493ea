package lsp4

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// VerifiableURI layout:
//
//	0x0000 | bytes4 method id | uint16 hash length | hash | utf8 url
//
// The leading two bytes are the envelope schema version; anything else is a
// schema this codec does not speak.
var (
	verifiableURIVersion = []byte{0x00, 0x00}
	keccakUTF8MethodID   = crypto.Keccak256([]byte(VerificationMethodKeccakUTF8))[:4]
)

// VerifiableURI is the decoded form of an on-chain envelope reference.
type VerifiableURI struct {
	Hash []byte
	URL  string
}

// EncodeVerifiableURI binds the envelope payload bytes to the URL they are
// retrievable from.
func EncodeVerifiableURI(payload []byte, url string) []byte {
	hash := crypto.Keccak256(payload)
	buf := make([]byte, 0, 2+4+2+len(hash)+len(url))
	buf = append(buf, verifiableURIVersion...)
	buf = append(buf, keccakUTF8MethodID...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(hash)))
	buf = append(buf, hash...)
	buf = append(buf, []byte(url)...)
	return buf
}

// DecodeVerifiableURI parses an on-chain reference. Unknown version or
// verification method bytes yield SchemaMismatchError; no partial decode is
// attempted.
func DecodeVerifiableURI(data []byte) (VerifiableURI, error) {
	if len(data) < 8 {
		return VerifiableURI{}, SchemaMismatchError{Detail: "reference too short"}
	}
	if !bytes.Equal(data[:2], verifiableURIVersion) {
		return VerifiableURI{}, SchemaMismatchError{Detail: fmt.Sprintf("unknown reference version 0x%x", data[:2])}
	}
	if !bytes.Equal(data[2:6], keccakUTF8MethodID) {
		return VerifiableURI{}, SchemaMismatchError{Detail: fmt.Sprintf("unknown verification method 0x%x", data[2:6])}
	}
	hashLen := int(binary.BigEndian.Uint16(data[6:8]))
	if len(data) < 8+hashLen {
		return VerifiableURI{}, SchemaMismatchError{Detail: "truncated hash"}
	}
	return VerifiableURI{
		Hash: data[8 : 8+hashLen],
		URL:  string(data[8+hashLen:]),
	}, nil
}

// VerifyPayload checks payload bytes against the hash recorded in the
// reference.
func (v VerifiableURI) VerifyPayload(payload []byte) error {
	if !bytes.Equal(crypto.Keccak256(payload), v.Hash) {
		return fmt.Errorf("envelope hash mismatch for %s", v.URL)
	}
	return nil
}
