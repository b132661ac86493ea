// Package erc725 derives ERC725Y data keys and builds the batched key/value
// payloads used to register collections against a profile's issued-assets
// index.
package erc725

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	issuedAssetsArrayName = "LSP12IssuedAssets[]"
	issuedAssetsMapName   = "LSP12IssuedAssetsMap"
	profileDataName       = "LSP3Profile"
	assetMetadataName     = "LSP4Metadata"
)

// lsp8InterfaceID marks issued assets as identifiable collections in the
// reverse-lookup map.
var lsp8InterfaceID = []byte{0x3a, 0x27, 0x17, 0x06}

// NamedKey derives the data key for a singleton name.
func NamedKey(name string) common.Hash {
	return common.BytesToHash(crypto.Keccak256([]byte(name)))
}

// ArrayElementKey derives the key of one array slot: the first 16 bytes of
// the array key followed by the index as a big-endian uint128.
func ArrayElementKey(arrayKey common.Hash, index uint64) common.Hash {
	var key common.Hash
	copy(key[:16], arrayKey[:16])
	binary.BigEndian.PutUint64(key[24:], index)
	return key
}

// MappingKey derives a <name>:<address> mapping key: first 10 bytes of the
// name hash, two zero bytes, then the 20-byte address.
func MappingKey(name string, addr common.Address) common.Hash {
	var key common.Hash
	copy(key[:10], crypto.Keccak256([]byte(name))[:10])
	copy(key[12:], addr[:])
	return key
}

// ProfileDataKey is the key holding a profile's metadata reference.
func ProfileDataKey() common.Hash {
	return NamedKey(profileDataName)
}

// AssetMetadataKey is the per-record key holding the envelope reference.
func AssetMetadataKey() common.Hash {
	return NamedKey(assetMetadataName)
}

// IssuedAssetsArrayKey is the key holding the issued-assets array length.
func IssuedAssetsArrayKey() common.Hash {
	return NamedKey(issuedAssetsArrayName)
}

// IssuedAssetsElementKey is the key of slot index in the issued-assets array.
func IssuedAssetsElementKey(index uint64) common.Hash {
	return ArrayElementKey(IssuedAssetsArrayKey(), index)
}

// ArrayLength decodes an array-length value (uint128, big endian). A missing
// value reads as zero.
func ArrayLength(value []byte) uint64 {
	if len(value) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(value[len(value)-8:])
}

func encodeArrayLength(n uint64) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[8:], n)
	return buf
}

// IssuedAssetsRegistration builds the setDataBatch payload that records a new
// collection at the next free array slot plus its reverse-lookup marker.
func IssuedAssetsRegistration(currentLength uint64, collection common.Address) ([]common.Hash, [][]byte) {
	mapValue := make([]byte, 0, 20)
	mapValue = append(mapValue, lsp8InterfaceID...)
	mapValue = append(mapValue, encodeArrayLength(currentLength)...)

	keys := []common.Hash{
		IssuedAssetsArrayKey(),
		IssuedAssetsElementKey(currentLength),
		MappingKey(issuedAssetsMapName, collection),
	}
	values := [][]byte{
		encodeArrayLength(currentLength + 1),
		collection.Bytes(),
		mapValue,
	}
	return keys, values
}
