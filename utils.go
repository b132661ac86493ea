package adventure

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const ipfsScheme = "ipfs://"

// ResolveIPFSURL rewrites an ipfs:// URL into a fetchable gateway URL.
// Non-ipfs URLs pass through unchanged.
func ResolveIPFSURL(gateway, url string) string {
	if !strings.HasPrefix(url, ipfsScheme) {
		return url
	}
	return strings.TrimSuffix(gateway, "/") + "/" + strings.TrimPrefix(url, ipfsScheme)
}

// IPFSURI composes the canonical ipfs:// form of a CID.
func IPFSURI(cid string) string {
	return ipfsScheme + cid
}

// IsProfileAddress reports whether s is a well-formed profile address.
func IsProfileAddress(s string) bool {
	return common.IsHexAddress(s)
}
