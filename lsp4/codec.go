// Package lsp4 implements the metadata envelope carried by every story
// record: an LSP4-shaped JSON document referenced on chain through a
// VerifiableURI. Encoding is deterministic so that two encodes of the same
// record produce byte-identical output, which the content-hash verification
// relies on.
package lsp4

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// VerificationMethodKeccakBytes is the verification method for binary
	// attachments (images).
	VerificationMethodKeccakBytes = "keccak256(bytes)"

	// VerificationMethodKeccakUTF8 is the verification method for the
	// envelope JSON itself.
	VerificationMethodKeccakUTF8 = "keccak256(utf8)"

	AttributeAuthor    = "author"
	AttributeCreatedAt = "createdAt"

	AttributeTypeString = "string"
	AttributeTypeNumber = "number"
)

// SchemaMismatchError indicates bytes that are not an envelope this codec
// produces.
type SchemaMismatchError struct {
	Detail string
}

func (e SchemaMismatchError) Error() string {
	if e.Detail == "" {
		return "metadata schema mismatch"
	}
	return fmt.Sprintf("metadata schema mismatch: %s", e.Detail)
}

func (e SchemaMismatchError) Is(target error) bool {
	_, ok := target.(SchemaMismatchError)
	if !ok {
		_, ok = target.(*SchemaMismatchError)
	}
	return ok
}

// MissingAttributeError indicates a decoded envelope without a required
// attribute. Readers recover from it per record; it never aborts a full
// history reconstruction.
type MissingAttributeError struct {
	Key string
}

func (e MissingAttributeError) Error() string {
	return fmt.Sprintf("required attribute %q missing", e.Key)
}

func (e MissingAttributeError) Is(target error) bool {
	_, ok := target.(MissingAttributeError)
	if !ok {
		_, ok = target.(*MissingAttributeError)
	}
	return ok
}

// Verification names the hash algorithm and carries the hash of the
// referenced bytes.
type Verification struct {
	Method string `json:"method"`
	Data   string `json:"data"`
}

// Image is an attachment entry. Data lives at URL; Verification binds the
// entry to the exact bytes.
type Image struct {
	Width        int          `json:"width"`
	Height       int          `json:"height"`
	URL          string       `json:"url"`
	Verification Verification `json:"verification"`
}

// Link is an external reference shown alongside the asset.
type Link struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Attribute is a typed key/value pair. Order is preserved on encode but
// lookup is by key.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Type  string `json:"type"`
}

// Record is the structured form of one envelope.
type Record struct {
	Title       string      `json:"-"`
	Description string      `json:"-"`
	Links       []Link      `json:"-"`
	Images      []Image     `json:"-"`
	Attributes  []Attribute `json:"-"`
}

// metadata is the LSP4 wire shape. Field order here fixes the canonical
// byte layout of the envelope.
type metadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Links       []Link      `json:"links"`
	Icon        []Image     `json:"icon"`
	Images      [][]Image   `json:"images"`
	Assets      []Image     `json:"assets"`
	Attributes  []Attribute `json:"attributes"`
}

type envelope struct {
	LSP4Metadata *metadata `json:"LSP4Metadata"`
}

// Encode serializes a record into its canonical envelope bytes.
func Encode(r Record) ([]byte, error) {
	m := metadata{
		Name:        r.Title,
		Description: r.Description,
		Links:       emptyIfNil(r.Links),
		Icon:        []Image{},
		Images:      [][]Image{},
		Assets:      []Image{},
		Attributes:  emptyIfNil(r.Attributes),
	}
	if len(r.Images) > 0 {
		m.Images = [][]Image{r.Images}
	}
	return json.Marshal(envelope{LSP4Metadata: &m})
}

// Decode parses envelope bytes back into a record. Bytes without the
// LSP4Metadata root are rejected with SchemaMismatchError rather than
// partially decoded.
func Decode(data []byte) (Record, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Record{}, SchemaMismatchError{Detail: err.Error()}
	}
	if env.LSP4Metadata == nil {
		return Record{}, SchemaMismatchError{Detail: "missing LSP4Metadata root"}
	}
	m := env.LSP4Metadata
	r := Record{
		Title:       m.Name,
		Description: m.Description,
		Links:       m.Links,
		Attributes:  m.Attributes,
	}
	if len(m.Images) > 0 {
		r.Images = m.Images[0]
	}
	return r, nil
}

// Attribute returns the value for key, order-independent.
func (r Record) Attribute(key string) (string, bool) {
	for _, a := range r.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Author returns the required author attribute.
func (r Record) Author() (string, error) {
	v, ok := r.Attribute(AttributeAuthor)
	if !ok {
		return "", MissingAttributeError{Key: AttributeAuthor}
	}
	return v, nil
}

// CreatedAt returns the required createdAt attribute as seconds since epoch.
func (r Record) CreatedAt() (int64, error) {
	v, ok := r.Attribute(AttributeCreatedAt)
	if !ok {
		return 0, MissingAttributeError{Key: AttributeCreatedAt}
	}
	ts, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, SchemaMismatchError{Detail: fmt.Sprintf("createdAt is not a number: %q", v)}
	}
	return ts, nil
}

// NewImage builds an attachment entry for data stored at url, computing the
// content hash up front.
func NewImage(data []byte, width, height int, url string) Image {
	return Image{
		Width:  width,
		Height: height,
		URL:    url,
		Verification: Verification{
			Method: VerificationMethodKeccakBytes,
			Data:   hexutil.Encode(crypto.Keccak256(data)),
		},
	}
}

// VerifyImage checks data against the image's recorded hash.
func VerifyImage(img Image, data []byte) error {
	if img.Verification.Method != VerificationMethodKeccakBytes {
		return SchemaMismatchError{Detail: fmt.Sprintf("unknown verification method %q", img.Verification.Method)}
	}
	got := hexutil.Encode(crypto.Keccak256(data))
	if got != img.Verification.Data {
		return fmt.Errorf("attachment hash mismatch: recorded %s, got %s", img.Verification.Data, got)
	}
	return nil
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
