package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/pkg/errors"
)

type credentialResponse struct {
	JWT   string `json:"jwt"`
	Error string `json:"error,omitempty"`
}

type uploadResponse struct {
	CID      string `json:"CID"`
	IpfsHash string `json:"IpfsHash"`
}

// CredentialError distinguishes credential-issuing failures from upload
// failures. A missing credential aborts the store operation; the commit must
// fail rather than silently skip the image.
type CredentialError struct {
	Err error
}

func (e CredentialError) Error() string {
	return fmt.Sprintf("upload credential unavailable: %v", e.Err)
}

func (e CredentialError) Unwrap() error { return e.Err }

// UploadToken exposes credential issuance for callers staging their own
// uploads.
func (c *Client) UploadToken(ctx context.Context) (string, error) {
	return c.issueUploadToken(ctx)
}

// issueUploadToken fetches a short-lived, single-use upload JWT.
func (c *Client) issueUploadToken(ctx context.Context) (string, error) {
	var resp credentialResponse
	if err := c.postJSON(ctx, c.endpoints.Credential, nil, &resp); err != nil {
		return "", CredentialError{Err: err}
	}
	if resp.Error != "" {
		return "", CredentialError{Err: errors.New(resp.Error)}
	}
	if resp.JWT == "" {
		return "", CredentialError{Err: errors.New("empty credential")}
	}
	return resp.JWT, nil
}

// Store uploads data to the content store and returns its CID. Safe to retry:
// identical bytes may be re-uploaded, the store does not dedupe and has no
// delete.
func (c *Client) Store(ctx context.Context, data []byte, name string) (string, error) {
	token, err := c.issueUploadToken(ctx)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return "", errors.Wrap(err, "failed to build upload form")
	}
	if _, err := part.Write(data); err != nil {
		return "", errors.Wrap(err, "failed to build upload form")
	}
	if err := writer.Close(); err != nil {
		return "", errors.Wrap(err, "failed to build upload form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.Upload, &body)
	if err != nil {
		return "", errors.Wrap(err, "failed to create upload request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "upload failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("upload failed with status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read upload response")
	}

	var parsed uploadResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", errors.Wrap(err, "failed to decode upload response")
	}

	id := parsed.CID
	if id == "" {
		id = parsed.IpfsHash
	}
	if id == "" {
		return "", errors.New("upload response carries no content identifier")
	}
	decoded, err := cid.Decode(id)
	if err != nil {
		return "", errors.Wrapf(err, "store returned malformed CID %q", id)
	}
	if _, err := multihash.Decode(decoded.Hash()); err != nil {
		return "", errors.Wrapf(err, "store returned CID with malformed multihash %q", id)
	}

	c.logger.Debug().Str("cid", id).Str("name", name).Int("bytes", len(data)).Msg("stored blob")
	return id, nil
}
