package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/klauspost/compress/zlib"

	"openplay-server/internal/rotation"
)

var ErrInvalidShareLink = errors.New("INVALID_SHARE_LINK: Shared session could not be decoded")

// maxSharedSnapshot bounds the inflated size of a decoded link.
const maxSharedSnapshot = 4 << 20

// EncodeSnapshot deflates the session JSON and encodes it as unpadded base64url,
// suitable for a ?session= query parameter.
func EncodeSnapshot(s *rotation.Session) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return "", fmt.Errorf("compress snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("compress snapshot: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeSnapshot reverses EncodeSnapshot. Padding is tolerated.
func DecodeSnapshot(encoded string) (*rotation.Session, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShareLink, err)
	}

	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShareLink, err)
	}
	defer zr.Close()

	data, err := io.ReadAll(io.LimitReader(zr, maxSharedSnapshot))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShareLink, err)
	}

	var s rotation.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShareLink, err)
	}
	return &s, nil
}

// ShareLink returns "<baseURL>?session=<encoded snapshot>".
func ShareLink(baseURL string, s *rotation.Session) (string, error) {
	encoded, err := EncodeSnapshot(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s?session=%s", strings.TrimRight(baseURL, "/"), encoded), nil
}

// QRCodeURL points at a public QR renderer for the link.
func QRCodeURL(link string, size int) string {
	return fmt.Sprintf("https://api.qrserver.com/v1/create-qr-code/?size=%dx%d&data=%s", size, size, url.QueryEscape(link))
}
