package models

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodeImage turns a wire image payload into raw bytes. Payloads may
// arrive with a data-URL style prefix ("data:image/png;base64,....")
// which is stripped before decoding. An empty payload yields nil.
func DecodeImage(payload string) ([]byte, error) {
	if payload == "" {
		return nil, nil
	}
	if i := strings.IndexByte(payload, ','); i >= 0 {
		payload = payload[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	return raw, nil
}

// EncodeImage is the inverse of DecodeImage, without any prefix.
func EncodeImage(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}
