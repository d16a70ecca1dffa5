// Package encx holds the byte encodings shared by the password and token
// packages: unpadded base64url and lowercase hex.
//
// Decoding is strict: padding, non-alphabet characters and non-canonical
// trailing bits are rejected, so every accepted string maps to exactly one
// byte sequence.
package encx

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	ErrB64uDecode = errors.New("fail to b64u decode")
	ErrHexDecode  = errors.New("fail to hex decode")
	ErrNotUTF8    = errors.New("decoded bytes are not utf-8")
)

var b64u = base64.RawURLEncoding.Strict()

// B64uEncode encodes content as base64url without padding.
func B64uEncode(content []byte) string {
	return b64u.EncodeToString(content)
}

// B64uEncodeString is B64uEncode for string input.
func B64uEncodeString(content string) string {
	return b64u.EncodeToString([]byte(content))
}

func B64uDecode(s string) ([]byte, error) {
	b, err := b64u.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrB64uDecode, err)
	}
	return b, nil
}

// B64uDecodeToString decodes s and requires the result to be valid UTF-8.
func B64uDecodeToString(s string) (string, error) {
	b, err := B64uDecode(s)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: %w", ErrB64uDecode, ErrNotUTF8)
	}
	return string(b), nil
}

func HexEncode(content []byte) string {
	return hex.EncodeToString(content)
}

func HexDecode(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHexDecode, err)
	}
	return b, nil
}

func HexDecodeToString(s string) (string, error) {
	b, err := HexDecode(s)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: %w", ErrHexDecode, ErrNotUTF8)
	}
	return string(b), nil
}
