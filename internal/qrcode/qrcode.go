// Package qrcode renders provisioning URIs as QR images in-process.
package qrcode

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
)

// ErrEmptyContent is returned when there is nothing to encode.
var ErrEmptyContent = errors.New("qrcode: empty content")

// defaultSize is the edge length in pixels when none is given.
const defaultSize = 256

// Render encodes content as a PNG QR code.
func Render(content string, size int) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if size <= 0 {
		size = defaultSize
	}
	png, errEncode := skipqrcode.Encode(content, skipqrcode.Medium, size)
	if errEncode != nil {
		return nil, fmt.Errorf("qrcode: encode: %w", errEncode)
	}
	return png, nil
}

// RenderDataURI encodes content as a base64 PNG data URI suitable for an
// <img> tag.
func RenderDataURI(content string, size int) (string, error) {
	png, errRender := Render(content, size)
	if errRender != nil {
		return "", errRender
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
