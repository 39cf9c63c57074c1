package qrcode

import (
	"bytes"
	"errors"
	"image/png"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
)

const DefaultSize = 320

var ErrEmptyContent = errors.New("qrcode_empty_content")

// Renderer turns a URL into a PNG image.
type Renderer interface {
	PNG(content string, size int) ([]byte, error)
}

type BarcodeRenderer struct{}

func New() Renderer {
	return &BarcodeRenderer{}
}

func (r *BarcodeRenderer) PNG(content string, size int) ([]byte, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if size <= 0 {
		size = DefaultSize
	}

	code, err := qr.Encode(content, qr.M, qr.Auto)
	if err != nil {
		return nil, err
	}
	scaled, err := barcode.Scale(code, size, size)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
