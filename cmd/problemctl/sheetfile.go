package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Sheets with large tests are kept zstd-compressed; the .zst suffix selects it.
const zstdSuffix = ".zst"

type zstdReadCloser struct {
	*zstd.Decoder
	file *os.File
}

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return z.file.Close()
}

func openSheetFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sheet file: %w", err)
	}
	if !strings.HasSuffix(path, zstdSuffix) {
		return f, nil
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return zstdReadCloser{Decoder: dec, file: f}, nil
}

func writeSheetFile(path string, doc []byte) error {
	if strings.HasSuffix(path, zstdSuffix) {
		zstdEncoder, err := zstd.NewWriter(nil)
		if err != nil {
			return fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		defer zstdEncoder.Close()
		doc = zstdEncoder.EncodeAll(doc, make([]byte, 0, len(doc)))
	}
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		return fmt.Errorf("failed to write sheet file: %w", err)
	}
	return nil
}
