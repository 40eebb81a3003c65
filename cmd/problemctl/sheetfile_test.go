package main

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSheetFileRoundTrip(t *testing.T) {
	doc := []byte("title = \"DP basics\"\n")
	for _, name := range []string{"sheet.toml", "sheet.toml.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, writeSheetFile(path, doc))

			r, err := openSheetFile(path)
			require.NoError(t, err)
			defer r.Close()

			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, doc, got)
		})
	}
}

func TestOpenSheetFileMissing(t *testing.T) {
	_, err := openSheetFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
