package service

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"sheet_judge/internal/domain/model"

	"github.com/pelletier/go-toml/v2"
)

// sheetFile is the on-disk layout of a problem sheet, shared by problemctl and the admin
// import endpoint.
type sheetFile struct {
	ID       string        `toml:"id"`
	Title    string        `toml:"title"`
	Problems []problemFile `toml:"problems"`
}

type problemFile struct {
	ID            string     `toml:"id,omitempty"`
	Title         string     `toml:"title"`
	TimeLimitMs   int        `toml:"time_limit_ms"`
	MemoryLimitKb int        `toml:"memory_limit_kb"`
	Status        string     `toml:"status,omitempty"`
	Tests         []testFile `toml:"tests"`
}

type testFile struct {
	Input  string `toml:"input,multiline"`
	Output string `toml:"output,multiline"`
}

func decodeSheet(r io.Reader) (*sheetFile, error) {
	var sf sheetFile
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(&sf); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("unknown keys in sheet file:\n%s", strict.String())
		}
		return nil, fmt.Errorf("failed to parse sheet file: %w", err)
	}
	return &sf, nil
}

func encodeSheet(sheet *model.Sheet, problems []model.Problem) ([]byte, error) {
	sf := sheetFile{ID: sheet.ID, Title: sheet.Title}
	for _, p := range problems {
		pf := problemFile{
			ID:            p.ID,
			Title:         p.Title,
			TimeLimitMs:   p.TimeLimitMs,
			MemoryLimitKb: p.MemoryLimitKb,
			Status:        string(p.Status),
		}
		for _, tc := range p.TestCases {
			pf.Tests = append(pf.Tests, testFile{Input: tc.Input, Output: tc.ExpectedOutput})
		}
		sf.Problems = append(sf.Problems, pf)
	}

	buf := bytes.NewBuffer(make([]byte, 0))
	err := toml.NewEncoder(buf).
		SetTablesInline(false).
		SetIndentTables(true).Encode(sf)
	if err != nil {
		return nil, fmt.Errorf("failed to encode the sheet file: %w", err)
	}
	return buf.Bytes(), nil
}
