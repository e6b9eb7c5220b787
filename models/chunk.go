package models

import (
	"encoding/json"
	"strings"
)

// ChunkType identifies where a chunk's text came from
type ChunkType string

const (
	ChunkTypeWeb  ChunkType = "web"
	ChunkTypePDF  ChunkType = "pdf"
	ChunkTypeDOCX ChunkType = "docx"
	ChunkTypeXLSX ChunkType = "xlsx"
)

// ChunkTypeFromExt maps a file extension (with or without the dot) to a ChunkType.
func ChunkTypeFromExt(ext string) (ChunkType, bool) {
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "pdf":
		return ChunkTypePDF, true
	case "docx":
		return ChunkTypeDOCX, true
	case "xlsx":
		return ChunkTypeXLSX, true
	}
	return "", false
}

// Chunk is a bounded span of crawled text with provenance. Chunks are
// produced by ingestion and never mutated afterwards.
type Chunk struct {
	Text   string    `json:"chunk"`
	Source string    `json:"source"`
	Type   ChunkType `json:"type,omitempty"`
}

// chunkRecord mirrors the on-disk layout, which has used both "text" and
// "chunk" as the body key over time.
type chunkRecord struct {
	Text   string    `json:"text"`
	Chunk  string    `json:"chunk"`
	Source string    `json:"source"`
	Type   ChunkType `json:"type"`
}

// UnmarshalJSON accepts either body key; the first non-empty of "text" and
// "chunk" wins.
func (c *Chunk) UnmarshalJSON(data []byte) error {
	var rec chunkRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	c.Text = rec.Text
	if c.Text == "" {
		c.Text = rec.Chunk
	}
	c.Source = rec.Source
	if c.Source == "" {
		c.Source = "unknown"
	}
	c.Type = rec.Type
	return nil
}

// IsBlank reports whether the chunk carries no usable text.
func (c Chunk) IsBlank() bool {
	return strings.TrimSpace(c.Text) == ""
}
