// Package pack bundles knowledge entries into portable .skp files
package pack

import (
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/stratakb/strata/internal/knowledge"
)

// Magic bytes for .skp files: SKPK
var MagicBytes = []byte{0x53, 0x4B, 0x50, 0x4B}

// Version 1
const Version = 1

// Manifest describes the pack metadata
type Manifest struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	Namespace   string    `json:"namespace"`
	Version     string    `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	EntryCount  int       `json:"entry_count"`
	Tags        []string  `json:"tags"`
}

// Payload is the JSON content inside the gzip stream
type Payload struct {
	Manifest Manifest                   `json:"manifest"`
	Entries  []knowledge.KnowledgeEntry `json:"entries"`
}

// Package creates a .skp file from knowledge entries
func Package(manifest Manifest, entries []knowledge.KnowledgeEntry, outputPath string) error {
	manifest.EntryCount = len(entries)
	payload := Payload{
		Manifest: manifest,
		Entries:  entries,
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	// Write Magic Bytes
	if _, err := f.Write(MagicBytes); err != nil {
		return fmt.Errorf("failed to write magic bytes: %w", err)
	}

	// Write Version
	if err := binary.Write(f, binary.LittleEndian, uint8(Version)); err != nil {
		return fmt.Errorf("failed to write version: %w", err)
	}

	// Encode JSON to Gzip
	gz := gzip.NewWriter(f)
	defer gz.Close()

	encoder := json.NewEncoder(gz)
	if err := encoder.Encode(payload); err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	return nil
}

// Unpack reads a .skp file
func Unpack(inputPath string) (*Payload, error) {
	f, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	// Check Magic Bytes
	magic := make([]byte, 4)
	if _, err := f.Read(magic); err != nil {
		return nil, fmt.Errorf("failed to read magic bytes: %w", err)
	}
	for i := 0; i < 4; i++ {
		if magic[i] != MagicBytes[i] {
			return nil, fmt.Errorf("invalid file format: not a .skp file")
		}
	}

	// Check Version
	var version uint8
	if err := binary.Read(f, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("failed to read version: %w", err)
	}
	if version != Version {
		return nil, fmt.Errorf("unsupported version: %d (expected %d)", version, Version)
	}

	// Read Gzip
	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	// Decode JSON
	var payload Payload
	if err := json.NewDecoder(gz).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}

	return &payload, nil
}

// Inspect returns just the manifest without keeping the entries around.
func Inspect(inputPath string) (*Manifest, error) {
	payload, err := Unpack(inputPath)
	if err != nil {
		return nil, err
	}
	return &payload.Manifest, nil
}
