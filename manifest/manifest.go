// Package manifest defines the model descriptor artifact: which embedding
// model produced an index generation, its dimensionality, and its row
// count. The descriptor is written last during a build, so its presence
// marks a complete artifact triple.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// CurrentVersion is the descriptor schema version.
const CurrentVersion = 1

// Descriptor describes one index generation.
type Descriptor struct {
	Version     int    `json:"version"`
	ModelName   string `json:"model_name"`
	Dimension   int    `json:"dimension"`
	VectorCount int    `json:"vector_count"`
}

// Validate checks internal consistency.
func (d *Descriptor) Validate() error {
	if d.Version != CurrentVersion {
		return fmt.Errorf("unsupported descriptor version: %d (expected %d)", d.Version, CurrentVersion)
	}
	if d.ModelName == "" {
		return fmt.Errorf("descriptor missing model name")
	}
	if d.Dimension <= 0 {
		return fmt.Errorf("descriptor has invalid dimension: %d", d.Dimension)
	}
	if d.VectorCount < 0 {
		return fmt.Errorf("descriptor has invalid vector count: %d", d.VectorCount)
	}
	return nil
}

// Encode renders the descriptor as indented JSON.
func (d *Descriptor) Encode() ([]byte, error) {
	d.Version = CurrentVersion
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return json.MarshalIndent(d, "", "  ")
}

// Decode parses and validates descriptor bytes.
func Decode(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("manifest: decode: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Save writes the descriptor atomically: temp file, fsync, rename.
func (d *Descriptor) Save(filename string) error {
	data, err := d.Encode()
	if err != nil {
		return err
	}

	dir := filepath.Dir(filename)
	tmp, err := os.CreateTemp(dir, filepath.Base(filename)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	_ = tmp.Chmod(0644)

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, filename)
}

// Load reads and validates a descriptor file.
func Load(filename string) (*Descriptor, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
