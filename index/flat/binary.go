package flat

import (
	"fmt"
	"io"

	"github.com/paydesk/finsearch/persistence"
)

// maxVectorCount bounds counts read from untrusted files.
const maxVectorCount = 100_000_000

// SaveToFile saves the index to a file in binary format, atomically.
func (f *Flat) SaveToFile(filename string) error {
	return persistence.SaveToFile(filename, f.write)
}

// WriteTo writes the index in binary format: file header followed by the
// vector rows, contiguous and in ordinal order.
func (f *Flat) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	err := f.write(cw)
	return cw.n, err
}

func (f *Flat) write(w io.Writer) error {
	st := f.state.Load()
	writer := persistence.NewBinaryWriter(w)

	header := &persistence.FileHeader{
		Artifact:    persistence.ArtifactVectorIndex,
		RecordCount: uint64(len(st.vectors)),
		Dimension:   uint32(f.opts.Dimension),
	}
	if err := writer.WriteHeader(header); err != nil {
		return err
	}

	for _, vec := range st.vectors {
		if err := writer.WriteFloat32Slice(vec); err != nil {
			return err
		}
	}
	return nil
}

// LoadFromFile loads an index from a binary artifact file, verifying the
// checksum trailer. The persisted dimension is authoritative.
func LoadFromFile(filename string) (*Flat, error) {
	var f *Flat
	err := persistence.LoadFromFile(filename, func(r io.Reader) error {
		loaded, err := read(r)
		if err != nil {
			return err
		}
		f = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ReadFrom reads an index written by WriteTo. It does not verify a checksum
// trailer; use LoadFromFile for artifact files.
func ReadFrom(r io.Reader) (*Flat, error) {
	return read(r)
}

func read(r io.Reader) (*Flat, error) {
	reader := persistence.NewBinaryReader(r)

	header, err := reader.ReadHeader()
	if err != nil {
		return nil, err
	}
	if header.Artifact != persistence.ArtifactVectorIndex {
		return nil, fmt.Errorf("%w: expected vector index, got %d", persistence.ErrInvalidArtifact, header.Artifact)
	}
	if header.Dimension == 0 {
		return nil, &ErrInvalidDimension{Dimension: int(header.Dimension)}
	}
	if header.RecordCount > maxVectorCount {
		return nil, fmt.Errorf("vector count %d exceeds limit", header.RecordCount)
	}

	f, err := New(int(header.Dimension))
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, header.RecordCount)
	for i := range vectors {
		vec := make([]float32, header.Dimension)
		if err := reader.ReadFloat32SliceInto(vec); err != nil {
			return nil, fmt.Errorf("read vector %d: %w", i, err)
		}
		vectors[i] = vec
	}
	f.state.Store(&indexState{vectors: vectors})

	return f, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
