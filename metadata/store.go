// Package metadata provides the ordered metadata store that sits alongside
// the vector index. Row ordinals are the sole join key: the record appended
// n-th describes the vector inserted n-th.
package metadata

import (
	"fmt"
	"io"

	"github.com/paydesk/finsearch/codec"
	"github.com/paydesk/finsearch/persistence"
	"github.com/paydesk/finsearch/record"
)

// ErrOrdinalOutOfRange indicates a positional lookup outside [0, Len).
// In correct operation this never fires; it guards against a corrupted
// index returning ordinals the metadata sequence does not have.
type ErrOrdinalOutOfRange struct {
	Ordinal uint32
	Len     int
}

func (e *ErrOrdinalOutOfRange) Error() string {
	return fmt.Sprintf("ordinal %d out of range [0, %d)", e.Ordinal, e.Len)
}

// ErrUnknownCodec indicates the artifact was written with a codec this
// build does not provide.
type ErrUnknownCodec struct {
	Name string
}

func (e *ErrUnknownCodec) Error() string {
	return fmt.Sprintf("unknown metadata codec: %q", e.Name)
}

// Options configures metadata persistence.
type Options struct {
	// Codec encodes the record envelopes. Defaults to codec.Default.
	Codec codec.Codec

	// Compression applied to the encoded payload. Defaults to zstd.
	Compression persistence.Compression
}

// DefaultOptions contains the default persistence options.
var DefaultOptions = Options{
	Compression: persistence.CompressionZstd,
}

// Store is an append-only, positionally addressed sequence of records.
// It is not safe for concurrent mutation; once built (or loaded) it is
// immutable and safe for concurrent reads.
type Store struct {
	records []record.Record
	index   *Index
	opts    Options
}

// NewStore creates an empty metadata store.
func NewStore(optFns ...func(o *Options)) *Store {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}

	return &Store{
		index: NewIndex(),
		opts:  opts,
	}
}

// Append adds a record at the next row ordinal.
func (s *Store) Append(r record.Record) {
	ordinal := uint32(len(s.records))
	s.records = append(s.records, r)
	s.index.add(ordinal, r)
}

// Get returns the record at the given row ordinal.
func (s *Store) Get(ordinal uint32) (record.Record, error) {
	if int(ordinal) >= len(s.records) {
		return nil, &ErrOrdinalOutOfRange{Ordinal: ordinal, Len: len(s.records)}
	}
	return s.records[ordinal], nil
}

// Len returns the number of stored records.
func (s *Store) Len() int { return len(s.records) }

// Index returns the inverted index over the stored records.
func (s *Store) Index() *Index { return s.index }

// SaveToFile persists the store atomically.
func (s *Store) SaveToFile(filename string) error {
	return persistence.SaveToFile(filename, s.write)
}

// WriteTo writes the store in binary format without a checksum trailer.
func (s *Store) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	err := s.write(cw)
	return cw.n, err
}

// ReadFrom reads a store written by WriteTo. It does not verify a
// checksum trailer; use LoadFromFile for artifact files.
func ReadFrom(r io.Reader) (*Store, error) {
	return read(r)
}

func (s *Store) write(w io.Writer) error {
	envelopes := make([]record.Envelope, len(s.records))
	for i, r := range s.records {
		env, err := record.Wrap(r)
		if err != nil {
			return err
		}
		envelopes[i] = env
	}

	payload, err := s.opts.Codec.Marshal(envelopes)
	if err != nil {
		return fmt.Errorf("metadata: encode: %w", err)
	}
	packed, err := persistence.Compress(payload, s.opts.Compression)
	if err != nil {
		return fmt.Errorf("metadata: compress: %w", err)
	}

	writer := persistence.NewBinaryWriter(w)
	header := &persistence.FileHeader{
		Artifact:    persistence.ArtifactMetadata,
		Compression: uint8(s.opts.Compression),
		RecordCount: uint64(len(s.records)),
	}
	if err := writer.WriteHeader(header); err != nil {
		return err
	}
	if err := writer.WriteString(s.opts.Codec.Name()); err != nil {
		return err
	}
	return writer.WriteBytes(packed)
}

// LoadFromFile loads a persisted store, verifying the checksum trailer,
// the codec name, and the record count.
func LoadFromFile(filename string) (*Store, error) {
	var s *Store
	err := persistence.LoadFromFile(filename, func(r io.Reader) error {
		loaded, err := read(r)
		if err != nil {
			return err
		}
		s = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func read(r io.Reader) (*Store, error) {
	reader := persistence.NewBinaryReader(r)

	header, err := reader.ReadHeader()
	if err != nil {
		return nil, err
	}
	if header.Artifact != persistence.ArtifactMetadata {
		return nil, fmt.Errorf("%w: expected metadata, got %d", persistence.ErrInvalidArtifact, header.Artifact)
	}
	compression := persistence.Compression(header.Compression)
	if !compression.Valid() {
		return nil, fmt.Errorf("metadata: unsupported compression: %d", header.Compression)
	}

	codecName, err := reader.ReadString()
	if err != nil {
		return nil, err
	}
	c, ok := codec.ByName(codecName)
	if !ok {
		return nil, &ErrUnknownCodec{Name: codecName}
	}

	packed, err := reader.ReadBytes()
	if err != nil {
		return nil, err
	}
	payload, err := persistence.Decompress(packed, compression)
	if err != nil {
		return nil, fmt.Errorf("metadata: decompress: %w", err)
	}

	var envelopes []record.Envelope
	if err := c.Unmarshal(payload, &envelopes); err != nil {
		return nil, fmt.Errorf("metadata: decode: %w", err)
	}
	if uint64(len(envelopes)) != header.RecordCount {
		return nil, fmt.Errorf("metadata: record count mismatch: header %d, payload %d", header.RecordCount, len(envelopes))
	}

	s := NewStore(func(o *Options) {
		o.Codec = c
		o.Compression = compression
	})
	for _, env := range envelopes {
		rec, err := record.Unwrap(env)
		if err != nil {
			return nil, err
		}
		s.Append(rec)
	}
	return s, nil
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
