package persistence

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// maxSliceLen bounds length prefixes read from untrusted files.
const maxSliceLen = 100_000_000

// BinaryWriter writes artifact payload sections in little-endian binary.
type BinaryWriter struct {
	w         io.Writer
	byteOrder binary.ByteOrder
}

// NewBinaryWriter creates a new binary writer.
func NewBinaryWriter(w io.Writer) *BinaryWriter {
	return &BinaryWriter{
		w:         w,
		byteOrder: binary.LittleEndian,
	}
}

// WriteHeader writes the file header, stamping magic and version.
func (bw *BinaryWriter) WriteHeader(header *FileHeader) error {
	header.Magic = MagicNumber
	header.Version = Version
	return binary.Write(bw.w, bw.byteOrder, header)
}

// WriteFloat32Slice writes a float32 slice as raw little-endian bytes.
func (bw *BinaryWriter) WriteFloat32Slice(vec []float32) error {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		bw.byteOrder.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	_, err := bw.w.Write(buf)
	return err
}

// WriteUint64 writes a single uint64.
func (bw *BinaryWriter) WriteUint64(v uint64) error {
	var buf [8]byte
	bw.byteOrder.PutUint64(buf[:], v)
	_, err := bw.w.Write(buf[:])
	return err
}

// WriteBytes writes a length-prefixed byte slice.
func (bw *BinaryWriter) WriteBytes(p []byte) error {
	if err := bw.WriteUint64(uint64(len(p))); err != nil {
		return err
	}
	_, err := bw.w.Write(p)
	return err
}

// WriteString writes a length-prefixed string.
func (bw *BinaryWriter) WriteString(s string) error {
	return bw.WriteBytes([]byte(s))
}

// BinaryReader reads artifact payload sections.
type BinaryReader struct {
	r         io.Reader
	byteOrder binary.ByteOrder
}

// NewBinaryReader creates a new binary reader.
func NewBinaryReader(r io.Reader) *BinaryReader {
	return &BinaryReader{
		r:         r,
		byteOrder: binary.LittleEndian,
	}
}

// ReadHeader reads and validates the file header.
func (br *BinaryReader) ReadHeader() (*FileHeader, error) {
	var header FileHeader
	if err := binary.Read(br.r, br.byteOrder, &header); err != nil {
		return nil, err
	}
	if header.Magic != MagicNumber {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, header.Magic)
	}
	if header.Version != Version {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidVersion, header.Version)
	}
	return &header, nil
}

// ReadFloat32SliceInto fills the provided buffer from the stream.
func (br *BinaryReader) ReadFloat32SliceInto(vec []float32) error {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, len(vec)*4)
	if _, err := io.ReadFull(br.r, buf); err != nil {
		return err
	}
	for i := range vec {
		vec[i] = math.Float32frombits(br.byteOrder.Uint32(buf[i*4:]))
	}
	return nil
}

// ReadUint64 reads a single uint64.
func (br *BinaryReader) ReadUint64() (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(br.r, buf[:]); err != nil {
		return 0, err
	}
	return br.byteOrder.Uint64(buf[:]), nil
}

// ReadBytes reads a length-prefixed byte slice.
func (br *BinaryReader) ReadBytes() ([]byte, error) {
	n, err := br.ReadUint64()
	if err != nil {
		return nil, err
	}
	if n > maxSliceLen {
		return nil, fmt.Errorf("slice length %d exceeds limit", n)
	}
	p := make([]byte, n)
	if _, err := io.ReadFull(br.r, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ReadString reads a length-prefixed string.
func (br *BinaryReader) ReadString() (string, error) {
	p, err := br.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(p), nil
}

// Save writes an artifact payload followed by its CRC32 trailer.
func Save(w io.Writer, writeFunc func(io.Writer) error) error {
	cw := NewChecksumWriter(w)
	if err := writeFunc(cw); err != nil {
		return err
	}

	// Trailer: CRC32 of everything before it.
	var trailer [4]byte
	binary.LittleEndian.PutUint32(trailer[:], cw.Sum())
	_, err := w.Write(trailer[:])
	return err
}

// Encode renders an artifact, checksum trailer included, into memory.
func Encode(writeFunc func(io.Writer) error) ([]byte, error) {
	var buf bytes.Buffer
	if err := Save(&buf, writeFunc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveToFile writes an artifact atomically: payload to a temp file in the
// target directory, CRC32 trailer appended, fsync, then rename into place.
// Readers never observe a partially written artifact.
func SaveToFile(filename string, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	_ = tmp.Chmod(0644)

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err := Save(buf, writeFunc); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
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

// Load verifies the trailing checksum of a fully read artifact and invokes
// readFunc over the payload. Artifacts are modest at the target scale, so a
// single in-memory pass is fine.
func Load(data []byte, readFunc func(io.Reader) error) error {
	if len(data) < 4 {
		return io.ErrUnexpectedEOF
	}
	payload := data[:len(data)-4]
	expected := binary.LittleEndian.Uint32(data[len(data)-4:])
	if actual := ComputeChecksum(payload); actual != expected {
		return &ChecksumMismatchError{Expected: expected, Actual: actual}
	}
	return readFunc(bytes.NewReader(payload))
}

// LoadFromFile reads an artifact file and verifies its checksum trailer.
func LoadFromFile(filename string, readFunc func(io.Reader) error) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return Load(data, readFunc)
}
