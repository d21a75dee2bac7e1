package featurestore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"time"

	"github.com/nmedina/skulens/internal/domain"
)

// Binary snapshot format. Descriptors are float32 vectors and must
// round-trip bit-exactly, so the blob stores raw IEEE 754 bits rather than
// a decimal text encoding.
//
// Layout (all integers little-endian):
//
//	magic      uint32  "SKLS"
//	version    uint16  currently 1
//	products   uint32
//	per product:
//	  id       uint16 length + bytes
//	  name     uint16 length + bytes
//	  created  int64  unix nanoseconds
//	  dim      uint32
//	  count    uint32
//	  data     dim*count float32 bit patterns, row-major
//	crc32      uint32  IEEE checksum of everything above
const (
	blobMagic   uint32 = 0x534b4c53 // "SKLS"
	blobVersion uint16 = 1
)

var byteOrder = binary.LittleEndian

// EncodeState serializes a store state into a snapshot blob.
// It returns the blob and its CRC-32 checksum rendered as hex.
func EncodeState(s *State) ([]byte, string, error) {
	var buf bytes.Buffer

	writeErr := func(vs ...interface{}) error {
		for _, v := range vs {
			if err := binary.Write(&buf, byteOrder, v); err != nil {
				return err
			}
		}
		return nil
	}

	products := s.Products()
	if err := writeErr(blobMagic, blobVersion, uint32(len(products))); err != nil {
		return nil, "", err
	}

	for _, p := range products {
		if err := writeString(&buf, p.ID); err != nil {
			return nil, "", err
		}
		if err := writeString(&buf, p.Name); err != nil {
			return nil, "", err
		}
		ds := p.Descriptors
		if err := writeErr(p.CreatedAt.UnixNano(), uint32(ds.Dim), uint32(ds.Count())); err != nil {
			return nil, "", err
		}
		for _, f := range ds.Data {
			if err := writeErr(math.Float32bits(f)); err != nil {
				return nil, "", err
			}
		}
	}

	sum := crc32.ChecksumIEEE(buf.Bytes())
	if err := writeErr(sum); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), fmt.Sprintf("%08x", sum), nil
}

// DecodeState deserializes a snapshot blob back into a store state.
// Corrupt blobs are rejected: the caller must never swap in a store it
// cannot prove round-tripped intact.
func DecodeState(blob []byte) (*State, error) {
	if len(blob) < 14 {
		return nil, fmt.Errorf("snapshot blob truncated: %d bytes", len(blob))
	}

	body, footer := blob[:len(blob)-4], blob[len(blob)-4:]
	want := byteOrder.Uint32(footer)
	if got := crc32.ChecksumIEEE(body); got != want {
		return nil, fmt.Errorf("snapshot checksum mismatch: got %08x, want %08x", got, want)
	}

	r := bytes.NewReader(body)
	var (
		magic   uint32
		version uint16
		count   uint32
	)
	if err := readAll(r, &magic, &version, &count); err != nil {
		return nil, err
	}
	if magic != blobMagic {
		return nil, fmt.Errorf("invalid snapshot magic: 0x%08x", magic)
	}
	if version != blobVersion {
		return nil, fmt.Errorf("unsupported snapshot version: %d", version)
	}

	state := NewState()
	for i := uint32(0); i < count; i++ {
		id, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", i, err)
		}
		name, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", i, err)
		}
		var (
			createdNanos int64
			dim, rows    uint32
		)
		if err := readAll(r, &createdNanos, &dim, &rows); err != nil {
			return nil, fmt.Errorf("product %d: %w", i, err)
		}
		total := int(dim) * int(rows)
		data := make([]float32, total)
		for j := 0; j < total; j++ {
			var bits uint32
			if err := binary.Read(r, byteOrder, &bits); err != nil {
				return nil, fmt.Errorf("product %d descriptors: %w", i, err)
			}
			data[j] = math.Float32frombits(bits)
		}
		state = state.withProduct(domain.Product{
			ID:          id,
			Name:        name,
			CreatedAt:   time.Unix(0, createdNanos).UTC(),
			Descriptors: domain.DescriptorSet{Dim: int(dim), Data: data},
		})
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("snapshot blob has %d trailing bytes", r.Len())
	}
	return state, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("string too long for snapshot encoding: %d bytes", len(s))
	}
	if err := binary.Write(buf, byteOrder, uint16(len(s))); err != nil {
		return err
	}
	_, err := buf.WriteString(s)
	return err
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, byteOrder, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func readAll(r *bytes.Reader, vs ...interface{}) error {
	for _, v := range vs {
		if err := binary.Read(r, byteOrder, v); err != nil {
			return err
		}
	}
	return nil
}
