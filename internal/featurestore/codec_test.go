package featurestore

import (
	"math"
	"testing"
	"time"

	"github.com/nmedina/skulens/internal/domain"
)

func testProduct(id, name string, seed float32) domain.Product {
	data := make([]float32, domain.DescriptorDim*3)
	for i := range data {
		data[i] = seed + float32(i)*0.25
	}
	return domain.Product{
		ID:          id,
		Name:        name,
		Descriptors: domain.DescriptorSet{Dim: domain.DescriptorDim, Data: data},
		CreatedAt:   time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC),
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	state := NewState().
		withProduct(testProduct("p-1", "Cola", 0.5)).
		withProduct(testProduct("p-2", "Cola Light", -3.25))

	blob, checksum, err := EncodeState(state)
	if err != nil {
		t.Fatalf("EncodeState() error = %v", err)
	}
	if checksum == "" {
		t.Fatal("EncodeState() returned empty checksum")
	}

	decoded, err := DecodeState(blob)
	if err != nil {
		t.Fatalf("DecodeState() error = %v", err)
	}
	if decoded.Len() != state.Len() {
		t.Fatalf("decoded %d products, want %d", decoded.Len(), state.Len())
	}

	for _, want := range state.Products() {
		got, ok := decoded.Product(want.ID)
		if !ok {
			t.Fatalf("product %s missing after round trip", want.ID)
		}
		if got.Name != want.Name {
			t.Errorf("product %s name = %q, want %q", want.ID, got.Name, want.Name)
		}
		if !got.CreatedAt.Equal(want.CreatedAt) {
			t.Errorf("product %s created = %v, want %v", want.ID, got.CreatedAt, want.CreatedAt)
		}
		if got.Descriptors.Dim != want.Descriptors.Dim {
			t.Errorf("product %s dim = %d, want %d", want.ID, got.Descriptors.Dim, want.Descriptors.Dim)
		}
		for i, v := range want.Descriptors.Data {
			if math.Float32bits(got.Descriptors.Data[i]) != math.Float32bits(v) {
				t.Fatalf("product %s descriptor value %d = %v, want bit-exact %v", want.ID, i, got.Descriptors.Data[i], v)
			}
		}
	}

	if id, ok := decoded.LookupByName("cola light"); !ok || id != "p-2" {
		t.Errorf("LookupByName(cola light) = %q, %v, want p-2, true", id, ok)
	}
}

func TestEncodeDecodeEmptyState(t *testing.T) {
	blob, _, err := EncodeState(NewState())
	if err != nil {
		t.Fatalf("EncodeState() error = %v", err)
	}
	decoded, err := DecodeState(blob)
	if err != nil {
		t.Fatalf("DecodeState() error = %v", err)
	}
	if decoded.Len() != 0 {
		t.Errorf("decoded %d products, want 0", decoded.Len())
	}
}

func TestDecodeStateRejectsCorruption(t *testing.T) {
	state := NewState().withProduct(testProduct("p-1", "Cola", 1.0))
	blob, _, err := EncodeState(state)
	if err != nil {
		t.Fatalf("EncodeState() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{
			name: "flipped payload byte",
			mutate: func(b []byte) []byte {
				out := append([]byte(nil), b...)
				out[10] ^= 0xff
				return out
			},
		},
		{
			name: "truncated",
			mutate: func(b []byte) []byte {
				return b[:len(b)/2]
			},
		},
		{
			name: "too short for header",
			mutate: func(b []byte) []byte {
				return b[:6]
			},
		},
		{
			name: "empty",
			mutate: func(b []byte) []byte {
				return nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeState(tt.mutate(blob)); err == nil {
				t.Error("DecodeState() accepted a corrupt blob")
			}
		})
	}
}

func TestWithProductDuplicateNameResolvesToNewer(t *testing.T) {
	state := NewState().
		withProduct(testProduct("p-old", "Cola", 1.0)).
		withProduct(testProduct("p-new", "cola", 2.0))

	if state.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", state.Len())
	}
	id, ok := state.LookupByName("Cola")
	if !ok || id != "p-new" {
		t.Errorf("LookupByName(Cola) = %q, %v, want p-new, true", id, ok)
	}
	if _, ok := state.Product("p-old"); !ok {
		t.Error("older product no longer reachable by id")
	}
}
