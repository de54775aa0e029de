package npy

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		array *Array
	}{
		{"float32 matrix", &Array{Shape: []int{2, 3}, Data: []float32{1, 2, 3, 4, 5, 6}}},
		{"float64 vector", &Array{Shape: []int{4}, Data: []float64{0.5, -1.5, 2.25, 3}}},
		{"int64 vector", &Array{Shape: []int{3}, Data: []int64{-1, 0, 9000000000}}},
		{"int32 cube", &Array{Shape: []int{2, 2, 2}, Data: []int32{1, 2, 3, 4, 5, 6, 7, 8}}},
		{"uint8 vector", &Array{Shape: []int{5}, Data: []uint8{0, 1, 2, 254, 255}}},
		{"bool vector", &Array{Shape: []int{3}, Data: []bool{true, false, true}}},
		{"scalar", &Array{Shape: nil, Data: []float64{42}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := Marshal(tt.array)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			got, err := Unmarshal(raw)
			if err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if diff := cmp.Diff(tt.array.Shape, got.Shape); diff != "" {
				t.Errorf("shape mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.array.Data, got.Data); diff != "" {
				t.Errorf("data mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMarshalHeaderAligned(t *testing.T) {
	raw, err := Marshal(&Array{Shape: []int{2}, Data: []float32{1, 2}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	headerLen := int(binary.LittleEndian.Uint16(raw[8:10]))
	if total := 10 + headerLen; total%64 != 0 {
		t.Errorf("preamble size = %d, want multiple of 64", total)
	}
	if raw[10+headerLen-1] != '\n' {
		t.Errorf("header not newline-terminated")
	}
}

func TestDecodeVersion2(t *testing.T) {
	// Same header dict as version 1.0, but with a 4-byte length field.
	// Alignment padding is optional on the read side.
	header := "{'descr': '<f8', 'fortran_order': False, 'shape': (2,), }\n"

	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY")
	buf.Write([]byte{2, 0})
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(header)))
	buf.Write(lenBuf[:])
	buf.WriteString(header)
	binary.Write(&buf, binary.LittleEndian, []float64{1.5, -2.5})

	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff([]float64{1.5, -2.5}, got.Data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeBigEndian(t *testing.T) {
	header := "{'descr': '>i4', 'fortran_order': False, 'shape': (2,), }\n"

	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY")
	buf.Write([]byte{1, 0})
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(header)))
	buf.Write(lenBuf[:])
	buf.WriteString(header)
	binary.Write(&buf, binary.BigEndian, []int32{258, -7})

	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff([]int32{258, -7}, got.Data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeErrors(t *testing.T) {
	valid, err := Marshal(&Array{Shape: []int{2}, Data: []float32{1, 2}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"bad magic", []byte("\x93NUMPZ\x01\x00")},
		{"truncated data", valid[:len(valid)-2]},
		{"unsupported version", append(append([]byte{}, "\x93NUMPY"...), 9, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Unmarshal(tt.raw); err == nil {
				t.Errorf("Unmarshal succeeded, want error")
			}
		})
	}
}

// rawStream builds a version 1.0 stream with an arbitrary header, for
// inputs Marshal refuses to produce.
func rawStream(header string, data []float64) *bytes.Buffer {
	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY")
	buf.Write([]byte{1, 0})
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(header)))
	buf.Write(lenBuf[:])
	buf.WriteString(header)
	binary.Write(&buf, binary.LittleEndian, data)
	return &buf
}

func TestDecodeFortranOrderRejected(t *testing.T) {
	header := "{'descr': '<f8', 'fortran_order': True, 'shape': (2, 2), }\n"
	if _, err := Decode(rawStream(header, make([]float64, 4))); err == nil {
		t.Errorf("Decode accepted fortran_order array")
	}
}

func TestDecodeRejectsHostileShape(t *testing.T) {
	// The declared shape drives allocations, so absurd element counts
	// must fail cleanly instead of panicking or exhausting memory.
	tests := []struct {
		name  string
		shape string
	}{
		{"max int dimension", "(9223372036854775807,)"},
		{"product overflow", "(4611686018427387904, 8)"},
		{"over the byte limit", "(1073741825,)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := "{'descr': '<f8', 'fortran_order': False, 'shape': " + tt.shape + ", }\n"
			if _, err := Decode(rawStream(header, nil)); err == nil {
				t.Errorf("Decode accepted shape %s", tt.shape)
			}
		})
	}
}

func TestFloat64s(t *testing.T) {
	tests := []struct {
		name  string
		array *Array
		want  []float64
	}{
		{"float32", &Array{Shape: []int{2}, Data: []float32{1.5, 2}}, []float64{1.5, 2}},
		{"int64", &Array{Shape: []int{3}, Data: []int64{-2, 0, 2}}, []float64{-2, 0, 2}},
		{"bool", &Array{Shape: []int{2}, Data: []bool{true, false}}, []float64{1, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.array.Float64s()
			if err != nil {
				t.Fatalf("Float64s: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Float64s mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseHeader(t *testing.T) {
	tests := []struct {
		header    string
		wantDescr string
		wantShape []int
	}{
		{"{'descr': '<f4', 'fortran_order': False, 'shape': (3, 4), }", "<f4", []int{3, 4}},
		{"{'descr': '<i8', 'fortran_order': False, 'shape': (5,), }", "<i8", []int{5}},
		{"{'descr': '|b1', 'fortran_order': False, 'shape': (), }", "|b1", nil},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			descr, fortran, shape, err := parseHeader(tt.header)
			if err != nil {
				t.Fatalf("parseHeader: %v", err)
			}
			if descr != tt.wantDescr {
				t.Errorf("descr = %q, want %q", descr, tt.wantDescr)
			}
			if fortran {
				t.Errorf("fortran = true, want false")
			}
			if diff := cmp.Diff(tt.wantShape, shape); diff != "" {
				t.Errorf("shape mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
