// Package npy reads and writes arrays in the NumPy .npy binary format.
//
// Only the subset of the format produced by the model API is supported:
// numeric and boolean dtypes in C order. Structured dtypes, object
// arrays and fortran_order data are rejected.
package npy

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

var magic = []byte("\x93NUMPY")

// Array is an n-dimensional array decoded from a .npy stream.
type Array struct {
	Shape []int  // dimension sizes; empty for a 0-d scalar
	Descr string // numpy dtype descr, e.g. "<f4"

	// Data holds the flat array values in C (row-major) order.
	// The concrete type is one of []bool, []int8, []uint8, []int16,
	// []uint16, []int32, []uint32, []int64, []uint64, []float32
	// or []float64, matching Descr.
	Data any
}

// Len returns the number of elements (the product of Shape).
func (a *Array) Len() int {
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

// Float64s returns the array values converted to float64.
func (a *Array) Float64s() ([]float64, error) {
	out := make([]float64, 0, a.Len())
	switch data := a.Data.(type) {
	case []bool:
		for _, v := range data {
			if v {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		}
	case []int8:
		for _, v := range data {
			out = append(out, float64(v))
		}
	case []uint8:
		for _, v := range data {
			out = append(out, float64(v))
		}
	case []int16:
		for _, v := range data {
			out = append(out, float64(v))
		}
	case []uint16:
		for _, v := range data {
			out = append(out, float64(v))
		}
	case []int32:
		for _, v := range data {
			out = append(out, float64(v))
		}
	case []uint32:
		for _, v := range data {
			out = append(out, float64(v))
		}
	case []int64:
		for _, v := range data {
			out = append(out, float64(v))
		}
	case []uint64:
		for _, v := range data {
			out = append(out, float64(v))
		}
	case []float32:
		for _, v := range data {
			out = append(out, float64(v))
		}
	case []float64:
		out = append(out, data...)
	default:
		return nil, fmt.Errorf("npy: unsupported data type %T", a.Data)
	}
	return out, nil
}

// Unmarshal decodes a .npy byte slice.
func Unmarshal(data []byte) (*Array, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads one array from r.
func Decode(r io.Reader) (*Array, error) {
	var pre [8]byte
	if _, err := io.ReadFull(r, pre[:]); err != nil {
		return nil, fmt.Errorf("npy: read preamble: %w", err)
	}
	if !bytes.Equal(pre[:6], magic) {
		return nil, fmt.Errorf("npy: bad magic %q", pre[:6])
	}
	major, minor := pre[6], pre[7]

	var headerLen int
	switch major {
	case 1:
		var buf [2]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, fmt.Errorf("npy: read header length: %w", err)
		}
		headerLen = int(binary.LittleEndian.Uint16(buf[:]))
	case 2, 3:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, fmt.Errorf("npy: read header length: %w", err)
		}
		headerLen = int(binary.LittleEndian.Uint32(buf[:]))
	default:
		return nil, fmt.Errorf("npy: unsupported format version %d.%d", major, minor)
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("npy: read header: %w", err)
	}

	descr, fortran, shape, err := parseHeader(string(header))
	if err != nil {
		return nil, err
	}
	if fortran {
		return nil, fmt.Errorf("npy: fortran_order arrays are not supported")
	}

	a := &Array{Shape: shape, Descr: descr}
	if err := a.readData(r); err != nil {
		return nil, err
	}
	return a, nil
}

// Marshal encodes a into .npy bytes (format version 1.0, little-endian).
func Marshal(a *Array) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, a); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes a to w in .npy format version 1.0.
func Encode(w io.Writer, a *Array) error {
	descr := a.Descr
	if descr == "" {
		d, err := descrOf(a.Data)
		if err != nil {
			return err
		}
		descr = d
	}

	dims := make([]string, len(a.Shape))
	for i, d := range a.Shape {
		dims[i] = strconv.Itoa(d)
	}
	shape := strings.Join(dims, ", ")
	if len(a.Shape) == 1 {
		shape += ","
	}
	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%s), }", descr, shape)

	// The full preamble (magic + version + length + header) is padded
	// with spaces to a multiple of 64 bytes and terminated by newline.
	total := len(magic) + 2 + 2 + len(header) + 1
	pad := (64 - total%64) % 64
	header += strings.Repeat(" ", pad) + "\n"
	if len(header) > math.MaxUint16 {
		return fmt.Errorf("npy: header too large for format version 1.0")
	}

	if _, err := w.Write(magic); err != nil {
		return err
	}
	if _, err := w.Write([]byte{1, 0}); err != nil {
		return err
	}
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(header)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	return writeData(w, a.Data, byteOrder(descr))
}

// parseHeader extracts descr, fortran_order and shape from the
// Python-literal header dict.
func parseHeader(header string) (descr string, fortran bool, shape []int, err error) {
	descr, err = headerString(header, "descr")
	if err != nil {
		return "", false, nil, err
	}

	switch {
	case strings.Contains(header, "'fortran_order': True"):
		fortran = true
	case strings.Contains(header, "'fortran_order': False"):
		fortran = false
	default:
		return "", false, nil, fmt.Errorf("npy: header missing fortran_order: %q", header)
	}

	open := strings.Index(header, "(")
	end := strings.Index(header, ")")
	if open < 0 || end < open {
		return "", false, nil, fmt.Errorf("npy: header missing shape: %q", header)
	}
	for _, field := range strings.Split(header[open+1:end], ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		d, err := strconv.Atoi(field)
		if err != nil || d < 0 {
			return "", false, nil, fmt.Errorf("npy: invalid shape dimension %q", field)
		}
		shape = append(shape, d)
	}
	return descr, fortran, shape, nil
}

// headerString returns the quoted string value for key in the header dict.
func headerString(header, key string) (string, error) {
	marker := "'" + key + "':"
	i := strings.Index(header, marker)
	if i < 0 {
		return "", fmt.Errorf("npy: header missing %s: %q", key, header)
	}
	rest := header[i+len(marker):]
	start := strings.Index(rest, "'")
	if start < 0 {
		return "", fmt.Errorf("npy: header missing %s value: %q", key, header)
	}
	rest = rest[start+1:]
	end := strings.Index(rest, "'")
	if end < 0 {
		return "", fmt.Errorf("npy: unterminated %s value: %q", key, header)
	}
	return rest[:end], nil
}

func byteOrder(descr string) binary.ByteOrder {
	if strings.HasPrefix(descr, ">") {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// maxDataBytes caps the data size a decoded header may declare. The
// shape comes from untrusted input, so it must not drive allocations.
const maxDataBytes = 1 << 31

// elemCount returns the product of the shape dimensions, rejecting
// products that overflow int.
func elemCount(shape []int) (int, error) {
	n := 1
	for _, d := range shape {
		if d != 0 && n > math.MaxInt/d {
			return 0, fmt.Errorf("npy: shape %v overflows element count", shape)
		}
		n *= d
	}
	return n, nil
}

func (a *Array) readData(r io.Reader) error {
	n, err := elemCount(a.Shape)
	if err != nil {
		return err
	}
	order := byteOrder(a.Descr)
	kind := strings.TrimLeft(a.Descr, "<>|=")

	raw := func(size int) ([]byte, error) {
		if n > maxDataBytes/size {
			return nil, fmt.Errorf("npy: declared data size %d*%d exceeds %d bytes", n, size, maxDataBytes)
		}
		// Grow with the stream rather than trusting the header with
		// one large up-front allocation.
		var buf bytes.Buffer
		if _, err := io.CopyN(&buf, r, int64(n*size)); err != nil {
			return nil, fmt.Errorf("npy: read data: %w", err)
		}
		return buf.Bytes(), nil
	}

	switch kind {
	case "b1":
		buf, err := raw(1)
		if err != nil {
			return err
		}
		data := make([]bool, n)
		for i, b := range buf {
			data[i] = b != 0
		}
		a.Data = data
	case "i1":
		buf, err := raw(1)
		if err != nil {
			return err
		}
		data := make([]int8, n)
		for i, b := range buf {
			data[i] = int8(b)
		}
		a.Data = data
	case "u1":
		buf, err := raw(1)
		if err != nil {
			return err
		}
		data := make([]uint8, n)
		copy(data, buf)
		a.Data = data
	case "i2":
		buf, err := raw(2)
		if err != nil {
			return err
		}
		data := make([]int16, n)
		for i := range data {
			data[i] = int16(order.Uint16(buf[i*2:]))
		}
		a.Data = data
	case "u2":
		buf, err := raw(2)
		if err != nil {
			return err
		}
		data := make([]uint16, n)
		for i := range data {
			data[i] = order.Uint16(buf[i*2:])
		}
		a.Data = data
	case "i4":
		buf, err := raw(4)
		if err != nil {
			return err
		}
		data := make([]int32, n)
		for i := range data {
			data[i] = int32(order.Uint32(buf[i*4:]))
		}
		a.Data = data
	case "u4":
		buf, err := raw(4)
		if err != nil {
			return err
		}
		data := make([]uint32, n)
		for i := range data {
			data[i] = order.Uint32(buf[i*4:])
		}
		a.Data = data
	case "i8":
		buf, err := raw(8)
		if err != nil {
			return err
		}
		data := make([]int64, n)
		for i := range data {
			data[i] = int64(order.Uint64(buf[i*8:]))
		}
		a.Data = data
	case "u8":
		buf, err := raw(8)
		if err != nil {
			return err
		}
		data := make([]uint64, n)
		for i := range data {
			data[i] = order.Uint64(buf[i*8:])
		}
		a.Data = data
	case "f4":
		buf, err := raw(4)
		if err != nil {
			return err
		}
		data := make([]float32, n)
		for i := range data {
			data[i] = math.Float32frombits(order.Uint32(buf[i*4:]))
		}
		a.Data = data
	case "f8":
		buf, err := raw(8)
		if err != nil {
			return err
		}
		data := make([]float64, n)
		for i := range data {
			data[i] = math.Float64frombits(order.Uint64(buf[i*8:]))
		}
		a.Data = data
	default:
		return fmt.Errorf("npy: unsupported dtype %q", a.Descr)
	}
	return nil
}

func writeData(w io.Writer, data any, order binary.ByteOrder) error {
	switch data := data.(type) {
	case []bool:
		buf := make([]byte, len(data))
		for i, v := range data {
			if v {
				buf[i] = 1
			}
		}
		_, err := w.Write(buf)
		return err
	case []int8, []uint8, []int16, []uint16, []int32, []uint32,
		[]int64, []uint64, []float32, []float64:
		return binary.Write(w, order, data)
	default:
		return fmt.Errorf("npy: unsupported data type %T", data)
	}
}

// descrOf maps a Go slice type to its little-endian numpy descr.
func descrOf(data any) (string, error) {
	switch data.(type) {
	case []bool:
		return "|b1", nil
	case []int8:
		return "|i1", nil
	case []uint8:
		return "|u1", nil
	case []int16:
		return "<i2", nil
	case []uint16:
		return "<u2", nil
	case []int32:
		return "<i4", nil
	case []uint32:
		return "<u4", nil
	case []int64:
		return "<i8", nil
	case []uint64:
		return "<u8", nil
	case []float32:
		return "<f4", nil
	case []float64:
		return "<f8", nil
	default:
		return "", fmt.Errorf("npy: unsupported data type %T", data)
	}
}
