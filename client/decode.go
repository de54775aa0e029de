package client

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ukp-square/squarectl/npy"
)

// decodeOutputs turns the raw model outputs into arrays. Encoded
// outputs hold base64 .npy payloads (possibly nested in lists); plain
// outputs hold nested numeric lists.
func decodeOutputs(resp *ModelResponse) (map[string]Output, error) {
	outputs := make(map[string]Output, len(resp.ModelOutputs))
	for name, raw := range resp.ModelOutputs {
		var (
			out Output
			err error
		)
		if resp.Encoded {
			out, err = decodeEncoded(raw)
		} else {
			out, err = decodePlain(raw)
		}
		if err != nil {
			return nil, fmt.Errorf("decode model output %q: %w", name, err)
		}
		outputs[name] = out
	}
	return outputs, nil
}

// decodeEncoded handles a base64 .npy string or an arbitrarily nested
// list of them.
func decodeEncoded(raw json.RawMessage) (Output, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		data, err := base64.StdEncoding.DecodeString(stripWhitespace(s))
		if err != nil {
			return Output{}, fmt.Errorf("base64: %w", err)
		}
		arr, err := npy.Unmarshal(data)
		if err != nil {
			return Output{}, err
		}
		return Output{Tensor: arr}, nil
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		items := make([]Output, len(list))
		for i, elem := range list {
			item, err := decodeEncoded(elem)
			if err != nil {
				return Output{}, err
			}
			items[i] = item
		}
		return Output{Items: items}, nil
	}

	return Output{}, fmt.Errorf("unexpected value %s, expected string or list", truncate(raw))
}

// decodePlain converts nested numeric lists into a float64 array with
// inferred shape, the way np.array does.
func decodePlain(raw json.RawMessage) (Output, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Output{}, err
	}
	arr, err := arrayFromJSON(v)
	if err != nil {
		return Output{}, err
	}
	return Output{Tensor: arr}, nil
}

// arrayFromJSON builds a C-order float64 array from nested []any/
// float64 values produced by json.Unmarshal. Ragged nesting is an
// error.
func arrayFromJSON(v any) (*npy.Array, error) {
	shape, err := shapeOf(v)
	if err != nil {
		return nil, err
	}

	n := 1
	for _, d := range shape {
		n *= d
	}
	flat := make([]float64, 0, n)
	if err := flatten(v, shape, 0, &flat); err != nil {
		return nil, err
	}
	return &npy.Array{Shape: shape, Descr: "<f8", Data: flat}, nil
}

func shapeOf(v any) ([]int, error) {
	var shape []int
	for {
		switch val := v.(type) {
		case []any:
			shape = append(shape, len(val))
			if len(val) == 0 {
				return shape, nil
			}
			v = val[0]
		case float64:
			return shape, nil
		case bool:
			return shape, nil
		default:
			return nil, fmt.Errorf("unexpected value of type %T in model output", v)
		}
	}
}

func flatten(v any, shape []int, depth int, out *[]float64) error {
	switch val := v.(type) {
	case []any:
		if depth >= len(shape) || len(val) != shape[depth] {
			return fmt.Errorf("ragged nested list in model output")
		}
		for _, elem := range val {
			if err := flatten(elem, shape, depth+1, out); err != nil {
				return err
			}
		}
		return nil
	case float64:
		if depth != len(shape) {
			return fmt.Errorf("ragged nested list in model output")
		}
		*out = append(*out, val)
		return nil
	case bool:
		if depth != len(shape) {
			return fmt.Errorf("ragged nested list in model output")
		}
		if val {
			*out = append(*out, 1)
		} else {
			*out = append(*out, 0)
		}
		return nil
	default:
		return fmt.Errorf("unexpected value of type %T in model output", v)
	}
}

// stripWhitespace removes the line breaks base64 payloads may carry.
func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
}

func truncate(raw json.RawMessage) string {
	const limit = 60
	s := string(raw)
	if len(s) <= limit {
		return s
	}
	// Back up to a rune boundary so the cut never splits a character.
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
