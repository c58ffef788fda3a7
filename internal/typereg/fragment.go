package typereg

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// FragmentEntry is one type definition from a fragment, in file order.
type FragmentEntry struct {
	Name string
	// Definition is a string or a nested structure of map[string]any,
	// []any, string, bool, nil and json.Number.
	Definition any
}

// Fragment is a module's partial type dictionary.
type Fragment struct {
	Module  string
	Path    string
	Entries []FragmentEntry
}

// ParseFragment decodes a fragment document. The document must be a single
// JSON object with unique keys at every level, and each definition must be a
// string or a structure.
func ParseFragment(module string, data []byte) (*Fragment, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("reading fragment: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("fragment must be a JSON object, found %s", describeToken(tok))
	}

	frag := &Fragment{Module: module}
	seen := make(map[string]bool)
	for dec.More() {
		name, err := objectKey(dec)
		if err != nil {
			return nil, err
		}
		if seen[name] {
			return nil, fmt.Errorf("type %q is defined more than once", name)
		}
		seen[name] = true

		def, err := decodeValue(dec, name)
		if err != nil {
			return nil, err
		}
		if err := checkDefinition(def); err != nil {
			return nil, fmt.Errorf("type %q: %w", name, err)
		}
		frag.Entries = append(frag.Entries, FragmentEntry{Name: name, Definition: def})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("reading fragment: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after the fragment object")
	}
	return frag, nil
}

func objectKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("reading fragment: %w", err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected an object key, found %s", describeToken(tok))
	}
	return key, nil
}

// decodeValue reads the next value, rejecting duplicate keys in nested
// objects. path names the value in error messages.
func decodeValue(dec *json.Decoder, path string) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	d, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch d {
	case '{':
		obj := make(map[string]any)
		for dec.More() {
			key, err := objectKey(dec)
			if err != nil {
				return nil, err
			}
			if _, dup := obj[key]; dup {
				return nil, fmt.Errorf("%s: key %q appears more than once", path, key)
			}
			v, err := decodeValue(dec, path+"."+key)
			if err != nil {
				return nil, err
			}
			obj[key] = v
		}
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		return obj, nil
	case '[':
		arr := []any{}
		for dec.More() {
			v, err := decodeValue(dec, fmt.Sprintf("%s[%d]", path, len(arr)))
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("%s: unexpected %s", path, d)
	}
}

func checkDefinition(def any) error {
	switch def.(type) {
	case string, map[string]any, []any:
		return nil
	default:
		return fmt.Errorf("definition must be a string or a structure, found %s", describeToken(def))
	}
}

func describeToken(tok any) string {
	switch v := tok.(type) {
	case nil:
		return "null"
	case json.Delim:
		if v == '[' {
			return "an array"
		}
		return fmt.Sprintf("%q", v.String())
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case json.Number, float64:
		return "a number"
	case map[string]any:
		return "an object"
	case []any:
		return "an array"
	default:
		return fmt.Sprintf("%T", tok)
	}
}
