package persist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/multicast/internal/ir"
)

// Format is a record document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks a format from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported record file extension %q (want .json, .yaml or .yml)", filepath.Ext(path))
	}
}

// EncodeJSON renders rec as RFC 8785 canonical JSON. Equal records encode
// to identical bytes, which is what ir.RecordID hashes.
func EncodeJSON(rec ir.ChainRecord) ([]byte, error) {
	return ir.MarshalCanonical(rec.CanonicalMap())
}

// DecodeJSON parses a JSON record document. Unknown fields are rejected.
func DecodeJSON(data []byte) (ir.ChainRecord, error) {
	var rec ir.ChainRecord
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		return ir.ChainRecord{}, fmt.Errorf("decode json record: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return ir.ChainRecord{}, fmt.Errorf("decode json record: trailing data after document")
	}
	return rec, nil
}

// EncodeYAML renders rec as YAML.
func EncodeYAML(rec ir.ChainRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(rec); err != nil {
		return nil, fmt.Errorf("encode yaml record: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml record: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeYAML parses a YAML record document with strict field checking.
func DecodeYAML(data []byte) (ir.ChainRecord, error) {
	var rec ir.ChainRecord
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rec); err != nil {
		return ir.ChainRecord{}, fmt.Errorf("decode yaml record: %w", err)
	}
	return rec, nil
}

// Encode renders rec in the given format.
func Encode(rec ir.ChainRecord, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return EncodeJSON(rec)
	case FormatYAML:
		return EncodeYAML(rec)
	default:
		return nil, fmt.Errorf("unknown record format %q", f)
	}
}

// Decode parses data in the given format.
func Decode(data []byte, f Format) (ir.ChainRecord, error) {
	switch f {
	case FormatJSON:
		return DecodeJSON(data)
	case FormatYAML:
		return DecodeYAML(data)
	default:
		return ir.ChainRecord{}, fmt.Errorf("unknown record format %q", f)
	}
}

// DecodeFile reads a record document, choosing the decoder by extension.
func DecodeFile(path string) (ir.ChainRecord, error) {
	f, err := FormatForPath(path)
	if err != nil {
		return ir.ChainRecord{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ir.ChainRecord{}, fmt.Errorf("read record: %w", err)
	}
	rec, err := Decode(data, f)
	if err != nil {
		return ir.ChainRecord{}, fmt.Errorf("%s: %w", path, err)
	}
	return rec, nil
}
