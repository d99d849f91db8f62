package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/multicast/internal/ir"
)

func sampleRecord() ir.ChainRecord {
	return ir.ChainRecord{
		Version: ir.RecordVersion,
		Head:    0,
		Entries: []ir.Entry{
			buttonEntry("OnClick", ir.SideTableTarget("target0"), ir.IntPtr(1)),
			{
				CallbackType:  "ClickHandler",
				CallbackScope: "ui",
				Target:        ir.AbsentTarget(),
				ReceiverScope: "ui",
				ReceiverType:  "Buttons",
				Method:        "Reset",
			},
		},
		Targets: map[string]ir.Object{"target0": buttonObject("x")},
	}
}

func TestEncodeJSON_Deterministic(t *testing.T) {
	a, err := EncodeJSON(sampleRecord())
	require.NoError(t, err)
	b, err := EncodeJSON(sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotContains(t, string(a), " ")
	assert.NotContains(t, string(a), "\n")
}

func TestDecodeJSON(t *testing.T) {
	data, err := EncodeJSON(sampleRecord())
	require.NoError(t, err)

	rec, err := DecodeJSON(data)
	require.NoError(t, err)
	assert.Equal(t, ir.MustRecordID(sampleRecord()), ir.MustRecordID(rec))
	assert.Equal(t, ir.AbsentTarget(), rec.Entries[1].Target)
	assert.Nil(t, rec.Entries[1].Next)
}

func TestDecodeJSON_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown field", `{"version":"1","head":0,"entries":[],"extra":true}`},
		{"trailing data", `{"version":"1","head":0,"entries":[]} {}`},
		{"float in target value", `{"version":"1","head":0,"entries":[],"targets":{"target0":{"scope":"ui","type":"Button","value":1.5}}}`},
		{"not json", `version: "1"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeJSON([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	data, err := EncodeYAML(sampleRecord())
	require.NoError(t, err)
	assert.Contains(t, string(data), "callback_type: ClickHandler")

	rec, err := DecodeYAML(data)
	require.NoError(t, err)
	assert.Equal(t, ir.MustRecordID(sampleRecord()), ir.MustRecordID(rec))
}

func TestDecodeYAML_RejectsUnknownFields(t *testing.T) {
	_, err := DecodeYAML([]byte("version: \"1\"\nhead: 0\nentries: []\nbogus: 1\n"))
	assert.Error(t, err)
}

func TestFormatForPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
		ok   bool
	}{
		{"chain.json", FormatJSON, true},
		{"chain.YAML", FormatYAML, true},
		{"dir/chain.yml", FormatYAML, true},
		{"chain.txt", "", false},
		{"chain", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatForPath(tt.path)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeFile(t *testing.T) {
	dir := t.TempDir()

	jsonData, err := EncodeJSON(sampleRecord())
	require.NoError(t, err)
	yamlData, err := EncodeYAML(sampleRecord())
	require.NoError(t, err)

	jsonPath := filepath.Join(dir, "chain.json")
	yamlPath := filepath.Join(dir, "chain.yaml")
	require.NoError(t, os.WriteFile(jsonPath, jsonData, 0o644))
	require.NoError(t, os.WriteFile(yamlPath, yamlData, 0o644))

	for _, path := range []string{jsonPath, yamlPath} {
		rec, err := DecodeFile(path)
		require.NoError(t, err, path)
		assert.Len(t, rec.Entries, 2)
	}

	_, err = DecodeFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	_, err = DecodeFile(filepath.Join(dir, "chain.txt"))
	assert.Error(t, err)
}

func TestEncodeDecode_UnknownFormat(t *testing.T) {
	_, err := Encode(sampleRecord(), "toml")
	assert.Error(t, err)
	_, err = Decode(nil, "toml")
	assert.Error(t, err)
}
