package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/optout-tools/optout/pkg/optout/directory"
)

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatTable, "table": FormatTable, "JSON": FormatJSON, "yaml": FormatYAML, "yml": FormatYAML} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("xml")
	require.Error(t, err)
}

func TestWriteObject_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	brokers := []directory.Broker{{ID: 1, Name: "Acme Data", Email: "privacy@acme.example"}}
	require.NoError(t, WriteObject(buf, FormatJSON, brokers))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, float64(1), got[0]["id"])
	assert.Equal(t, "Acme Data", got[0]["name"])
	assert.Equal(t, "privacy@acme.example", got[0]["email"])
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestWriteObject_YAML(t *testing.T) {
	buf := &bytes.Buffer{}
	brokers := []directory.Broker{{ID: 2, Name: "Beta", Email: "optout@beta.example"}}
	require.NoError(t, WriteObject(buf, FormatYAML, brokers))

	var got []directory.Broker
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, brokers, got)
}

func TestWriteObject_TableFormat(t *testing.T) {
	err := WriteObject(&bytes.Buffer{}, FormatTable, struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table format requires a specific formatter")
}

func TestWriteObject_UnknownFormat(t *testing.T) {
	err := WriteObject(&bytes.Buffer{}, Format("invalid"), struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format: invalid")
}

func TestWriteObject_JSONMarshalError(t *testing.T) {
	require.Error(t, WriteObject(&bytes.Buffer{}, FormatJSON, make(chan int)))
}
