package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyValueBuilder_Table(t *testing.T) {
	var buf bytes.Buffer
	dw, err := NewDataWriter(&buf, "table")
	require.NoError(t, err)

	err = NewKeyValueBuilder("Status").
		Add("identity", "octocat").
		Add("backend", "keyring").
		Add("empty", "").
		AddIf(false, "error", "boom").
		Write(dw)
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Status\n"))
	assert.Less(t, strings.Index(out, "identity:"), strings.Index(out, "backend:"), "keys keep insertion order")
	assert.NotContains(t, out, "empty:")
	assert.NotContains(t, out, "error:")
}

func TestKeyValueBuilder_JSON(t *testing.T) {
	var buf bytes.Buffer
	dw, err := NewDataWriter(&buf, "json")
	require.NoError(t, err)

	err = NewKeyValueBuilder("ignored in json").
		Add("logged_in", true).
		Add("identity", "octocat").
		Write(dw)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, map[string]interface{}{"logged_in": true, "identity": "octocat"}, got)
}

func TestNewDataWriter_UnsupportedFormat(t *testing.T) {
	_, err := NewDataWriter(&bytes.Buffer{}, "xml")
	assert.EqualError(t, err, "unsupported output format: xml")
}
