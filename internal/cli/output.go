package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatJSON  OutputFormat = "json"
)

// DataWriter handles formatted output of structured data
type DataWriter struct {
	output io.Writer
	format OutputFormat
}

// NewDataWriter creates a new DataWriter
func NewDataWriter(output io.Writer, format string) (*DataWriter, error) {
	switch OutputFormat(format) {
	case "", OutputFormatTable:
		return &DataWriter{output: output, format: OutputFormatTable}, nil
	case OutputFormatJSON:
		return &DataWriter{output: output, format: OutputFormatJSON}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// writeJSON writes data as JSON
func (dw *DataWriter) writeJSON(data interface{}) error {
	encoder := json.NewEncoder(dw.output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// KeyValueBuilder helps build key-value data. Keys print in the order they were added.
type KeyValueBuilder struct {
	title string
	keys  []string
	data  map[string]interface{}
}

// NewKeyValueBuilder creates a new KeyValueBuilder
func NewKeyValueBuilder(title string) *KeyValueBuilder {
	return &KeyValueBuilder{
		title: title,
		data:  make(map[string]interface{}),
	}
}

// Add adds a key-value pair
func (kvb *KeyValueBuilder) Add(key string, value interface{}) *KeyValueBuilder {
	if _, exists := kvb.data[key]; !exists {
		kvb.keys = append(kvb.keys, key)
	}
	kvb.data[key] = value
	return kvb
}

// AddIf conditionally adds a key-value pair
func (kvb *KeyValueBuilder) AddIf(condition bool, key string, value interface{}) *KeyValueBuilder {
	if condition {
		kvb.Add(key, value)
	}
	return kvb
}

// Write outputs the key-value data using the DataWriter
func (kvb *KeyValueBuilder) Write(dw *DataWriter) error {
	if dw.format == OutputFormatJSON {
		return dw.writeJSON(kvb.data)
	}

	if kvb.title != "" {
		_, _ = fmt.Fprintln(dw.output, kvb.title)
	}

	// Use tabwriter for consistent alignment
	w := tabwriter.NewWriter(dw.output, 0, 0, 2, ' ', 0)
	for _, key := range kvb.keys {
		if value := kvb.data[key]; value != nil && value != "" {
			_, _ = fmt.Fprintf(w, "  %s:\t%v\t\n", key, value)
		}
	}
	_ = w.Flush()
	_, _ = fmt.Fprintln(dw.output)
	return nil
}
