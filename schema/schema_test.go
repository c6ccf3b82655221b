package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchSchemaIsValidJSON(t *testing.T) {
	data, err := BatchSchema()
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "Pulse Ingest Batch", doc["title"])
	props, ok := doc["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, props, "section")
	assert.Contains(t, props, "items")
}

func TestValidateBatch(t *testing.T) {
	tests := []struct {
		name    string
		doc     interface{}
		wantErr string
	}{
		{
			name: "valid",
			doc: map[string]interface{}{
				"section": "priorities",
				"items":   []interface{}{map[string]interface{}{"title": "a"}},
			},
		},
		{
			name:    "missing items",
			doc:     map[string]interface{}{"section": "priorities"},
			wantErr: "items",
		},
		{
			name: "unknown property",
			doc: map[string]interface{}{
				"section": "priorities",
				"items":   []interface{}{},
				"extra":   true,
			},
			wantErr: "extra",
		},
		{
			name: "items not objects",
			doc: map[string]interface{}{
				"section": "priorities",
				"items":   []interface{}{"nope"},
			},
			wantErr: "/items/0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatch(tt.doc)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCompileRejectsBadSchema(t *testing.T) {
	_, err := Compile("bad.json", []byte(`{"type": 12}`))
	assert.Error(t, err)
}
