package dto

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typegraph-backend/internal/domain/node"
	"typegraph-backend/internal/domain/schema"
)

func documentType() schema.NodeType {
	return schema.NodeType{HumanLabel: "Document", InternalLabel: "Label_1", Properties: schema.DefaultProperties()}
}

func TestParseFilter(t *testing.T) {
	march1 := node.NewDate(2024, 3, 1)
	march9 := node.NewDate(2024, 3, 9)

	tests := []struct {
		name    string
		params  map[string]string
		want    node.Filter
		wantErr string
	}{
		{name: "boolean", params: map[string]string{"relevance": "False"}, want: node.Filter{"relevance": node.BoolEquals{Value: false}}},
		{name: "closed range", params: map[string]string{"date": "2024-03-01..2024-03-09"}, want: node.Filter{"date": node.Between(march1, march9)}},
		{name: "open start", params: map[string]string{"date": "..2024-03-09"}, want: node.Filter{"date": node.Until(march9)}},
		{name: "open end", params: map[string]string{"date": "2024-03-01.."}, want: node.Filter{"date": node.Since(march1)}},
		{name: "single day", params: map[string]string{"date": "2024-03-01"}, want: node.Filter{"date": node.Between(march1, march1)}},
		{name: "text", params: map[string]string{"name": "rep"}, want: node.Filter{"name": node.Contains{Text: "rep"}}},
		{name: "unknown property", params: map[string]string{"owner": "x"}, wantErr: "unknown filter property"},
		{name: "bad boolean", params: map[string]string{"relevance": "maybe"}, wantErr: "expected true or false"},
		{name: "bad date", params: map[string]string{"date": "soon.."}, wantErr: `filter "date"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFilter(documentType(), tt.params)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterParams(t *testing.T) {
	q := url.Values{"q": {"x"}, "relevance": {"true", "false"}, "empty": {}}
	assert.Equal(t, map[string]string{"relevance": "true"}, FilterParams(q, "q"))
}

func TestImportRequest_ActiveDefaultsTrue(t *testing.T) {
	assert.True(t, ImportRequest{Dir: "/tmp"}.ToOptions().Active)
	off := false
	assert.False(t, ImportRequest{Dir: "/tmp", Active: &off}.ToOptions().Active)
}
