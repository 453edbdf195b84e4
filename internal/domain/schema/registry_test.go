package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typegraph-backend/internal/domain/node"
	appErrors "typegraph-backend/internal/errors"
)

func TestRegistry_AddType(t *testing.T) {
	r := NewRegistry()

	doc, err := r.AddType("Document")
	require.NoError(t, err)
	assert.Equal(t, "Label_1", doc.InternalLabel)
	assert.Equal(t, []string{PropRelevance, PropName, PropDate, PropFilePath}, doc.PropertyNames())
	assert.Equal(t, 1, r.Generation)

	inv, err := r.AddType("Invoice")
	require.NoError(t, err)
	assert.Equal(t, "Label_2", inv.InternalLabel)

	_, err = r.AddType("Document")
	require.Error(t, err)
	assert.True(t, appErrors.IsConflict(err))
	assert.Equal(t, 2, r.Generation, "failed add must not consume a label")

	_, err = r.AddType("  ")
	assert.True(t, appErrors.IsValidation(err))
}

func TestRegistry_LabelsNeverReused(t *testing.T) {
	r := NewRegistry()
	_, _ = r.AddType("A")
	_, _ = r.AddType("B")

	// drop B, as an external edit of the payload might
	r.Types = r.Types[:1]
	c, err := r.AddType("C")
	require.NoError(t, err)
	assert.Equal(t, "Label_3", c.InternalLabel)
}

func TestRegistry_AddProperty(t *testing.T) {
	r := NewRegistry()
	_, _ = r.AddType("Document")

	updated, err := r.AddProperty("Document", PropertyDef{Name: "Flag", Type: node.TypeBoolean})
	require.NoError(t, err)
	p, ok := updated.Property("Flag")
	require.True(t, ok)
	assert.Equal(t, node.TypeBoolean, p.Type)

	tests := []struct {
		name  string
		label string
		def   PropertyDef
		check func(error) bool
	}{
		{"duplicate", "Document", PropertyDef{Name: "Flag", Type: node.TypeString}, appErrors.IsConflict},
		{"missing type", "Nope", PropertyDef{Name: "x", Type: node.TypeString}, appErrors.IsNotFound},
		{"reserved id", "Document", PropertyDef{Name: "Id", Type: node.TypeString}, appErrors.IsValidation},
		{"reserved label", "Document", PropertyDef{Name: "Label", Type: node.TypeString}, appErrors.IsValidation},
		{"bad type", "Document", PropertyDef{Name: "x", Type: node.PrimitiveType(0)}, appErrors.IsValidation},
		{"bad default", "Document", PropertyDef{Name: "x", Type: node.TypeDate, Default: "someday"}, appErrors.IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.AddProperty(tt.label, tt.def)
			require.Error(t, err)
			assert.True(t, tt.check(err), err.Error())
		})
	}
}

func TestRegistry_CloneIsDeep(t *testing.T) {
	r := NewRegistry()
	_, _ = r.AddType("Document")

	c := r.Clone()
	_, err := c.AddProperty("Document", PropertyDef{Name: "extra", Type: node.TypeString})
	require.NoError(t, err)
	_, _ = c.AddType("Other")

	orig, _ := r.Find("Document")
	assert.Len(t, orig.Properties, 4)
	assert.Len(t, r.Types, 1)
	assert.Equal(t, 1, r.Generation)
}

func TestRegistry_Recalculate(t *testing.T) {
	r := &Registry{Generation: 1, Types: []NodeType{
		{HumanLabel: "A", InternalLabel: "Label_4"},
		{HumanLabel: "B", InternalLabel: "Label_x"},
		{HumanLabel: "C", InternalLabel: "Custom"},
	}}
	r.Recalculate()
	assert.Equal(t, 4, r.Generation)

	r.Generation = 9
	r.Recalculate()
	assert.Equal(t, 9, r.Generation)
}

func TestNodeType_Marshal(t *testing.T) {
	doc := NodeType{HumanLabel: "Document", InternalLabel: "Label_1", Properties: DefaultProperties()}

	values, err := doc.Marshal(map[string]any{"name": "Report", "date": "2024-03-01"})
	require.NoError(t, err)
	assert.Equal(t, node.StringValue("Report"), values["name"])
	assert.Equal(t, "2024-03-01", values["date"].String())
	assert.Equal(t, node.BoolValue(true), values["relevance"], "default literal applied")
	assert.Equal(t, node.StringValue(""), values["file_path"])

	_, err = doc.Marshal(map[string]any{"owner": "x"})
	assert.True(t, appErrors.HasCode(err, appErrors.CodeUnknownProperty))

	_, err = doc.Marshal(map[string]any{"relevance": "perhaps"})
	assert.True(t, appErrors.HasCode(err, appErrors.CodeInvalidValue))

	partial, err := doc.MarshalPartial(map[string]any{"relevance": "false", "Id": 3})
	require.NoError(t, err)
	assert.Equal(t, map[string]node.Value{"relevance": node.BoolValue(false)}, partial)
}

func TestNodeType_Unmarshal(t *testing.T) {
	doc := NodeType{HumanLabel: "Document", Properties: DefaultProperties()}
	got := doc.Unmarshal(map[string]any{
		"date":      "garbage",
		"relevance": "True",
		"legacy":    true,
	})
	assert.Equal(t, node.DateValue(node.SentinelDate), got["date"])
	assert.Equal(t, node.BoolValue(true), got["relevance"])
	assert.Equal(t, node.BoolValue(true), got["legacy"])
}
