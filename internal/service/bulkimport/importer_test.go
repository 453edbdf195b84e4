package bulkimport

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"typegraph-backend/internal/domain/node"
	"typegraph-backend/internal/domain/schema"
	appErrors "typegraph-backend/internal/errors"
)

type mockAdder struct {
	mock.Mock
}

func (m *mockAdder) AddNode(ctx context.Context, t schema.NodeType, values map[string]any) (node.Record, error) {
	args := m.Called(ctx, t, values)
	return args.Get(0).(node.Record), args.Error(1)
}

func documentType() schema.NodeType {
	return schema.NodeType{HumanLabel: "Document", InternalLabel: "Label_1", Properties: schema.DefaultProperties()}
}

func writeFiles(t *testing.T, names ...string) string {
	dir := t.TempDir()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o700))
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	return resolved
}

func TestImporter_ImportFolder(t *testing.T) {
	dir := writeFiles(t, "report.pdf", "notes.txt")
	adder := &mockAdder{}
	im := NewImporter(adder, dir, zap.NewNop())
	ctx := context.Background()

	var seen []map[string]any
	adder.On("AddNode", ctx, documentType(), mock.Anything).
		Run(func(args mock.Arguments) { seen = append(seen, args.Get(2).(map[string]any)) }).
		Return(node.Persisted(1, "Label_1", nil), nil)

	res, err := im.ImportFolder(ctx, documentType(), Options{Dir: dir, Date: "2024-03-01", Active: true})
	require.NoError(t, err)
	assert.Len(t, res.Added, 2)
	assert.Empty(t, res.Failed)
	assert.NotEmpty(t, res.BatchID)

	require.Len(t, seen, 2)
	// files are imported in name order; the nested directory is ignored
	assert.Equal(t, "notes", seen[0][schema.PropName])
	assert.Equal(t, filepath.Join(dir, "notes.txt"), seen[0][schema.PropFilePath])
	assert.Equal(t, node.NewDate(2024, 3, 1), seen[0][schema.PropDate])
	assert.Equal(t, true, seen[0][schema.PropRelevance])
	assert.Equal(t, "report", seen[1][schema.PropName])
}

func TestImporter_FailuresAreCollected(t *testing.T) {
	dir := writeFiles(t, "a.txt", "b.txt", "c.txt")
	adder := &mockAdder{}
	im := NewImporter(adder, filepath.Dir(dir), zap.NewNop())
	ctx := context.Background()

	isB := func(v map[string]any) bool { return v[schema.PropName] == "b" }
	adder.On("AddNode", ctx, mock.Anything, mock.MatchedBy(isB)).Return(node.Record{}, errors.New("store down"))
	adder.On("AddNode", ctx, mock.Anything, mock.Anything).Return(node.Persisted(1, "Label_1", nil), nil)

	res, err := im.ImportFolder(ctx, documentType(), Options{Dir: dir})
	require.NoError(t, err)
	assert.Len(t, res.Added, 2)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, filepath.Join(dir, "b.txt"), res.Failed[0].Path)
	assert.Contains(t, res.Failed[0].Error, "store down")
}

func TestImporter_Filters(t *testing.T) {
	dir := writeFiles(t, "a.pdf", "b.PDF", "c.txt", "skip.pdf")
	adder := &mockAdder{}
	im := NewImporter(adder, dir, zap.NewNop())
	im.today = func() node.Date { return node.NewDate(2025, 1, 2) }

	adder.On("AddNode", mock.Anything, mock.Anything, mock.MatchedBy(func(v map[string]any) bool {
		return v[schema.PropDate] == node.NewDate(2025, 1, 2)
	})).Return(node.Persisted(1, "Label_1", nil), nil)

	res, err := im.ImportFolder(context.Background(), documentType(), Options{
		Dir:        dir,
		Extensions: []string{".pdf"},
		Skip:       []string{"skip.pdf"},
	})
	require.NoError(t, err)
	assert.Len(t, res.Added, 2)

	res, err = im.ImportFolder(context.Background(), documentType(), Options{Dir: dir, MaxFiles: 1})
	require.NoError(t, err)
	assert.Len(t, res.Added, 1)
}

func TestImporter_InvalidOptions(t *testing.T) {
	root := t.TempDir()
	im := NewImporter(&mockAdder{}, root, zap.NewNop())
	ctx := context.Background()

	tests := []struct {
		name string
		opts Options
	}{
		{name: "missing dir", opts: Options{}},
		{name: "bad date", opts: Options{Dir: "/tmp", Date: "03/01/2024"}},
		{name: "bad extension", opts: Options{Dir: "/tmp", Extensions: []string{"pdf"}}},
		{name: "too many files", opts: Options{Dir: "/tmp", MaxFiles: 20000}},
		{name: "missing folder", opts: Options{Dir: "absent"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := im.ImportFolder(ctx, documentType(), tt.opts)
			require.Error(t, err)
			assert.True(t, appErrors.IsValidation(err))
		})
	}
}

func TestImporter_RelativeDirUnderRoot(t *testing.T) {
	dir := writeFiles(t, "a.txt")
	adder := &mockAdder{}
	im := NewImporter(adder, filepath.Dir(dir), zap.NewNop())

	adder.On("AddNode", mock.Anything, mock.Anything, mock.MatchedBy(func(v map[string]any) bool {
		return v[schema.PropFilePath] == filepath.Join(dir, "a.txt")
	})).Return(node.Persisted(1, "Label_1", nil), nil).Once()

	res, err := im.ImportFolder(context.Background(), documentType(), Options{Dir: filepath.Base(dir)})
	require.NoError(t, err)
	assert.Len(t, res.Added, 1)
	adder.AssertExpectations(t)
}

func TestImporter_ConfinedToRoot(t *testing.T) {
	root := writeFiles(t)
	outside := writeFiles(t, "secret.txt")
	adder := &mockAdder{}
	im := NewImporter(adder, root, zap.NewNop())
	ctx := context.Background()

	for _, dir := range []string{"..", outside, "nested/../../x", filepath.Join(root, "..")} {
		_, err := im.ImportFolder(ctx, documentType(), Options{Dir: dir})
		require.Error(t, err, dir)
		assert.True(t, appErrors.HasCode(err, appErrors.CodePathOutsideRoot), dir)
		assert.True(t, appErrors.IsValidation(err), dir)
	}

	link := filepath.Join(root, "link")
	if err := os.Symlink(outside, link); err == nil {
		_, err := im.ImportFolder(ctx, documentType(), Options{Dir: "link"})
		assert.True(t, appErrors.HasCode(err, appErrors.CodePathOutsideRoot))
	}
	adder.AssertNotCalled(t, "AddNode", mock.Anything, mock.Anything, mock.Anything)
}

func TestImporter_DisabledWithoutRoot(t *testing.T) {
	dir := writeFiles(t, "a.txt")
	adder := &mockAdder{}
	im := NewImporter(adder, "", zap.NewNop())

	_, err := im.ImportFolder(context.Background(), documentType(), Options{Dir: dir})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.CodeImportDisabled))
	assert.True(t, appErrors.IsValidation(err))
	adder.AssertNotCalled(t, "AddNode", mock.Anything, mock.Anything, mock.Anything)
}
