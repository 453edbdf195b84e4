// Package bulkimport creates one node per file found in a folder.
package bulkimport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"typegraph-backend/internal/domain/node"
	"typegraph-backend/internal/domain/schema"
	appErrors "typegraph-backend/internal/errors"
)

// NodeAdder creates nodes; the gateway satisfies it.
type NodeAdder interface {
	AddNode(ctx context.Context, t schema.NodeType, values map[string]any) (node.Record, error)
}

// Options controls an import run.
type Options struct {
	// Dir is resolved against the importer's root and must stay inside it.
	Dir string `json:"dir" validate:"required"`
	// Date is applied to every imported node; empty means today.
	Date   string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Active bool   `json:"active"`
	// Extensions restricts the import to these suffixes, e.g. ".pdf".
	Extensions []string `json:"extensions" validate:"omitempty,dive,startswith=."`
	// Skip lists file names to leave out.
	Skip     []string `json:"skip"`
	MaxFiles int      `json:"max_files" validate:"gte=0,lte=10000"`
}

// FileFailure records one file that could not be imported.
type FileFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Result summarises an import run.
type Result struct {
	BatchID string        `json:"batch_id"`
	Added   []node.Record `json:"added"`
	Failed  []FileFailure `json:"failed"`
}

// Importer runs folder imports.
type Importer struct {
	adder    NodeAdder
	root     string
	logger   *zap.Logger
	validate *validator.Validate
	today    func() node.Date
}

// NewImporter creates an importer confined to root. An empty root disables
// imports.
func NewImporter(adder NodeAdder, root string, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{
		adder:    adder,
		root:     root,
		logger:   logger.Named("bulkimport"),
		validate: validator.New(),
		today:    node.Today,
	}
}

// ImportFolder adds one node per top-level regular file of opts.Dir: name is
// the file stem, file_path the full path, date the common date and the active
// flag opts.Active. A failing file is recorded and the run continues.
func (im *Importer) ImportFolder(ctx context.Context, t schema.NodeType, opts Options) (Result, error) {
	const op = "bulkimport.ImportFolder"
	if err := im.validate.Struct(opts); err != nil {
		return Result{}, appErrors.Validation(appErrors.CodeInvalidValue, "invalid import options").
			WithOperation(op).
			WithDetails(err.Error()).
			Build()
	}

	date := im.today()
	if opts.Date != "" {
		parsed, err := node.ParseDate(opts.Date)
		if err != nil {
			return Result{}, appErrors.InvalidValue("date", opts.Date, "a calendar date")
		}
		date = parsed
	}

	dir, err := im.resolve(opts.Dir)
	if err != nil {
		return Result{}, appErrors.Wrap(err, op, "import folder rejected")
	}

	files, err := listFiles(dir, opts)
	if err != nil {
		return Result{}, appErrors.Validation(appErrors.CodeInvalidValue, fmt.Sprintf("cannot read folder %q", opts.Dir)).
			WithOperation(op).
			WithCause(err).
			Build()
	}

	res := Result{BatchID: uuid.New().String(), Added: []node.Record{}, Failed: []FileFailure{}}
	logger := im.logger.With(zap.String("batch_id", res.BatchID), zap.String("type", t.HumanLabel))
	logger.Info("import started", zap.String("dir", dir), zap.Int("files", len(files)))

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			res.Failed = append(res.Failed, FileFailure{Path: path, Error: err.Error()})
			continue
		}
		values := map[string]any{
			schema.PropName:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			schema.PropFilePath:  path,
			schema.PropDate:      date,
			schema.PropRelevance: opts.Active,
		}
		rec, err := im.adder.AddNode(ctx, t, values)
		if err != nil {
			logger.Warn("file not imported", zap.String("path", path), zap.Error(err))
			res.Failed = append(res.Failed, FileFailure{Path: path, Error: err.Error()})
			continue
		}
		res.Added = append(res.Added, rec)
	}

	logger.Info("import finished", zap.Int("added", len(res.Added)), zap.Int("failed", len(res.Failed)))
	return res, nil
}

// resolve maps dir onto a folder inside the import root. Relative paths are
// taken from the root; symlinks are followed before the containment check.
func (im *Importer) resolve(dir string) (string, error) {
	if im.root == "" {
		return "", appErrors.Validation(appErrors.CodeImportDisabled, "folder import is disabled; set graph.import_root").Build()
	}
	root, err := filepath.Abs(im.root)
	if err != nil {
		return "", appErrors.Internal(appErrors.CodeImportDisabled, "import root cannot be resolved").WithCause(err).Build()
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	target := filepath.Clean(dir)
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	if resolved, err := filepath.EvalSymlinks(target); err == nil {
		target = resolved
	}

	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", appErrors.Validation(appErrors.CodePathOutsideRoot, fmt.Sprintf("folder %q is outside the import root", dir)).
			WithResource(dir).
			Build()
	}
	return target, nil
}

func listFiles(dir string, opts Options) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	skip := make(map[string]bool, len(opts.Skip))
	for _, s := range opts.Skip {
		skip[s] = true
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || skip[e.Name()] {
			continue
		}
		if len(opts.Extensions) > 0 && !hasExtension(e.Name(), opts.Extensions) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	if opts.MaxFiles > 0 && len(files) > opts.MaxFiles {
		files = files[:opts.MaxFiles]
	}
	return files, nil
}

func hasExtension(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}
