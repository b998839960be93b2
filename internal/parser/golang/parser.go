// Package golang parses Go source trees into graph entities using the
// standard go/ast toolchain.
package golang

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/codeatlas-ai/codeatlas/internal/ingest"
	"github.com/codeatlas-ai/codeatlas/internal/types"
)

// Parser error codes
const (
	ErrCodeParseFailed types.ErrorCode = "PARSE_FAILED"
	ErrCodeInvalidRoot types.ErrorCode = "PARSE_INVALID_ROOT"
)

// Node labels and relationship types emitted by the parser.
const (
	LabelDirectory = "Directory"
	LabelFile      = "File"
	LabelFunction  = "Function"
	LabelType      = "Type"

	RelDefinedIn   = "DEFINED_IN"
	RelInDirectory = "IN_DIRECTORY"
	RelCalls       = "CALLS"
)

// Parser walks a source tree and produces Directory, File and scope
// entities plus their structural relationships.
type Parser struct {
	include []string
	exclude []string
	logger  *slog.Logger
}

// NewParser creates a parser. include and exclude are doublestar
// patterns matched against paths relative to the parse root; empty
// include defaults to all Go files.
func NewParser(include, exclude []string, logger *slog.Logger) *Parser {
	if len(include) == 0 {
		include = []string{"**/*.go"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{include: include, exclude: exclude, logger: logger}
}

// Parse walks root and parses every matching Go file.
func (p *Parser) Parse(ctx context.Context, root string) (ingest.ParseResult, error) {
	info, err := os.Stat(root)
	if err != nil {
		return ingest.ParseResult{}, types.WrapError(ErrCodeInvalidRoot,
			fmt.Sprintf("cannot read parse root %s", root), err)
	}
	if !info.IsDir() {
		return ingest.ParseResult{}, types.NewError(ErrCodeInvalidRoot,
			fmt.Sprintf("parse root %s is not a directory", root))
	}

	files, err := p.selectFiles(root)
	if err != nil {
		return ingest.ParseResult{}, err
	}

	b := newBuilder()
	for _, relPath := range files {
		if err := ctx.Err(); err != nil {
			return ingest.ParseResult{}, err
		}
		if err := b.addFile(root, relPath); err != nil {
			return ingest.ParseResult{}, err
		}
	}
	b.resolveCalls()

	result := b.result()
	p.logger.Debug("source tree parsed",
		"root", root,
		"files", len(files),
		"entities", len(result.Entities),
		"relationships", len(result.Relationships))

	return result, nil
}

// selectFiles walks root applying include/exclude patterns, skipping
// vendor and hidden directories. Returned paths are relative to root
// and sorted for deterministic output.
func (p *Parser) selectFiles(root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if p.matches(rel) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, types.WrapError(ErrCodeParseFailed, "source walk failed", err)
	}

	sort.Strings(files)
	return files, nil
}

func (p *Parser) matches(rel string) bool {
	included := false
	for _, pattern := range p.include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			included = true
			break
		}
	}
	if !included {
		return false
	}
	for _, pattern := range p.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
	}
	return true
}

func skipDir(name string) bool {
	if name == "vendor" || name == "testdata" || name == "node_modules" {
		return true
	}
	return strings.HasPrefix(name, ".")
}

// builder accumulates entities and relationships across files.
type builder struct {
	fset *token.FileSet

	entities      []ingest.Entity
	relationships []ingest.Relationship

	dirs map[string]struct{}

	// funcsByPkg maps package name → function name → entity uuid, for
	// call resolution within the declaring package.
	funcsByPkg map[string]map[string]string

	// pendingCalls holds unresolved callee names per caller uuid.
	pendingCalls []pendingCall
}

type pendingCall struct {
	pkg        string
	callerUUID string
	callee     string
}

func newBuilder() *builder {
	return &builder{
		fset:       token.NewFileSet(),
		dirs:       make(map[string]struct{}),
		funcsByPkg: make(map[string]map[string]string),
	}
}

func (b *builder) addFile(root, relPath string) error {
	absPath := filepath.Join(root, filepath.FromSlash(relPath))
	src, err := os.ReadFile(absPath)
	if err != nil {
		return types.WrapError(ErrCodeParseFailed,
			fmt.Sprintf("cannot read %s", relPath), err)
	}

	astFile, err := parser.ParseFile(b.fset, relPath, src, parser.ParseComments)
	if err != nil {
		return types.WrapError(ErrCodeParseFailed,
			fmt.Sprintf("cannot parse %s", relPath), err)
	}

	pkgName := astFile.Name.Name

	fileEntity := ingest.Entity{
		Label:   LabelFile,
		Path:    relPath,
		Kind:    "file",
		Content: string(src),
		Properties: map[string]any{
			"package":  pkgName,
			"language": "go",
		},
	}
	b.entities = append(b.entities, fileEntity)
	fileUUID := fileEntity.UUID()

	b.addDirectories(relPath, fileUUID)

	for _, decl := range astFile.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			b.addFunction(src, relPath, pkgName, fileUUID, d)
		case *ast.GenDecl:
			if d.Tok == token.TYPE {
				b.addTypes(src, relPath, fileUUID, d)
			}
		}
	}
	return nil
}

// addDirectories emits the directory chain above a file and its
// containment relationships.
func (b *builder) addDirectories(relPath, fileUUID string) {
	dir := filepath.ToSlash(filepath.Dir(relPath))
	prevUUID := fileUUID

	for dir != "." && dir != "/" {
		entity := ingest.Entity{
			Label: LabelDirectory,
			Path:  dir,
			Kind:  "directory",
		}
		uuid := entity.UUID()

		b.relationships = append(b.relationships, ingest.Relationship{
			Type:     RelInDirectory,
			FromUUID: prevUUID,
			ToUUID:   uuid,
		})

		if _, seen := b.dirs[dir]; seen {
			return
		}
		b.dirs[dir] = struct{}{}
		b.entities = append(b.entities, entity)

		prevUUID = uuid
		dir = filepath.ToSlash(filepath.Dir(dir))
	}
}

func (b *builder) addFunction(src []byte, relPath, pkgName, fileUUID string, decl *ast.FuncDecl) {
	name := decl.Name.Name
	kind := "function"
	if decl.Recv != nil && len(decl.Recv.List) > 0 {
		kind = "method"
		if recv := receiverTypeName(decl.Recv.List[0].Type); recv != "" {
			name = recv + "." + name
		}
	}

	entity := ingest.Entity{
		Label:     LabelFunction,
		Path:      relPath,
		Name:      name,
		Kind:      kind,
		StartLine: b.fset.Position(decl.Pos()).Line,
		EndLine:   b.fset.Position(decl.End()).Line,
		Content:   sourceSlice(src, b.fset, decl.Pos(), decl.End()),
		Properties: map[string]any{
			"package":  pkgName,
			"exported": decl.Name.IsExported(),
		},
	}
	uuid := entity.UUID()
	b.entities = append(b.entities, entity)
	b.relationships = append(b.relationships, ingest.Relationship{
		Type:     RelDefinedIn,
		FromUUID: uuid,
		ToUUID:   fileUUID,
	})

	if kind == "function" {
		if b.funcsByPkg[pkgName] == nil {
			b.funcsByPkg[pkgName] = make(map[string]string)
		}
		b.funcsByPkg[pkgName][decl.Name.Name] = uuid
	}

	if decl.Body != nil {
		ast.Inspect(decl.Body, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			if ident, ok := call.Fun.(*ast.Ident); ok {
				b.pendingCalls = append(b.pendingCalls, pendingCall{
					pkg:        pkgName,
					callerUUID: uuid,
					callee:     ident.Name,
				})
			}
			return true
		})
	}
}

func (b *builder) addTypes(src []byte, relPath, fileUUID string, decl *ast.GenDecl) {
	for _, spec := range decl.Specs {
		typeSpec, ok := spec.(*ast.TypeSpec)
		if !ok {
			continue
		}

		entity := ingest.Entity{
			Label:     LabelType,
			Path:      relPath,
			Name:      typeSpec.Name.Name,
			Kind:      typeKind(typeSpec.Type),
			StartLine: b.fset.Position(typeSpec.Pos()).Line,
			EndLine:   b.fset.Position(typeSpec.End()).Line,
			Content:   sourceSlice(src, b.fset, typeSpec.Pos(), typeSpec.End()),
			Properties: map[string]any{
				"exported": typeSpec.Name.IsExported(),
			},
		}
		b.entities = append(b.entities, entity)
		b.relationships = append(b.relationships, ingest.Relationship{
			Type:     RelDefinedIn,
			FromUUID: entity.UUID(),
			ToUUID:   fileUUID,
		})
	}
}

// resolveCalls links recorded call sites to package-level functions of
// the same package. Cross-package calls need import resolution and are
// out of reach of a single-package symbol table, so they are skipped.
func (b *builder) resolveCalls() {
	type edge struct{ from, to string }
	seen := make(map[edge]struct{})

	for _, call := range b.pendingCalls {
		calleeUUID, ok := b.funcsByPkg[call.pkg][call.callee]
		if !ok || calleeUUID == call.callerUUID {
			continue
		}
		e := edge{from: call.callerUUID, to: calleeUUID}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		b.relationships = append(b.relationships, ingest.Relationship{
			Type:     RelCalls,
			FromUUID: call.callerUUID,
			ToUUID:   calleeUUID,
		})
	}
}

func (b *builder) result() ingest.ParseResult {
	return ingest.ParseResult{
		Entities:      b.entities,
		Relationships: b.relationships,
	}
}

// sourceSlice returns the exact source text between two positions.
func sourceSlice(src []byte, fset *token.FileSet, start, end token.Pos) string {
	startOffset := fset.Position(start).Offset
	endOffset := fset.Position(end).Offset
	if startOffset < 0 || endOffset > len(src) || startOffset > endOffset {
		return ""
	}
	return string(src[startOffset:endOffset])
}

func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	case *ast.IndexExpr:
		return receiverTypeName(t.X)
	case *ast.IndexListExpr:
		return receiverTypeName(t.X)
	}
	return ""
}

func typeKind(expr ast.Expr) string {
	switch expr.(type) {
	case *ast.StructType:
		return "struct"
	case *ast.InterfaceType:
		return "interface"
	default:
		return "type"
	}
}
