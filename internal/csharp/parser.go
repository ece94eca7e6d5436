// Package csharp is the C# host of the verifier. It parses sources with
// tree-sitter, builds a declaration index across files and answers the
// verifier's symbol questions approximately from syntax.
package csharp

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	"golang.org/x/sync/errgroup"
)

// Source is a C# file to analyze.
type Source struct {
	Path    string
	Content []byte
}

// Comment is a source comment with its 1-based starting line.
type Comment struct {
	Line int
	Text string
}

// File is a parsed C# file. A File must be closed to release the syntax
// tree.
type File struct {
	Path string
	Src  []byte

	// Generated reports whether the file carries generated-code markers.
	Generated bool

	// Comments are the file's comments in source order.
	Comments []Comment

	tree *sitter.Tree
	root *sitter.Node

	// Filled while indexing.
	namespace string // file-scoped namespace
	usings    []string
	statics   []string
	aliases   map[string]*sitter.Node
	types     map[uint]*typeDecl // declaration start byte -> type
	members   map[uint]*member   // member declaration start byte -> member
}

// Root returns the compilation unit node.
func (f *File) Root() *sitter.Node {
	return f.root
}

// HasErrors reports whether the file contains syntax errors.
func (f *File) HasErrors() bool {
	return f.root != nil && f.root.HasError()
}

// Close releases the syntax tree.
func (f *File) Close() {
	if f.tree != nil {
		f.tree.Close()
		f.tree = nil
		f.root = nil
	}
}

func (f *File) text(node *sitter.Node) string {
	return nodeText(node, f.Src)
}

func newParser() (*sitter.Parser, error) {
	parser := sitter.NewParser()
	if err := parser.SetLanguage(sitter.NewLanguage(tree_sitter_csharp.Language())); err != nil {
		parser.Close()
		return nil, fmt.Errorf("load C# grammar: %w", err)
	}
	return parser, nil
}

// ParseFile parses a single source.
func ParseFile(src Source) (*File, error) {
	parser, err := newParser()
	if err != nil {
		return nil, err
	}
	defer parser.Close()
	return parseWith(parser, src)
}

func parseWith(parser *sitter.Parser, src Source) (*File, error) {
	tree := parser.Parse(src.Content, nil)
	if tree == nil {
		return nil, fmt.Errorf("parse %s: parser returned no tree", src.Path)
	}
	f := &File{
		Path:    src.Path,
		Src:     src.Content,
		tree:    tree,
		root:    tree.RootNode(),
		aliases: make(map[string]*sitter.Node),
		types:   make(map[uint]*typeDecl),
		members: make(map[uint]*member),
	}
	f.Comments = collectComments(f)
	f.Generated = IsGeneratedName(src.Path) || hasGeneratedHeader(f)
	if f.HasErrors() {
		slog.Debug("syntax errors in file", "file", src.Path)
	}
	return f, nil
}

// Parse parses sources concurrently, one parser per worker. The returned
// files are in the order of sources.
func Parse(ctx context.Context, sources []Source) ([]*File, error) {
	files := make([]*File, len(sources))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			parser, err := newParser()
			if err != nil {
				return err
			}
			defer parser.Close()

			f, err := parseWith(parser, src)
			if err != nil {
				return err
			}
			files[i] = f
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, f := range files {
			if f != nil {
				f.Close()
			}
		}
		return nil, err
	}
	return files, nil
}

func collectComments(f *File) []Comment {
	var out []Comment
	walk(f.root, func(n *sitter.Node) bool {
		if n.Kind() == "comment" {
			out = append(out, Comment{Line: int(n.StartPosition().Row) + 1, Text: f.text(n)})
			return false
		}
		return true
	})
	return out
}

// walk visits node and its descendants in source order. Returning false
// skips the children of the visited node.
func walk(node *sitter.Node, visit func(*sitter.Node) bool) {
	if node == nil || !visit(node) {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		walk(node.Child(i), visit)
	}
}

// IsGeneratedName reports whether path follows a generated-code naming
// convention.
func IsGeneratedName(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	for _, suffix := range []string{".g.cs", ".g.i.cs", ".designer.cs", ".generated.cs"} {
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}
	return false
}

// hasGeneratedHeader checks the comments preceding the first declaration for
// an auto-generated marker.
func hasGeneratedHeader(f *File) bool {
	for i := uint(0); i < f.root.ChildCount(); i++ {
		child := f.root.Child(i)
		if child == nil {
			continue
		}
		if child.Kind() != "comment" {
			return false
		}
		text := strings.ToLower(f.text(child))
		if strings.Contains(text, "<auto-generated") || strings.Contains(text, "<autogenerated") {
			return true
		}
	}
	return false
}
