package importer

import (
	"context"
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/conorfennell/chopper/internal/gitsource"
)

//go:embed assets/questions.json
var bundled embed.FS

// BundledFile is the name of the question set shipped inside the binary.
const BundledFile = "assets/questions.json"

// Source yields an import document.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	String() string
}

// BundledSource reads the question set embedded in the binary.
type BundledSource struct{}

func (BundledSource) Open(context.Context) (io.ReadCloser, error) {
	return bundled.Open(BundledFile)
}

func (BundledSource) String() string { return "bundled:" + BundledFile }

// FileSource reads a question set from the local filesystem.
type FileSource struct {
	Path string
}

func (s FileSource) Open(context.Context) (io.ReadCloser, error) {
	return os.Open(s.Path)
}

func (s FileSource) String() string { return "file:" + s.Path }

// GitSource clones or pulls a repository and reads File from its worktree.
type GitSource struct {
	URL  string
	Dir  string
	File string
}

func (s GitSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := gitsource.Sync(ctx, s.URL, s.Dir); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.Dir, s.File))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s in %s: %w", s.File, s.URL, err)
	}
	return f, nil
}

func (s GitSource) String() string { return "git:" + s.URL + "#" + s.File }

// ImportFrom opens src and imports its document.
func (i *Importer) ImportFrom(ctx context.Context, src Source) (bool, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to open import source %s: %w", src, err)
	}
	defer rc.Close()

	i.log.Info("Importing questions", "source", src.String())
	return i.Import(ctx, rc)
}

// ImportFile imports the document at path.
func (i *Importer) ImportFile(ctx context.Context, path string) (bool, error) {
	return i.ImportFrom(ctx, FileSource{Path: path})
}

// ImportBundled imports the question set shipped with the binary.
func (i *Importer) ImportBundled(ctx context.Context) (bool, error) {
	return i.ImportFrom(ctx, BundledSource{})
}
