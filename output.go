package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mickamy/pgdot/internal/errs"
	"github.com/mickamy/pgdot/internal/graph"
	"github.com/mickamy/pgdot/internal/parser"
	"github.com/mickamy/pgdot/internal/render/dot"
	"github.com/mickamy/pgdot/internal/render/html"
	"github.com/mickamy/pgdot/internal/render/image"
	"github.com/mickamy/pgdot/internal/render/tui"
)

// Output formats understood by render and run.
const (
	formatDOT  = "dot"
	formatSVG  = "svg"
	formatPNG  = "png"
	formatJPG  = "jpg"
	formatTree = "tree"
	formatHTML = "html"
	formatJSON = "json"
)

type outputOptions struct {
	Format   string
	GraphID  string
	Title    string
	Color    bool
	MaxDepth int
	Strict   bool
	YAML     bool
}

func (o outputOptions) validate(allowJSON bool) error {
	switch strings.ToLower(o.Format) {
	case formatDOT, formatSVG, formatPNG, formatJPG, "jpeg", formatTree, formatHTML:
		return nil
	case formatJSON:
		if allowJSON {
			return nil
		}
	}
	return errs.Newf(errs.CodeInvalidRequest, "unknown format %q", o.Format)
}

// emit parses plan and writes it to w in the requested format.
func emit(ctx context.Context, w io.Writer, plan []byte, opts outputOptions) error {
	format := strings.ToLower(opts.Format)
	if format == formatJSON {
		return writeIndentedJSON(w, plan)
	}

	input := parser.FormatAuto
	if opts.YAML {
		input = parser.FormatYAML
	}
	explain, err := parser.Parse(bytes.NewReader(plan), parser.Options{Format: input, Strict: opts.Strict})
	if err != nil {
		return err
	}
	g, err := graph.Build(explain)
	if err != nil {
		return err
	}

	dotOpts := dot.Options{GraphID: opts.GraphID}
	switch format {
	case formatDOT:
		return dot.Render(ctx, w, g, dotOpts)
	case formatTree:
		return tui.Render(w, g, tui.Options{
			EnableColor:  opts.Color,
			MaxDepth:     opts.MaxDepth,
			ShowInsights: true,
		})
	case formatHTML:
		var svg bytes.Buffer
		if err := image.Render(ctx, &svg, g, dotOpts, image.SVG); err != nil {
			return err
		}
		return html.Render(w, g, html.Options{
			Title:         opts.Title,
			IncludeStyles: true,
			SVG:           svg.Bytes(),
		})
	default:
		imgFormat, err := image.ParseFormat(format)
		if err != nil {
			return err
		}
		return image.Render(ctx, w, g, dotOpts, imgFormat)
	}
}

func writeIndentedJSON(w io.Writer, data []byte) error {
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return errs.Wrap(err, errs.CodeMalformedInput, "indent json")
	}
	out.WriteByte('\n')
	if _, err := w.Write(out.Bytes()); err != nil {
		return errs.Wrap(err, errs.CodeRenderFailed, "write json")
	}
	return nil
}

// readInput returns the contents of path, or stdin when path is empty or "-".
func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// withOutput calls fn with stdout, or with a freshly created file when path is set.
func withOutput(stdout io.Writer, path string, fn func(io.Writer) error) error {
	if path == "" || path == "-" {
		return fn(stdout)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := fn(file); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
