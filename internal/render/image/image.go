// Package image turns plan graphs and DOT documents into SVG, PNG or JPEG
// through Graphviz.
package image

import (
	"context"
	"io"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/mickamy/pgdot/internal/errs"
	"github.com/mickamy/pgdot/internal/graph"
	"github.com/mickamy/pgdot/internal/render/dot"
)

// Format is an output image format.
type Format string

const (
	SVG Format = "svg"
	PNG Format = "png"
	JPG Format = "jpg"
)

// ParseFormat accepts svg, png, jpg and jpeg in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "svg":
		return SVG, nil
	case "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPG, nil
	default:
		return "", errs.Newf(errs.CodeInvalidRequest, "image: unsupported format %q", s)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case SVG:
		return "image/svg+xml"
	case PNG:
		return "image/png"
	case JPG:
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

func (f Format) graphviz() (graphviz.Format, bool) {
	switch f {
	case SVG:
		return graphviz.SVG, true
	case PNG:
		return graphviz.PNG, true
	case JPG:
		return graphviz.JPG, true
	default:
		return "", false
	}
}

// Render lays out g with dot and writes it to w in format.
func Render(ctx context.Context, w io.Writer, g *graph.Graph, opts dot.Options, format Format) error {
	gvFormat, ok := format.graphviz()
	if !ok {
		return errs.Newf(errs.CodeInvalidRequest, "image: unsupported format %q", format)
	}
	return dot.Layout(ctx, w, g, opts, gvFormat)
}

// RenderDOT lays out a stored DOT document and writes it to w in format.
func RenderDOT(ctx context.Context, w io.Writer, doc []byte, format Format) error {
	gvFormat, ok := format.graphviz()
	if !ok {
		return errs.Newf(errs.CodeInvalidRequest, "image: unsupported format %q", format)
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return errs.Wrap(err, errs.CodeRenderFailed, "image: init graphviz")
	}
	defer func() { _ = gv.Close() }()

	graph, err := graphviz.ParseBytes(doc)
	if err != nil {
		return errs.Wrap(err, errs.CodeRenderFailed, "image: parse dot")
	}
	defer func() { _ = graph.Close() }()

	if err := gv.Render(ctx, graph, gvFormat, w); err != nil {
		return errs.Wrapf(err, errs.CodeRenderFailed, "image: render %s", format)
	}
	return nil
}
