package image_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/pgdot/internal/errs"
	"github.com/mickamy/pgdot/internal/render/dot"
	"github.com/mickamy/pgdot/internal/render/image"
	"github.com/mickamy/pgdot/test"
)

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]image.Format{"svg": image.SVG, "PNG": image.PNG, "jpeg": image.JPG, "jpg": image.JPG} {
		got, err := image.ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := image.ParseFormat("gif")
	assert.Equal(t, errs.CodeInvalidRequest, errs.CodeOf(err))
	assert.Equal(t, "image/svg+xml", image.SVG.ContentType())
}

func TestRenderSVG(t *testing.T) {
	g := test.LoadSampleGraph(t, "cte.json")

	var buf bytes.Buffer
	require.NoError(t, image.Render(context.Background(), &buf, g, dot.Options{}, image.SVG))
	assert.Contains(t, buf.String(), "<svg")
	assert.Contains(t, buf.String(), "node0")
	assert.Contains(t, buf.String(), "cluster_0")
}

func TestRenderPNG(t *testing.T) {
	g := test.LoadSampleGraph(t, "simple.json")

	var buf bytes.Buffer
	require.NoError(t, image.Render(context.Background(), &buf, g, dot.Options{}, image.PNG))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}

func TestRenderDOTDocument(t *testing.T) {
	g := test.LoadSampleGraph(t, "simple.json")
	doc, err := dot.String(context.Background(), g, dot.Options{GraphID: "stored"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, image.RenderDOT(context.Background(), &buf, []byte(doc), image.SVG))
	assert.Contains(t, buf.String(), "<svg")
	assert.Contains(t, buf.String(), "stored")
}

func TestRenderRejectsUnknownFormat(t *testing.T) {
	g := test.LoadSampleGraph(t, "simple.json")

	err := image.Render(context.Background(), &bytes.Buffer{}, g, dot.Options{}, image.Format("bmp"))
	assert.Equal(t, errs.CodeInvalidRequest, errs.CodeOf(err))

	err = image.RenderDOT(context.Background(), &bytes.Buffer{}, []byte("digraph {}"), image.Format("bmp"))
	assert.Equal(t, errs.CodeInvalidRequest, errs.CodeOf(err))
}
