package pdf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTemplateRendererProducesPDF(t *testing.T) {
	r := NewTemplateRenderer("Universiteti i Tiranës")

	out, err := r.Render(map[string]string{
		"courseTitle":       "Algoritmika",
		"courseCode":        "INF201",
		"instructor":        "A. Hoxha",
		"courseDescription": "Hyrje në algoritme dhe struktura të dhënash.",
	})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestTemplateRendererEmptyData(t *testing.T) {
	r := NewTemplateRenderer("")

	// Every missing section falls back to boilerplate; rendering never fails
	// on sparse data.
	out, err := r.Render(map[string]string{})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestGradingItems(t *testing.T) {
	items := gradingItems("- Provim 50%\n* Detyra 30%\n  Pjesëmarrja 20%\n\n")
	require.Equal(t, []string{"Provim 50%", "Detyra 30%", "Pjesëmarrja 20%"}, items)

	require.Equal(t, defaultGrading, gradingItems(""))
	require.Equal(t, defaultGrading, gradingItems("  \n "))
}
