package source

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMediaTypeFor(t *testing.T) {
	cases := map[string]string{
		"README.md":      "text/markdown",
		"notes.markdown": "text/markdown",
		"report.pdf":     "application/pdf",
		"Makefile":       "text/plain",
		"vectors.xyzzy":  "text/plain",
	}
	for name, want := range cases {
		assert.Equal(t, want, mediaTypeFor(name), name)
	}

	// Extensions the platform mime table knows keep their registered type.
	got := mediaTypeFor("page.html")
	assert.True(t, strings.HasPrefix(got, "text/html"), got)
}
