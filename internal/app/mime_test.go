package app

import (
	"mime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaticTypesRegistered(t *testing.T) {
	for ext := range staticTypes {
		assert.NotEmpty(t, mime.TypeByExtension(ext), ext)
	}
	assert.True(t, strings.HasPrefix(mime.TypeByExtension(".js"), "text/javascript") ||
		strings.HasPrefix(mime.TypeByExtension(".js"), "application/javascript"))
}
