package app

import (
	"log/slog"
	"mime"
)

// staticTypes covers the asset types under web/static that minimal container
// images may not know about.
var staticTypes = map[string]string{
	".css":  "text/css; charset=utf-8",
	".js":   "text/javascript; charset=utf-8",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".webp": "image/webp",
}

func init() {
	registerStaticTypes(slog.Default())
}

func registerStaticTypes(logger *slog.Logger) {
	for ext, typ := range staticTypes {
		if mime.TypeByExtension(ext) != "" {
			continue
		}
		if err := mime.AddExtensionType(ext, typ); err != nil {
			logger.Warn("register mime type", slog.String("ext", ext), slog.Any("error", err))
		}
	}
}
