package archive

import (
	"mime"
	"path"
	"strings"
)

// imageTypes pins the common page formats so results do not depend on the
// host's mime.types.
var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".avif": "image/avif",
	".jxl":  "image/jxl",
}

// MediaTypeOf derives a MIME type from a file name's extension. It returns
// "" when the extension is unknown.
func MediaTypeOf(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return ""
	}
	if t, ok := imageTypes[ext]; ok {
		return t
	}
	t := mime.TypeByExtension(ext)
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}

func isImage(name string) bool {
	return strings.HasPrefix(MediaTypeOf(name), "image/")
}
