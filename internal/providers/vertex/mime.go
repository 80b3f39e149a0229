package vertex

import (
	"mime"
	"path"
	"strings"
)

var extensionMimeTypes = map[string]string{
	"pdf":   "application/pdf",
	"json":  "application/json",
	"jsonl": "application/jsonl",
	"txt":   "text/plain",
	"md":    "text/md",
	"html":  "text/html",
	"css":   "text/css",
	"csv":   "text/csv",
	"xml":   "text/xml",
	"rtf":   "text/rtf",
	"js":    "text/javascript",
	"py":    "text/x-python",
	"png":   "image/png",
	"jpg":   "image/jpeg",
	"jpeg":  "image/jpeg",
	"webp":  "image/webp",
	"gif":   "image/gif",
	"heic":  "image/heic",
	"heif":  "image/heif",
	"mp3":   "audio/mp3",
	"wav":   "audio/wav",
	"aac":   "audio/aac",
	"flac":  "audio/flac",
	"ogg":   "audio/ogg",
	"opus":  "audio/ogg",
	"mp4":   "video/mp4",
	"mov":   "video/mov",
	"mpeg":  "video/mpeg",
	"mpg":   "video/mpg",
	"avi":   "video/avi",
	"wmv":   "video/wmv",
	"flv":   "video/x-flv",
	"webm":  "video/webm",
	"3gp":   "video/3gpp",
}

// MimeType guesses a file's mime type from the extension of a URL or path.
// It returns "" when nothing matches.
func MimeType(uri string) string {
	if i := strings.IndexAny(uri, "?#"); i >= 0 {
		uri = uri[:i]
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(uri), "."))
	if ext == "" {
		return ""
	}
	if mt, ok := extensionMimeTypes[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension("." + ext); mt != "" {
		mt, _, _ = strings.Cut(mt, ";")
		return mt
	}
	return ""
}
