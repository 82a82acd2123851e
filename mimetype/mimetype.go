package mimetype

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

const MaxExtensionLength = 8

var (
	ErrFileHasNoExtension = errors.New("mimetype: file has no extension and no default type is configured")
	ErrUnknownExtension   = errors.New("mimetype: unknown extension and no default type is configured")
)

// FileTypeInfo describes how files with one extension are served.
type FileTypeInfo struct {
	// Extension packs up to eight extension bytes, last byte lowest.
	Extension   uint64
	MimeType    string
	CharsetUTF8 bool
}

func (info FileTypeInfo) ContentType() string {
	if info.CharsetUTF8 {
		return info.MimeType + "; charset=utf-8"
	}
	return info.MimeType
}

// Extension returns the bytes after the last '.' of the base name, case
// preserved. Hidden files like ".profile" have the extension "profile".
func Extension(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	i := strings.LastIndexByte(base, '.')
	if i < 0 {
		return ""
	}
	return base[i+1:]
}

// EncodeExtension packs the extension of name into an integer key. It returns
// 0 for names without an extension and for extensions longer than eight bytes.
func EncodeExtension(name string) uint64 {
	return encode(Extension(name))
}

func encode(ext string) uint64 {
	if len(ext) == 0 || len(ext) > MaxExtensionLength {
		return 0
	}
	var encoding uint64
	for i := 0; i < len(ext); i++ {
		encoding = encoding<<8 | uint64(ext[i])
	}
	return encoding
}

// Lookup finds the table entry for the extension of name.
func Lookup(name string) (FileTypeInfo, bool) {
	info, ok := byExtension[EncodeExtension(name)]
	return info, ok
}

// Resolver picks the content type for served files. Default is used for
// files without an extension and for unknown extensions; when it is empty
// those files are an error.
type Resolver struct {
	Default string
}

func (r Resolver) Resolve(name string) (FileTypeInfo, error) {
	ext := Extension(name)
	if ext == "" {
		if r.Default == "" {
			return FileTypeInfo{}, fmt.Errorf("%w: %s", ErrFileHasNoExtension, name)
		}
		return FileTypeInfo{MimeType: r.Default, CharsetUTF8: true}, nil
	}

	key := encode(ext)
	if info, ok := byExtension[key]; ok {
		return info, nil
	}

	if r.Default == "" {
		return FileTypeInfo{}, fmt.Errorf("%w: %q", ErrUnknownExtension, ext)
	}
	return FileTypeInfo{Extension: key, MimeType: r.Default, CharsetUTF8: true}, nil
}

var byExtension = func() map[uint64]FileTypeInfo {
	m := make(map[uint64]FileTypeInfo, len(fileTypes))
	for _, ft := range fileTypes {
		key := encode(ft.ext)
		if _, dup := m[key]; dup {
			continue
		}
		m[key] = FileTypeInfo{Extension: key, MimeType: ft.mime, CharsetUTF8: ft.utf8}
	}
	return m
}()

// Sources: MDN "Common media types".
var fileTypes = []struct {
	ext  string
	mime string
	utf8 bool
}{
	// Web
	{"html", "text/html", true},
	{"htm", "text/html", true},
	{"js", "text/javascript", true},
	{"mjs", "text/javascript", true},
	{"css", "text/css", true},
	{"xhtml", "application/xhtml+xml", true},

	// Other common text formats
	{"json", "application/json", true},
	{"jsonld", "application/ld+json", true},
	{"txt", "text/plain", true},
	{"csv", "text/csv", true},
	{"xml", "application/xml", true},
	{"ics", "text/calendar", true},

	// Unspecified binary
	{"bin", "application/octet-stream", true},

	// Images
	{"jpg", "image/jpeg", false},
	{"jpeg", "image/jpeg", false},
	{"png", "image/png", false},
	{"webp", "image/webp", false},
	{"svg", "image/svg+xml", true},
	{"gif", "image/gif", false},
	{"tif", "image/tiff", false},
	{"tiff", "image/tiff", false},
	{"bmp", "image/bmp", false},
	{"apng", "image/apng", false},
	{"ico", "image/vnd.microsoft.icon", false},
	{"avif", "image/avif", false},

	// Fonts
	{"otf", "font/otf", false},
	{"ttf", "font/ttf", false},
	{"woff", "font/woff", false},
	{"woff2", "font/woff2", false},
	{"eot", "application/vnd.ms-fontobject", false},

	// Video
	{"mp4", "video/mp4", false},
	{"mpeg", "video/mpeg", false},
	{"avi", "video/x-msvideo", false},
	{"webm", "video/webm", false},
	{"ogv", "video/ogg", false},
	{"ts", "video/mp2t", false},

	// Audio
	{"mp3", "audio/mpeg", false},
	{"wav", "audio/wav", false},
	{"opus", "audio/opus", false},
	{"oga", "audio/ogg", false},
	{"aac", "audio/aac", false},
	{"weba", "audio/weba", false},
	{"mid", "audio/midi", false},
	{"midi", "audio/midi", false},
	{"cda", "application/x-cdf", false},

	// Documents
	{"pdf", "application/pdf", false},
	{"docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", false},
	{"doc", "application/msword", false},
	{"xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", false},
	{"xls", "application/vnd.ms-excel", false},
	{"pptx", "application/vnd.openxmlformats-officedocument.presentationml.presentation", false},
	{"ppt", "application/vnd.ms-powerpoint", false},
	{"odt", "application/vnd.oasis.opendocument.text", false},
	{"odp", "application/vnd.oasis.opendocument.presentation", false},
	{"ods", "application/vnd.oasis.opendocument.spreadsheet", false},
	{"epub", "application/epub+zip", false},
	{"azw", "application/vnd.amazon.ebook", false},
	{"abw", "application/x-abiword", false},
	{"vsd", "application/vnd.visio", false},

	// Archives
	{"zip", "application/zip", false},
	{"gz", "application/gzip", false},
	{"tar", "application/x-tar", false},
	{"7z", "application/x-7z-compressed", false},
	{"bz", "application/x-bzip", false},
	{"bz2", "application/x-bzip2", false},
	{"arc", "application/x-freearc", false},
	{"jar", "application/java-archive", false},
	{"ogx", "application/ogg", false},

	// Source code and markup, shown as text in the browser
	{"php", "application/x-httpd-php", true},
	{"sh", "text/plain", true},
	{"csh", "text/plain", true},
	{"rtf", "text/plain", true},
	{"md", "text/plain", true},
	{"org", "text/plain", true},
	{"adoc", "text/plain", true},
	{"c", "text/plain", true},
	{"h", "text/plain", true},
	{"cpp", "text/plain", true},
	{"hpp", "text/plain", true},
	{"c++", "text/plain", true},
	{"h++", "text/plain", true},
	{"py", "text/plain", true},
	{"go", "text/plain", true},
	{"java", "text/plain", true},
	{"zig", "text/plain", true},
	{"odin", "text/plain", true},
	{"ha", "text/plain", true},
	{"jai", "text/plain", true},
	{"rs", "text/plain", true},
	{"cjs", "text/plain", true},
	{"mojo", "text/plain", true},
	{"rb", "text/plain", true},
}
