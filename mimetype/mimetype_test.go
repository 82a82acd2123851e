package mimetype

import (
	"testing"

	"github.com/freekieb7/httpsrvdev/test"
)

func TestEncodeExtension(t *testing.T) {
	html := uint64('h')<<24 | uint64('t')<<16 | uint64('m')<<8 | uint64('l')

	test.AssertEqual(t, html, EncodeExtension("index.html"))
	test.AssertEqual(t, html, EncodeExtension("/srv/www/INDEX.html"))
	test.AssertEqual(t, uint64('H')<<24|uint64('T')<<16|uint64('M')<<8|uint64('L'), EncodeExtension("INDEX.HTML"))
	test.AssertEqual(t, uint64('j')<<8|uint64('s'), EncodeExtension("app.min.js"))
	test.AssertEqual(t, uint64(0), EncodeExtension("Makefile"))
	test.AssertEqual(t, uint64(0), EncodeExtension("trailing."))
	test.AssertEqual(t, uint64(0), EncodeExtension("dir.d/Makefile"))
	test.AssertEqual(t, uint64(0), EncodeExtension("archive.verylongext"))
}

func TestExtension(t *testing.T) {
	test.AssertEqual(t, "profile", Extension("/home/u/.profile"))
	test.AssertEqual(t, "gz", Extension("release.tar.gz"))
	test.AssertEqual(t, "", Extension("/a.b/c"))
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
	}{
		{"index.html", "text/html; charset=utf-8"},
		{"page.htm", "text/html; charset=utf-8"},
		{"style.css", "text/css; charset=utf-8"},
		{"photo.jpg", "image/jpeg"},
		{"font.woff2", "font/woff2"},
		{"clip.ogv", "video/ogg"},
		{"data.jsonld", "application/ld+json; charset=utf-8"},
		{"main.go", "text/plain; charset=utf-8"},
		{"lib.c++", "text/plain; charset=utf-8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, ok := Lookup(tt.name)
			if !ok {
				t.Fatalf("%s not found", tt.name)
			}
			test.AssertEqual(t, tt.contentType, info.ContentType())
		})
	}

	if _, ok := Lookup("README"); ok {
		t.Error("README should not have a table entry")
	}
	if _, ok := Lookup("PHOTO.JPG"); ok {
		t.Error("extensions are matched case-sensitively")
	}
}

func TestResolverWithoutDefault(t *testing.T) {
	var r Resolver

	info, err := r.Resolve("a.txt")
	test.AssertNoError(t, err)
	test.AssertEqual(t, "text/plain", info.MimeType)

	_, err = r.Resolve("LICENSE")
	test.AssertErrorIs(t, err, ErrFileHasNoExtension)

	_, err = r.Resolve("notes.unknownx")
	test.AssertErrorIs(t, err, ErrUnknownExtension)
}

func TestResolverWithDefault(t *testing.T) {
	r := Resolver{Default: "application/octet-stream"}

	info, err := r.Resolve("LICENSE")
	test.AssertNoError(t, err)
	test.AssertEqual(t, "application/octet-stream; charset=utf-8", info.ContentType())

	info, err = r.Resolve("notes.unknownx")
	test.AssertNoError(t, err)
	test.AssertEqual(t, "application/octet-stream", info.MimeType)

	info, err = r.Resolve("logo.png")
	test.AssertNoError(t, err)
	test.AssertEqual(t, "image/png", info.ContentType())
}

func TestTableHasNoDuplicateKeys(t *testing.T) {
	seen := make(map[string]bool, len(fileTypes))
	for _, ft := range fileTypes {
		if seen[ft.ext] {
			t.Errorf("duplicate extension %q", ft.ext)
		}
		seen[ft.ext] = true
		if len(ft.ext) > MaxExtensionLength {
			t.Errorf("extension %q longer than %d bytes", ft.ext, MaxExtensionLength)
		}
	}
}
