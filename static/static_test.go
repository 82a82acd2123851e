package static

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	nethttp "net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/freekieb7/httpsrvdev/http"
	"github.com/freekieb7/httpsrvdev/test"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func startSite(t *testing.T, cfg Config) string {
	t.Helper()

	srv, err := Start(StartConfig{
		HTTP: http.Config{Address: "127.0.0.1", Port: 0},
		Site: cfg,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(context.Background())
	}()
	t.Cleanup(func() {
		_ = srv.Close()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("serve did not return after close")
		}
	})

	return srv.Addr().String()
}

var client = &nethttp.Client{
	Transport: otelhttp.NewTransport(nethttp.DefaultTransport),
	Timeout:   10 * time.Second,
}

func get(t *testing.T, method, url string) (*nethttp.Response, string) {
	t.Helper()

	req, err := nethttp.NewRequest(method, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

// rawGet sends the target exactly as given, without client side cleaning.
func rawGet(t *testing.T, addr, target string) (*nethttp.Response, string) {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("GET " + target + " HTTP/1.1\r\nHost: test\r\n\r\n")); err != nil {
		t.Fatal(err)
	}
	resp, err := nethttp.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func newTree(t *testing.T) (base, root string) {
	t.Helper()

	base = t.TempDir()
	root = filepath.Join(base, "www")
	writeFile(t, filepath.Join(base, "secret.txt"), "secret")
	writeFile(t, filepath.Join(root, "b.txt"), "bee")
	writeFile(t, filepath.Join(root, "a.txt"), "ay")
	writeFile(t, filepath.Join(root, "LICENSE"), "license")
	writeFile(t, filepath.Join(root, "sub", "page.html"), "<p>page</p>")
	writeFile(t, filepath.Join(root, "site", "index.html"), "<h1>home</h1>")
	writeFile(t, filepath.Join(root, "legacy", "index.htm"), "<h1>legacy</h1>")
	return base, root
}

func TestDirectoryListing(t *testing.T) {
	_, root := newTree(t)
	addr := startSite(t, Config{Sources: []string{root}})

	resp, body := get(t, nethttp.MethodGet, "http://"+addr+"/")
	test.AssertEqual(t, 200, resp.StatusCode)
	test.AssertEqual(t, "text/html", resp.Header.Get("Content-Type"))
	if len(resp.TransferEncoding) == 0 || resp.TransferEncoding[0] != "chunked" {
		t.Errorf("expected chunked listing, got %v", resp.TransferEncoding)
	}
	test.AssertEqual(t, 1, strings.Count(body, "<html>"))
	test.AssertEqual(t, 1, strings.Count(body, "</html>"))

	hrefs := []string{`href="/LICENSE"`, `href="/a.txt"`, `href="/b.txt"`, `href="/legacy/"`, `href="/site/"`, `href="/sub/"`}
	last := -1
	for _, href := range hrefs {
		i := strings.Index(body, href)
		if i < 0 {
			t.Fatalf("listing misses %s: %s", href, body)
		}
		if i < last {
			t.Errorf("%s out of order", href)
		}
		last = i
	}
	if strings.Contains(body, `">..</a>`) {
		t.Error("root listing should not link to its parent")
	}
}

func TestSubdirectoryListing(t *testing.T) {
	_, root := newTree(t)
	addr := startSite(t, Config{Sources: []string{root}})

	resp, body := get(t, nethttp.MethodGet, "http://"+addr+"/sub/")
	test.AssertEqual(t, 200, resp.StatusCode)
	if !strings.Contains(body, `href="/sub/page.html" target="_top">page.html</a>`) {
		t.Errorf("missing entry: %s", body)
	}
	if !strings.Contains(body, `href="/" target="_top">..</a>`) {
		t.Errorf("missing parent entry: %s", body)
	}
}

var anchorText = regexp.MustCompile(`target="_(?:top|self)">([^<]*)</a>`)

func TestSubdirectoryListingByteOrder(t *testing.T) {
	_, root := newTree(t)
	writeFile(t, filepath.Join(root, "sub", "+notes.txt"), "plus")
	writeFile(t, filepath.Join(root, "sub", "-draft.txt"), "minus")
	writeFile(t, filepath.Join(root, "sub", "b.txt"), "bee")
	addr := startSite(t, Config{Sources: []string{root}})

	_, body := get(t, nethttp.MethodGet, "http://"+addr+"/sub/")

	var names []string
	for _, m := range anchorText.FindAllStringSubmatch(body, -1) {
		names = append(names, m[1])
	}
	want := []string{"+notes.txt", "-draft.txt", "..", "b.txt", "page.html"}
	if strings.Join(names, "|") != strings.Join(want, "|") {
		t.Fatalf("entries %q, want %q", names, want)
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Errorf("%q listed after %q", names[i], names[i-1])
		}
	}
	if !strings.Contains(body, `href="/" target="_top">..</a>`) {
		t.Errorf("parent entry should link to the parent directory: %s", body)
	}
}

func TestIndexFile(t *testing.T) {
	_, root := newTree(t)
	addr := startSite(t, Config{Sources: []string{root}})

	resp, body := get(t, nethttp.MethodGet, "http://"+addr+"/site/")
	test.AssertEqual(t, 200, resp.StatusCode)
	test.AssertEqual(t, "<h1>home</h1>", body)
	test.AssertEqual(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	test.AssertEqual(t, int64(len("<h1>home</h1>")), resp.ContentLength)

	_, body = get(t, nethttp.MethodGet, "http://"+addr+"/legacy")
	test.AssertEqual(t, "<h1>legacy</h1>", body)
}

func TestIndexSymlinkOutsideRootIsIgnored(t *testing.T) {
	base, root := newTree(t)
	writeFile(t, filepath.Join(base, "index.html"), "outside")
	if err := os.Symlink(filepath.Join(base, "index.html"), filepath.Join(root, "sub", "index.html")); err != nil {
		t.Fatal(err)
	}
	addr := startSite(t, Config{Sources: []string{root}})

	_, body := get(t, nethttp.MethodGet, "http://"+addr+"/sub/")
	if strings.Contains(body, "outside") {
		t.Error("served an index file from outside the root")
	}
	if !strings.Contains(body, "page.html") {
		t.Errorf("expected a listing, got %s", body)
	}
}

func TestFile(t *testing.T) {
	_, root := newTree(t)
	large := strings.Repeat("0123456789abcdef", 1000)
	writeFile(t, filepath.Join(root, "large.txt"), large)
	addr := startSite(t, Config{Sources: []string{root}})

	resp, body := get(t, nethttp.MethodGet, "http://"+addr+"/a.txt")
	test.AssertEqual(t, 200, resp.StatusCode)
	test.AssertEqual(t, "ay", body)
	test.AssertEqual(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	test.AssertEqual(t, true, resp.Close)

	resp, body = get(t, nethttp.MethodGet, "http://"+addr+"/large.txt")
	test.AssertEqual(t, int64(len(large)), resp.ContentLength)
	test.AssertEqual(t, large, body)
}

func TestHead(t *testing.T) {
	_, root := newTree(t)
	addr := startSite(t, Config{Sources: []string{root}})

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("HEAD /b.txt HTTP/1.1\r\nHost: test\r\n\r\n")); err != nil {
		t.Fatal(err)
	}
	raw, err := io.ReadAll(conn)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasSuffix(raw, []byte("Content-Length: 3\r\nConnection: close\r\n\r\n")) {
		t.Errorf("expected headers without body, got %q", raw)
	}
}

func TestNotFound(t *testing.T) {
	_, root := newTree(t)
	addr := startSite(t, Config{Sources: []string{root}})

	tests := []string{
		"/missing.txt",
		"/../secret.txt",
		"/sub/../../secret.txt",
		"/../www/../secret.txt",
	}
	for _, target := range tests {
		resp, body := rawGet(t, addr, target)
		test.AssertEqual(t, 404, resp.StatusCode)
		test.AssertEqual(t, "File not found!", body)
		test.AssertEqual(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	}
}

func TestFileWithoutExtension(t *testing.T) {
	_, root := newTree(t)

	addr := startSite(t, Config{Sources: []string{root}})
	resp, body := get(t, nethttp.MethodGet, "http://"+addr+"/LICENSE")
	test.AssertEqual(t, 500, resp.StatusCode)
	test.AssertEqual(t, "Internal server error!", body)

	addr = startSite(t, Config{Sources: []string{root}, DefaultMimeType: "text/markdown"})
	resp, body = get(t, nethttp.MethodGet, "http://"+addr+"/LICENSE")
	test.AssertEqual(t, 200, resp.StatusCode)
	test.AssertEqual(t, "license", body)
	test.AssertEqual(t, "text/markdown; charset=utf-8", resp.Header.Get("Content-Type"))
}

func TestSingleFileSource(t *testing.T) {
	_, root := newTree(t)
	addr := startSite(t, Config{Sources: []string{filepath.Join(root, "b.txt")}})

	resp, body := get(t, nethttp.MethodGet, "http://"+addr+"/")
	test.AssertEqual(t, 200, resp.StatusCode)
	test.AssertEqual(t, "bee", body)

	resp, _ = get(t, nethttp.MethodGet, "http://"+addr+"/b.txt")
	test.AssertEqual(t, 404, resp.StatusCode)
}

func TestStdinSource(t *testing.T) {
	addr := startSite(t, Config{
		Sources:       []string{StdinSource},
		Stdin:         []byte("# piped"),
		StdinMimeType: "text/markdown",
	})

	resp, body := get(t, nethttp.MethodGet, "http://"+addr+"/anything")
	test.AssertEqual(t, 200, resp.StatusCode)
	test.AssertEqual(t, "# piped", body)
	test.AssertEqual(t, "text/markdown; charset=utf-8", resp.Header.Get("Content-Type"))
}

func TestMultipleSources(t *testing.T) {
	base, root := newTree(t)
	other := filepath.Join(base, "other")
	writeFile(t, filepath.Join(other, "x.txt"), "ex")

	addr := startSite(t, Config{
		Sources: []string{root, "-", filepath.Join(root, "a.txt"), other},
		Stdin:   []byte("stdin"),
	})

	resp, body := get(t, nethttp.MethodGet, "http://"+addr+"/")
	test.AssertEqual(t, 200, resp.StatusCode)
	for _, want := range []string{
		`href="/source1/" target="_top">` + root + `</a>`,
		`href="/-" target="_top">STDIN</a>`,
		`href="/source3" target="_top">`,
		`href="/source4/" target="_top">`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("source listing misses %s: %s", want, body)
		}
	}

	_, body = get(t, nethttp.MethodGet, "http://"+addr+"/-")
	test.AssertEqual(t, "stdin", body)

	_, body = get(t, nethttp.MethodGet, "http://"+addr+"/source1/b.txt")
	test.AssertEqual(t, "bee", body)

	_, body = get(t, nethttp.MethodGet, "http://"+addr+"/source3")
	test.AssertEqual(t, "ay", body)

	_, body = get(t, nethttp.MethodGet, "http://"+addr+"/source4/x.txt")
	test.AssertEqual(t, "ex", body)

	_, body = get(t, nethttp.MethodGet, "http://"+addr+"/source1/sub/")
	if !strings.Contains(body, `href="/source1/sub/page.html"`) {
		t.Errorf("nested listing should keep the source prefix: %s", body)
	}

	for _, target := range []string{"/source0/", "/source5/", "/source01/b.txt", "/source2", "/source2/b.txt", "/sourcex", "/b.txt", "/source1/../secret.txt"} {
		resp, _ := rawGet(t, addr, target)
		test.AssertEqual(t, 404, resp.StatusCode)
	}
}

func TestNewSiteMissingSource(t *testing.T) {
	_, err := NewSite(Config{Sources: []string{filepath.Join(t.TempDir(), "missing")}})
	if err == nil {
		t.Fatal("expected an error for a missing source")
	}
}

func TestSiteResolve(t *testing.T) {
	_, root := newTree(t)
	site, err := NewSite(Config{Sources: []string{root, "-"}})
	if err != nil {
		t.Fatal(err)
	}

	test.AssertEqual(t, "file", site.Resolve(0, "/a.txt").Kind.String())
	test.AssertEqual(t, "directory", site.Resolve(0, "/sub").Kind.String())
	test.AssertEqual(t, "not found", site.Resolve(0, "/../secret.txt").Kind.String())
	test.AssertEqual(t, "not found", site.Resolve(1, "/").Kind.String())
	test.AssertEqual(t, "not found", site.Resolve(7, "/").Kind.String())
}

func TestReadStdin(t *testing.T) {
	data, err := ReadStdin(strings.NewReader("hello"))
	test.AssertNoError(t, err)
	test.AssertEqual(t, "hello", string(data))

	_, err = ReadStdin(bytes.NewReader(make([]byte, MaxStdinSize+1)))
	test.AssertErrorIs(t, err, ErrStdinTooLarge)
}
