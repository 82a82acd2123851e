package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/netip"
	"strconv"
	"strings"

	"github.com/freekieb7/httpsrvdev/http"
)

var (
	ErrDuplicateOption = errors.New("cli: duplicate option")
	ErrSourcesNotLast  = errors.New("cli: sources must come after all options and flags")
	ErrInvalidAddress  = errors.New("cli: invalid IPv4 address")
	ErrInvalidPort     = errors.New("cli: invalid port")
)

const (
	HelpTextIP           = "Set the server's IPv4 address."
	HelpTextPort         = "Set the server's port."
	HelpTextHelp         = "Display this usage message."
	HelpTextStdinType    = "Set the MIME type standard input is served as (if \"-\" is a source)."
	HelpTextDefaultType  = "Set the MIME type for files without a known extension. Unset, such files are an error."
	HelpTextOverrideOpts = "Let the last duplicate of an option win instead of failing, and allow options after the sources."
	HelpTextVerbose      = "Log debug output."
	HelpTextMetricsAddr  = "Serve Prometheus metrics on this address, e.g. 127.0.0.1:9090."
	HelpTextOtel         = "Export traces, metrics and logs over OTLP/gRPC (configured by OTEL_* variables)."
)

type Options struct {
	Address     string
	Port        int
	Sources     []string
	StdinType   string
	DefaultType string
	Override    bool
	Verbose     bool
	MetricsAddr string
	Otel        bool
	Help        bool
}

func defaults() Options {
	return Options{
		Address:   http.DefaultAddress,
		Port:      http.DefaultPort,
		StdinType: "text/plain",
	}
}

func isArg(arg string, names ...string) bool {
	for _, name := range names {
		if arg == "-"+name || arg == "--"+name {
			return true
		}
	}
	return false
}

// Parse reads the command line after the program name. Sources come last
// unless --override-opts is given anywhere, which also lets the last
// duplicate of an option win.
func Parse(name string, args []string) (Options, error) {
	opts := defaults()

	for _, arg := range args {
		if arg == "--" {
			break
		}
		if isArg(arg, "h", "help") {
			opts.Help = true
			return opts, nil
		}
		if isArg(arg, "override-opts") {
			opts.Override = true
		}
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	// flag flattens setter errors into strings, so keep the setter's error
	var setErr error
	seen := make(map[string]bool)
	once := func(option string, set func(string) error) func(string) error {
		return func(value string) error {
			if seen[option] && !opts.Override {
				setErr = fmt.Errorf("%w: %s", ErrDuplicateOption, option)
				return setErr
			}
			seen[option] = true
			if err := set(value); err != nil {
				setErr = err
				return err
			}
			return nil
		}
	}

	setIP := once("--ip", func(value string) error {
		addr, err := netip.ParseAddr(value)
		if err != nil || !addr.Is4() {
			return fmt.Errorf("%w: %q", ErrInvalidAddress, value)
		}
		opts.Address = addr.String()
		return nil
	})
	setPort := once("-p/--port", func(value string) error {
		port, err := strconv.ParseUint(value, 10, 16)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidPort, value)
		}
		opts.Port = int(port)
		return nil
	})

	fs.Func("ip", HelpTextIP, setIP)
	fs.Func("p", HelpTextPort, setPort)
	fs.Func("port", HelpTextPort, setPort)
	fs.Func("stdin-type", HelpTextStdinType, once("--stdin-type", func(value string) error {
		opts.StdinType = value
		return nil
	}))
	fs.Func("default-type", HelpTextDefaultType, once("--default-type", func(value string) error {
		opts.DefaultType = value
		return nil
	}))
	fs.Func("metrics-addr", HelpTextMetricsAddr, once("--metrics-addr", func(value string) error {
		opts.MetricsAddr = value
		return nil
	}))
	fs.BoolFunc("override-opts", HelpTextOverrideOpts, func(string) error { return nil })
	fs.BoolFunc("v", HelpTextVerbose, once("-v", func(string) error {
		opts.Verbose = true
		return nil
	}))
	fs.BoolFunc("otel", HelpTextOtel, once("--otel", func(string) error {
		opts.Otel = true
		return nil
	}))

	for {
		if err := fs.Parse(args); err != nil {
			if setErr != nil {
				return opts, setErr
			}
			return opts, err
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}

		if !opts.Override {
			for i := 1; i < len(args); i++ {
				if args[i] != "-" && strings.HasPrefix(args[i], "-") {
					return opts, fmt.Errorf("%w: %q comes before %q", ErrSourcesNotLast, args[i-1], args[i])
				}
			}
			opts.Sources = append(opts.Sources, args...)
			break
		}

		// Options may follow sources: take one source and keep parsing
		opts.Sources = append(opts.Sources, args[0])
		args = args[1:]
	}

	return opts, nil
}

// Usage is the help text printed for -h/--help.
func Usage(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [OPTIONS/FLAGS] [SRC1 SRC2 ...]\n", name)
	b.WriteString(`
Serve files and directories via HTTP.
For non-deployment (a.k.a. non-production) software development.

[SRC1 SRC2 ...] ...... A list of 0 or more sources. A source is
                       a) the path to a file or a directory, or
                       b) "-", standard input.
                       With 0 sources the working directory is served.
                       With 1 source only that source is served.
                       With several sources "/" lists them, "/sourceN/"
                       serves the N-th source and "/-" standard input.
                       Directories serve their index.html or index.htm
                       if present, a listing otherwise.
[OPTIONS/FLAGS]
`)
	rows := [][2]string{
		{"--ip ADDRESS", HelpTextIP + ` Default "` + http.DefaultAddress + `".`},
		{"-p/--port PORT", HelpTextPort + ` Default "` + strconv.Itoa(http.DefaultPort) + `".`},
		{"-h/--help", HelpTextHelp},
		{"--stdin-type MIME", HelpTextStdinType + ` Default "text/plain".`},
		{"--default-type MIME", HelpTextDefaultType},
		{"--override-opts", HelpTextOverrideOpts},
		{"-v", HelpTextVerbose},
		{"--metrics-addr ADDR", HelpTextMetricsAddr},
		{"--otel", HelpTextOtel},
	}
	for _, row := range rows {
		fmt.Fprintf(&b, "%-21s %s\n", row[0], row[1])
	}
	return b.String()
}
