package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/germanamz/nestbridge/pkg/handles"
	"github.com/germanamz/nestbridge/pkg/sli"
	"github.com/germanamz/nestbridge/pkg/sli/remote"
	"github.com/germanamz/nestbridge/pkg/status"
	"github.com/germanamz/nestbridge/pkg/statustools"
	"github.com/germanamz/nestbridge/pkg/tools/mcpclient"
	"github.com/germanamz/nestbridge/pkg/tools/mcpserver"
	"github.com/germanamz/nestbridge/pkg/tools/toolbox"
)

const shutdownTimeout = 5 * time.Second

var errUsage = errors.New("invalid arguments")

func runGet(ctx context.Context, fs *flag.FlagSet, common *commonFlags, args []string) error {
	keys := fs.String("keys", "", "comma-separated status keys (default: all keys)")
	format := fs.String("format", formatTable, "output format: table or yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errUsage
	}

	h, err := handles.ParseList(fs.Arg(0))
	if err != nil {
		return err
	}

	eng, _, err := startEngine(ctx, common)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	return getStatus(ctx, eng.Session(), os.Stdout, h, parseKeysFlag(*keys), *format)
}

func getStatus(ctx context.Context, s *status.Session, w io.Writer, h handles.Sequence, k status.Keys, format string) error {
	reply, err := s.GetStatus(ctx, h, k)
	if err != nil {
		return err
	}
	return writeReply(w, reply, format)
}

// parseKeysFlag maps the --keys flag onto a key selection: empty selects all
// keys, a single name a scalar per handle and several names a tuple.
func parseKeysFlag(s string) status.Keys {
	var names []string
	for name := range strings.SplitSeq(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	switch len(names) {
	case 0:
		return status.AllKeys{}
	case 1:
		return status.OneKey{Name: names[0]}
	default:
		return status.KeyList(names)
	}
}

func runSet(ctx context.Context, fs *flag.FlagSet, common *commonFlags, args []string) error {
	diff := fs.Bool("diff", false, "print a diff of the status before and after the update")
	if err := fs.Parse(args); err != nil {
		return err
	}

	h, params, val, err := parseSetArgs(fs.Args())
	if errors.Is(err, errUsage) {
		fs.Usage()
	}
	if err != nil {
		return err
	}

	eng, _, err := startEngine(ctx, common)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	return setStatus(ctx, eng.Session(), os.Stdout, h, params, val, *diff)
}

// parseSetArgs accepts either "<handles> <params-yaml>" or
// "<handles> <name> <value-yaml>...". Several values become one value per
// handle.
func parseSetArgs(args []string) (handles.Sequence, any, any, error) {
	if len(args) < 2 {
		return nil, nil, nil, errUsage
	}

	h, err := handles.ParseList(args[0])
	if err != nil {
		return nil, nil, nil, err
	}

	if len(args) == 2 {
		params, err := parseYAMLValue(args[1])
		if err != nil {
			return nil, nil, nil, fmt.Errorf("params: %w", err)
		}
		return h, params, nil, nil
	}

	values := make([]any, 0, len(args)-2)
	for _, arg := range args[2:] {
		v, err := parseYAMLValue(arg)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("value %q: %w", arg, err)
		}
		values = append(values, v)
	}
	if len(values) == 1 {
		return h, args[1], values[0], nil
	}
	return h, args[1], values, nil
}

func parseYAMLValue(s string) (any, error) {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func setStatus(ctx context.Context, s *status.Session, w io.Writer, h handles.Sequence, params, val any, diff bool) error {
	if !diff {
		if err := s.SetStatusAny(ctx, h, params, val); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "updated %d %s(s)\n", h.Len(), h.Kind())
		return err
	}

	before, err := s.GetStatus(ctx, h, status.AllKeys{})
	if err != nil {
		return err
	}
	if err := s.SetStatusAny(ctx, h, params, val); err != nil {
		return err
	}
	after, err := s.GetStatus(ctx, h, status.AllKeys{})
	if err != nil {
		return err
	}

	out, err := statusDiff(before, after)
	if err != nil {
		return err
	}
	if out == "" {
		out = "no changes\n"
	}
	_, err = io.WriteString(w, out)
	return err
}

func runCall(ctx context.Context, fs *flag.FlagSet, common *commonFlags, args []string) error {
	list := fs.Bool("list", false, "list the available tools and exit")
	server := fs.String("mcp", "", "call the tools of an MCP server started with this command instead of the local engine")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*list && (fs.NArg() < 1 || fs.NArg() > 2) {
		fs.Usage()
		return errUsage
	}

	tb, closeTools, err := callTools(ctx, common, *server)
	if err != nil {
		return err
	}
	defer closeTools()

	if *list {
		return listTools(os.Stdout, tb)
	}
	return callTool(ctx, os.Stdout, tb, fs.Arg(0), fs.Arg(1))
}

// callTools returns the tools "call" works against: those of an external MCP
// server when command is set, otherwise the local engine's status tools.
func callTools(ctx context.Context, common *commonFlags, command string) (*toolbox.ToolBox, func(), error) {
	if argv := strings.Fields(command); len(argv) > 0 {
		if err := loadDotEnv(*common.env); err != nil {
			return nil, nil, err
		}
		client, err := mcpclient.Start(ctx, argv[0], argv[1:]...)
		if err != nil {
			return nil, nil, err
		}
		tb, err := client.ToolBox(ctx)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return tb, func() { _ = client.Close() }, nil
	}

	eng, _, err := startEngine(ctx, common)
	if err != nil {
		return nil, nil, err
	}
	tb := statustools.Tools(eng.Session())
	tb.Register(statustools.ExecTool(eng.Executor()))
	return tb, func() { _ = eng.Close() }, nil
}

func listTools(w io.Writer, tb *toolbox.ToolBox) error {
	for _, t := range tb.Tools() {
		if _, err := fmt.Fprintf(w, "%-12s %s\n", t.Name, t.Description); err != nil {
			return err
		}
	}
	return nil
}

func callTool(ctx context.Context, w io.Writer, tb *toolbox.ToolBox, name, args string) error {
	res := tb.Call(ctx, toolbox.Call{ID: name, Name: name, Arguments: json.RawMessage(args)})
	if res.IsError {
		return errors.New(res.Content)
	}
	_, err := fmt.Fprintln(w, res.Content)
	return err
}

func runServeMCP(ctx context.Context, fs *flag.FlagSet, common *commonFlags, args []string) error {
	allowExec := fs.Bool("allow-exec", false, "expose the raw sli_exec tool")
	if err := fs.Parse(args); err != nil {
		return err
	}

	eng, log, err := startEngine(ctx, common)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	srv := mcpserver.New("nestbridge", version, log)
	srv.RegisterBox(statustools.Tools(eng.Session()))
	if *allowExec {
		srv.Register(statustools.ExecTool(eng.Executor()))
	}

	log.Info("serving mcp on stdio", slog.Bool("exec", *allowExec))
	return srv.Serve(ctx, os.Stdin, os.Stdout)
}

func runServeWS(ctx context.Context, fs *flag.FlagSet, common *commonFlags, args []string) error {
	addr := fs.String("addr", ":8765", "listen address")
	path := fs.String("path", "/sli", "websocket endpoint path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	eng, log, err := startEngine(ctx, common)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	mux := http.NewServeMux()
	mux.Handle(*path, remote.NewServer(eng.Executor(), log))
	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving websocket", slog.String("addr", *addr), slog.String("path", *path))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runServeSLI(ctx context.Context, fs *flag.FlagSet, common *commonFlags, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}

	eng, log, err := startEngine(ctx, common)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	log.Info("serving line protocol on stdio")
	return sli.Serve(ctx, eng.Executor(), os.Stdin, os.Stdout)
}
