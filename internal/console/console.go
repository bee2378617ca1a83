// Package console is the interactive shell of a running server: inspect and
// change registry values, trigger updates and, with the loopback transport,
// act as a connected peer.
package console

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/sirupsen/logrus"

	"github.com/srg/gattsrv/internal/gatt"
	"github.com/srg/gattsrv/internal/groutine"
	"github.com/srg/gattsrv/internal/inspect"
	"github.com/srg/gattsrv/internal/registry"
	"github.com/srg/gattsrv/internal/server"
	"github.com/srg/gattsrv/internal/transport/loopback"
)

// ErrQuit is returned by Execute for the quit command.
var ErrQuit = errors.New("quit")

// Server is the part of server.Server the console drives.
type Server interface {
	Tree() *gatt.Tree
	NotifyUpdatedPath(path string)
	RunState() server.RunState
	Health() server.Health
	Tick() uint64
}

// Console executes shell commands against a server and its data store.
type Console struct {
	srv    Server
	store  *registry.Store
	peer   *loopback.Peer // nil unless the loopback transport is in use
	out    io.Writer
	logger *logrus.Logger
	colors bool
}

// New creates a console writing to out. peer may be nil.
func New(srv Server, store *registry.Store, peer *loopback.Peer, out io.Writer, logger *logrus.Logger) *Console {
	if logger == nil {
		logger = logrus.New()
	}
	return &Console{srv: srv, store: store, peer: peer, out: out, logger: logger}
}

func (c *Console) commands() []string {
	cmds := []string{"get", "set", "names", "notify", "state", "tree", "help", "quit"}
	if c.peer != nil {
		cmds = append(cmds, "read", "write", "subscribe", "unsubscribe")
	}
	return cmds
}

// Run reads commands with readline until quit, EOF or ctx ends. Log output
// is routed through readline so it does not garble the prompt.
func (c *Console) Run(ctx context.Context, in io.ReadCloser) error {
	var items []readline.PrefixCompleterInterface
	for _, cmd := range c.commands() {
		items = append(items, readline.PcItem(cmd))
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "gattsrv> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		AutoComplete:    readline.NewPrefixCompleter(items...),
		Stdin:           in,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	c.out = rl.Stdout()
	c.logger.SetOutput(rl.Stderr())
	c.colors = true

	go func() {
		<-ctx.Done()
		_ = rl.Close()
	}()

	c.printHelp()
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			return nil
		}
		if err := c.Execute(ctx, line); err != nil {
			if errors.Is(err, ErrQuit) {
				return nil
			}
			fmt.Fprintf(c.out, "error: %s\n", err)
		}
	}
}

// Execute runs one command line.
func (c *Console) Execute(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()
		return nil
	case "quit", "exit", "q":
		return ErrQuit
	case "get":
		return c.cmdGet(args)
	case "set":
		return c.cmdSet(args)
	case "names":
		return c.cmdNames()
	case "notify":
		return c.cmdNotify(args)
	case "state":
		fmt.Fprintf(c.out, "state=%s health=%s tick=%d\n", c.srv.RunState(), c.srv.Health(), c.srv.Tick())
		if c.peer != nil {
			for _, q := range c.peer.Subscriptions() {
				fmt.Fprintf(c.out, "  %s queued=%d pushed=%d evicted=%d\n", q.Path, q.Queued, q.Pushed, q.Evicted)
			}
		}
		return nil
	case "tree":
		return inspect.Text(c.out, c.srv.Tree(), inspect.Options{Colors: c.colors, Handlers: true})
	}

	if c.peer == nil {
		return fmt.Errorf("unknown command %q (type 'help' for commands)", cmd)
	}
	switch cmd {
	case "read":
		return c.cmdRead(args)
	case "write":
		return c.cmdWrite(args)
	case "subscribe", "sub":
		return c.cmdSubscribe(ctx, args)
	case "unsubscribe", "unsub":
		if len(args) != 1 {
			return errors.New("usage: unsubscribe <path>")
		}
		return c.peer.Unsubscribe(args[0])
	}
	return fmt.Errorf("unknown command %q (type 'help' for commands)", cmd)
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `Commands:
  get <name>            - Show a registry value
  set <name> <value>    - Change a registry value (integers, text, or 0x-prefixed hex for bytes)
  names                 - List registry names
  notify <path>         - Run the update handler of a characteristic
  state                 - Show run state, health, tick and subscription queues
  tree                  - Show the served hierarchy
  help                  - Show this help
  quit                  - Stop the server`)
	if c.peer != nil {
		fmt.Fprintln(c.out, `  read <path>           - Read an attribute as the loopback peer
  write <path> <value>  - Write text, or 0x-prefixed hex, as the loopback peer
  subscribe <path>      - Print notifications of a characteristic
  unsubscribe <path>    - Stop printing notifications`)
	}
}

func (c *Console) cmdGet(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: get <name>")
	}
	v, ok := c.store.Get(args[0])
	if !ok {
		return fmt.Errorf("unknown name %q", args[0])
	}
	fmt.Fprintf(c.out, "%s = %s\n", args[0], v)
	return nil
}

func (c *Console) cmdSet(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: set <name> <value>")
	}
	name, raw := args[0], strings.Join(args[1:], " ")
	current, ok := c.store.Get(name)
	if !ok {
		return fmt.Errorf("unknown name %q", name)
	}
	v, err := parseLike(current, raw)
	if err != nil {
		return err
	}
	if !c.store.Set(name, v) {
		return fmt.Errorf("%s rejected %s", name, v)
	}
	fmt.Fprintf(c.out, "%s = %s\n", name, v)
	return nil
}

func (c *Console) cmdNames() error {
	names := c.store.Names()
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintln(c.out, n)
	}
	return nil
}

func (c *Console) cmdNotify(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: notify <path>")
	}
	n, ok := c.srv.Tree().Lookup(args[0])
	if !ok {
		return fmt.Errorf("unknown path %q", args[0])
	}
	if !n.HasUpdate() {
		return fmt.Errorf("%s has no update handler", n.Path())
	}
	c.srv.NotifyUpdatedPath(n.Path())
	return nil
}

func (c *Console) cmdRead(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: read <path>")
	}
	data, err := c.peer.Read(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s: %s\n", args[0], formatBytes(data))
	return nil
}

func (c *Console) cmdWrite(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: write <path> <value>")
	}
	data, err := parseBytes(strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	return c.peer.Write(args[0], data)
}

func (c *Console) cmdSubscribe(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: subscribe <path>")
	}
	path := args[0]
	ch, err := c.peer.Subscribe(path)
	if err != nil {
		return err
	}
	out := c.out
	groutine.Go(ctx, "console-subscribe", func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-ch:
				if !ok {
					return
				}
				fmt.Fprintf(out, "%s <- %s\n", path, formatBytes(v))
			}
		}
	})
	return nil
}

// parseLike parses raw into a value of the same kind as like.
func parseLike(like registry.Value, raw string) (registry.Value, error) {
	switch like.Kind() {
	case registry.KindInt:
		n, err := strconv.ParseInt(raw, 0, 64)
		if err != nil {
			return registry.Value{}, fmt.Errorf("invalid integer %q", raw)
		}
		return registry.Int(n, like.Size()), nil
	case registry.KindBytes:
		b, err := parseBytes(raw)
		if err != nil {
			return registry.Value{}, err
		}
		return registry.Bytes(b), nil
	default:
		return registry.String(raw), nil
	}
}

// parseBytes decodes "0x"-prefixed hex, anything else is taken as text.
func parseBytes(raw string) ([]byte, error) {
	s, ok := strings.CutPrefix(raw, "0x")
	if !ok {
		return []byte(raw), nil
	}
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q", raw)
	}
	return b, nil
}

// formatBytes shows printable values as text next to their hex form.
func formatBytes(b []byte) string {
	h := hex.EncodeToString(b)
	if len(b) == 0 {
		return "(empty)"
	}
	for _, r := range string(b) {
		if r < 0x20 || r > 0x7e {
			return h
		}
	}
	return fmt.Sprintf("%s %q", h, string(b))
}
