// Package console is a line-oriented operator shell over the bus. Lines are
// split shell-style and mapped onto HAL controls and time-source requests.
package console

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"

	"rtcsync-go/bus"
	"rtcsync-go/errcode"
	"rtcsync-go/types"
)

const domain = "time"

// requestTimeout bounds each bus request.
var requestTimeout = 2 * time.Second

var errUsage = errors.New("usage")

type command struct {
	args  string
	help  string
	run   func(ctx context.Context, c *Console, argv []string) (any, error)
	nargs int
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"read":  {args: "<name>", help: "read the RTC into the host clock", nargs: 1, run: cmdControl("read_time")},
		"write": {args: "<name>", help: "write the host clock to the RTC", nargs: 1, run: cmdControl("write_time")},
		"value": {args: "<name>", help: "show the last value read", nargs: 1, run: cmdValue},
		"poll":  {args: "<name> <ms>|stop", help: "start or stop periodic reads", nargs: 2, run: cmdPoll},
		"time":  {help: "show the time-source state", run: cmdTime},
		"set":   {args: "<rfc3339>", help: "set the host clock manually", nargs: 1, run: cmdSet},
		"help":  {help: "list commands", run: cmdHelp},
	}
}

// Console reads commands from in and writes one result line per command to out.
type Console struct {
	conn *bus.Connection
	in   io.Reader
	out  io.Writer
}

func New(conn *bus.Connection, in io.Reader, out io.Writer) *Console {
	return &Console{conn: conn, in: in, out: out}
}

// Run serves commands until ctx is cancelled or in reaches EOF.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errCh <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case line := <-lines:
			if out := c.Exec(ctx, line); out != "" {
				fmt.Fprintln(c.out, out)
			}
		}
	}
}

// Exec runs one command line and returns its rendered result.
func (c *Console) Exec(ctx context.Context, line string) string {
	argv, err := shlex.Split(line)
	if err != nil {
		return "error: " + err.Error()
	}
	if len(argv) == 0 {
		return ""
	}
	cmd, ok := commands[argv[0]]
	if !ok {
		return "error: unknown command " + strconv.Quote(argv[0]) + " (try help)"
	}
	if len(argv)-1 != cmd.nargs {
		return "usage: " + strings.TrimSpace(argv[0]+" "+cmd.args)
	}
	res, err := cmd.run(ctx, c, argv[1:])
	switch {
	case errors.Is(err, errUsage):
		return "usage: " + strings.TrimSpace(argv[0]+" "+cmd.args)
	case err != nil:
		return "error: " + err.Error()
	}
	return render(res)
}

func render(v any) string {
	switch r := v.(type) {
	case string:
		return r
	case types.OKReply:
		return "ok"
	case types.ErrorReply:
		return "error: " + r.Error
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "error: " + err.Error()
	}
	return string(b)
}

func (c *Console) request(ctx context.Context, topic bus.Topic, payload any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	rep, err := c.conn.RequestWait(ctx, c.conn.NewMessage(topic, payload, false))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errcode.Timeout
		}
		return nil, err
	}
	return rep.Payload, nil
}

func controlTopic(name, verb string) bus.Topic {
	return bus.T("hal", "cap", domain, string(types.KindRTC), name, "control", verb)
}

func cmdControl(verb string) func(context.Context, *Console, []string) (any, error) {
	return func(ctx context.Context, c *Console, argv []string) (any, error) {
		return c.request(ctx, controlTopic(argv[0], verb), nil)
	}
}

// cmdValue returns the retained value without waiting for a new read.
func cmdValue(_ context.Context, c *Console, argv []string) (any, error) {
	sub := c.conn.Subscribe(bus.T("hal", "cap", domain, string(types.KindRTC), argv[0], "value"))
	defer c.conn.Unsubscribe(sub)
	select {
	case m := <-sub.Channel():
		return m.Payload, nil
	default:
		return "no value for " + argv[0], nil
	}
}

func cmdPoll(ctx context.Context, c *Console, argv []string) (any, error) {
	name := argv[0]
	if argv[1] == "stop" {
		return c.request(ctx, controlTopic(name, "poll_stop"), types.PollStop{Verb: "read_time"})
	}
	ms, err := strconv.ParseUint(argv[1], 10, 32)
	if err != nil || ms == 0 {
		return nil, errUsage
	}
	return c.request(ctx, controlTopic(name, "poll_start"), types.PollStart{Verb: "read_time", IntervalMs: uint32(ms)})
}

func cmdTime(ctx context.Context, c *Console, _ []string) (any, error) {
	return c.request(ctx, bus.T("time", "get"), nil)
}

func cmdSet(ctx context.Context, c *Console, argv []string) (any, error) {
	if _, err := time.Parse(time.RFC3339, argv[0]); err != nil {
		return nil, errUsage
	}
	return c.request(ctx, bus.T("time", "set"), argv[0])
}

func cmdHelp(context.Context, *Console, []string) (any, error) {
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	var b strings.Builder
	for i, n := range names {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%-6s %-18s %s", n, commands[n].args, commands[n].help)
	}
	return b.String(), nil
}
