package participant

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"go.uber.org/zap"
)

// CLI is the interactive command loop (spec §6.4): register/deregister/
// disconnect/reconnect/msend/exit, line-oriented, one command per line.
// It wraps a readline.Instance the way the pack's interactive CLIs do,
// rather than reading raw lines off stdin.
type CLI struct {
	rl          *readline.Instance
	participant *Participant
	logger      *zap.Logger
}

// NewCLI builds a CLI bound to participant, with readline's in-memory
// history and a prompt showing the participant ID.
func NewCLI(participant *Participant, logger *zap.Logger) (*CLI, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          fmt.Sprintf("%s> ", participant.id),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("cli: init readline: %w", err)
	}

	return &CLI{rl: rl, participant: participant, logger: logger.Named("cli")}, nil
}

// Close releases the underlying readline instance.
func (c *CLI) Close() error {
	return c.rl.Close()
}

// Run reads and dispatches commands until "exit", EOF, or interrupt.
// Invalid ports or missing arguments print a message and leave state
// unchanged (spec §6.4).
func (c *CLI) Run() {
	for {
		line, err := c.rl.Readline()
		if err != nil { // io.EOF or readline.ErrInterrupt
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if c.dispatch(line) {
			break
		}
	}

	c.participant.Exit()
}

// dispatch executes one command line and reports whether the loop should
// stop (true only for "exit").
func (c *CLI) dispatch(line string) bool {
	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "register":
		c.register(args)
	case "deregister":
		c.runAndReport(c.participant.Deregister())
	case "disconnect":
		c.runAndReport(c.participant.Disconnect())
	case "reconnect":
		c.reconnect(args)
	case "msend":
		c.msend(line)
	case "exit":
		return true
	default:
		fmt.Fprintf(c.out(), "unknown command: %s\n", cmd)
	}
	return false
}

func (c *CLI) register(args []string) {
	port, err := parsePort(args)
	if err != nil {
		fmt.Fprintln(c.out(), err)
		return
	}
	c.runAndReport(c.participant.Register(port))
}

func (c *CLI) reconnect(args []string) {
	port, err := parsePort(args)
	if err != nil {
		fmt.Fprintln(c.out(), err)
		return
	}
	c.runAndReport(c.participant.Reconnect(port))
}

func (c *CLI) msend(line string) {
	parts := strings.SplitN(line, " ", 2)
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		fmt.Fprintln(c.out(), "msend requires a message")
		return
	}
	c.runAndReport(c.participant.Msend(parts[1]))
}

func (c *CLI) runAndReport(err error) {
	if err != nil {
		fmt.Fprintln(c.out(), err)
	}
}

func parsePort(args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected exactly one port argument")
	}
	port, err := strconv.Atoi(args[0])
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port: %q", args[0])
	}
	return port, nil
}

func (c *CLI) out() io.Writer {
	return c.rl.Stdout()
}
