package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

const shellHelp = `
Commands:
  Devices:
    discover                                    - Browse the network for devices
    devices                                     - List remembered devices
    forget <host>                               - Forget a remembered device
    pair [pin]                                  - Pair using the PIN shown on screen

  API:
    versions <endpoint>                         - List API versions of an endpoint
    describe <endpoint> [version]               - List the methods of an endpoint
    describe-all                                - List the methods of every endpoint
    invoke <endpoint> <method> [version] [json] - Call a method
    ircc <code>                                 - Send a remote-control code

  General:
    status                                      - Show connection status
    help                                        - Show this help
    quit                                        - Exit`

// RunShell reads commands until quit, EOF or ctx is done.
func RunShell(ctx context.Context, app *App) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "bravia> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    shellCompleter(),
	})
	if err != nil {
		return fmt.Errorf("start shell: %w", err)
	}
	defer rl.Close()

	// Command output goes through readline so it does not mangle the prompt.
	out := rl.Stdout()
	app.out = out

	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	fmt.Fprintln(out, "Type 'help' for commands.")
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch strings.ToLower(fields[0]) {
		case "help", "?":
			fmt.Fprintln(out, shellHelp)
			continue
		case "quit", "exit", "q":
			fmt.Fprintln(out, "Exiting...")
			return nil
		}

		if err := app.Run(ctx, splitArgs(line)); err != nil {
			if errors.Is(err, errUnknownCommand) {
				fmt.Fprintf(out, "Unknown command: %s (type 'help' for commands)\n", fields[0])
				continue
			}
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
}

// splitArgs splits a line on spaces, keeping JSON objects and arrays and
// single-quoted strings in one argument.
func splitArgs(line string) []string {
	var (
		args    []string
		cur     strings.Builder
		depth   int
		inQuote bool
		inStr   bool
		escaped bool
	)
	flush := func() {
		if cur.Len() > 0 {
			args = append(args, cur.String())
			cur.Reset()
		}
	}
	for _, r := range line {
		switch {
		case inQuote:
			if r == '\'' {
				inQuote = false
				continue
			}
		case inStr:
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inStr = false
			}
		case r == '\'' && depth == 0:
			inQuote = true
			continue
		case r == '"' && depth > 0:
			inStr = true
		case r == '{' || r == '[':
			depth++
		case (r == '}' || r == ']') && depth > 0:
			depth--
		case (r == ' ' || r == '\t') && depth == 0:
			flush()
			continue
		}
		cur.WriteRune(r)
	}
	flush()
	return args
}

func shellCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("discover"),
		readline.PcItem("devices"),
		readline.PcItem("forget"),
		readline.PcItem("pair"),
		readline.PcItem("versions"),
		readline.PcItem("describe"),
		readline.PcItem("describe-all"),
		readline.PcItem("invoke"),
		readline.PcItem("ircc"),
		readline.PcItem("status"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}
