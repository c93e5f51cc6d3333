package cli

import (
	"context"
	"fmt"
	"strings"
)

// execIface is the command surface the REPL dispatches to.
type execIface interface {
	Register(ctx context.Context) error
	Passwd(ctx context.Context) error
	List(ctx context.Context) error
	Show(ctx context.Context) error
}

// Run reads commands until EOF or "exit". Command errors are reported by the
// commands themselves and never stop the loop.
func (a *App) Run(ctx context.Context) {
	fmt.Fprintln(a.out, "MediSoft operator console (type 'help' for commands)")
	runREPL(ctx, a, a)
}

func runREPL(ctx context.Context, e execIface, a *App) {
	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprint(a.out, "medisoft> ")
		line, err := readLine(a.in)
		if err != nil {
			fmt.Fprintln(a.out)
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		switch cmd := parts[0]; cmd {
		case "help":
			fmt.Fprintln(a.out, "Available commands: register, passwd, (l)ist, show, exit")
		case "register":
			_ = e.Register(ctx)
		case "passwd":
			_ = e.Passwd(ctx)
		case "l", "list":
			_ = e.List(ctx)
		case "show":
			_ = e.Show(ctx)
		case "exit", "quit":
			fmt.Fprintln(a.out, "Bye!")
			return
		default:
			fmt.Fprintln(a.out, "Unknown command:", cmd)
		}
	}
}
