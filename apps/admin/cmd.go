package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/circulation"
)

var (
	isTerminalFunc = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) } // mockable

	errHelp    = errors.New("help provided")
	errAborted = errors.New("aborted")
)

type commandLine struct {
	db             *sql.DB
	circulationSvc *circulation.Service
	mailSvc        core.EmailService
	in             io.Reader
	out            io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, up-by-one, up-to, down, down-to, redo, reset, status, version, create, fix)")
	fmt.Fprintln(cli.out, "  marklost -loan ID [-yes] - mark an issued book as lost")
	fmt.Fprintln(cli.out, "  remindoverdue [-dry] - email members about their overdue books")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	markLostCmd := flag.NewFlagSet("marklost", flag.ContinueOnError)
	markLostCmd.SetOutput(cli.out)
	markLostLoan := markLostCmd.String("loan", "", "The ID of the circulation record.")
	markLostYes := markLostCmd.Bool("yes", false, "Do not ask for confirmation.")

	remindCmd := flag.NewFlagSet("remindoverdue", flag.ContinueOnError)
	remindCmd.SetOutput(cli.out)
	remindDry := remindCmd.Bool("dry", false, "Print the reminders instead of sending them.")

	ctx := context.Background()

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "marklost":
		if err := markLostCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *markLostLoan == "" {
			markLostCmd.Usage()
			return errHelp
		}
		if !*markLostYes {
			ok, err := cli.confirm(fmt.Sprintf("Mark circulation record %s as lost?", *markLostLoan))
			if err != nil {
				return err
			}
			if !ok {
				return errAborted
			}
		}
		return cli.markLost(ctx, *markLostLoan)
	case "remindoverdue":
		if err := remindCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.remindOverdue(ctx, *remindDry)
	default:
		cli.printUsage()
		return errHelp
	}
}

// confirm asks a yes/no question when stdin is a terminal; it always agrees otherwise.
func (cli *commandLine) confirm(question string) (bool, error) {
	if !isTerminalFunc() {
		return true, nil
	}
	fmt.Fprintf(cli.out, "%s [y/N]: ", question)
	answer, err := bufio.NewReader(cli.in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}
