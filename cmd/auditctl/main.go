package main

import (
	"fmt"
	"io"
	"os"
)

var version = "dev"

func main() {
	NewCLI().Run(os.Args[1:])
}

// Run dispatches a command line
func (cli *CLI) Run(args []string) {
	if len(args) < 1 {
		cli.printUsage(cli.Error)
		cli.Exit(1)
		return
	}

	command := args[0]
	rest := args[1:]

	switch command {
	case "audit":
		NewAuditCommands(cli).Handle(rest)
	case "collect":
		NewAuditCommands(cli).Collect(rest)
	case "ledger":
		NewLedgerCommands(cli).Handle(rest)
	case "backup":
		NewBackupCommands(cli).Handle(rest)
	case "version":
		cli.Printf("auditctl version %s\n", version)
	case "help", "-h", "--help":
		cli.printUsage(cli.Output)
	default:
		cli.Errorf("Unknown command: %s\n", command)
		cli.printUsage(cli.Error)
		cli.Exit(1)
	}
}

func (cli *CLI) printUsage(w io.Writer) {
	fmt.Fprintln(w, "auditctl - auditledger CLI Tool")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: auditctl <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  audit list [--status S]        List audits")
	fmt.Fprintln(w, "  audit get <id>                 Show an audit")
	fmt.Fprintln(w, "  audit start <id>               Start collection")
	fmt.Fprintln(w, "  audit reconcile <id>           Close collection and summarize")
	fmt.Fprintln(w, "  audit report <id>              Show the reconciliation report")
	fmt.Fprintln(w, "  audit finalize [--notes] <id>  Finalize the audit")
	fmt.Fprintln(w, "  audit cancel <id>              Cancel the audit")
	fmt.Fprintln(w, "  collect <id> <file|->          Submit a JSON array of readings")
	fmt.Fprintln(w, "  ledger show <asset-id>         Show the ledger chain of an asset")
	fmt.Fprintln(w, "  ledger verify <asset-id>       Verify the ledger chain of an asset")
	fmt.Fprintln(w, "  backup create                  Snapshot the server's store")
	fmt.Fprintln(w, "  version                        Show version")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global Options:")
	fmt.Fprintln(w, "  --server <url>   Server URL (default: http://localhost:8890, env AUDITCTL_SERVER)")
	fmt.Fprintln(w, "  --actor <id>     Actor id sent as X-Actor-ID (env AUDITCTL_ACTOR)")
	fmt.Fprintln(w, "  --token <jwt>    Bearer token (env AUDITCTL_TOKEN)")
	fmt.Fprintln(w, "  --json           Print raw JSON")
}
