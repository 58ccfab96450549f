package main

import "flag"

// LedgerCommands handles ledger history and verification commands
type LedgerCommands struct {
	cli *CLI
}

// NewLedgerCommands creates a new ledger commands handler
func NewLedgerCommands(cli *CLI) *LedgerCommands {
	return &LedgerCommands{cli: cli}
}

// Handle routes ledger subcommands
func (l *LedgerCommands) Handle(args []string) {
	if len(args) == 0 {
		l.cli.Errorln("Ledger subcommand required")
		l.cli.Errorln("Usage: auditctl ledger <show|verify> <asset-id> [options]")
		l.cli.Exit(1)
		return
	}

	switch args[0] {
	case "show":
		l.Show(args[1:])
	case "verify":
		l.Verify(args[1:])
	default:
		l.cli.Errorf("Unknown ledger subcommand: %s\n", args[0])
		l.cli.Errorln("Available: show, verify")
		l.cli.Exit(1)
	}
}

func (l *LedgerCommands) parse(args []string, name, usage string) (*GlobalConfig, string, bool) {
	config, remaining, err := l.cli.ParseGlobalFlags(args, name)
	if err == flag.ErrHelp {
		l.cli.Println(usage)
		return nil, "", false
	}
	if l.cli.HandleError(err, "parsing flags") {
		return nil, "", false
	}
	if !l.cli.ValidateExactArgs(remaining, 1, usage) {
		return nil, "", false
	}
	return config, remaining[0], true
}

// Show prints the chain of one asset
func (l *LedgerCommands) Show(args []string) {
	config, assetID, ok := l.parse(args, "show", "Usage: auditctl ledger show <asset-id>")
	if !ok {
		return
	}

	entries, err := l.cli.CreateClient(config).LedgerEntries(assetID)
	if l.cli.HandleError(err, "reading ledger") {
		return
	}
	if config.JSON {
		l.cli.PrintJSON(entries)
		return
	}
	if len(entries) == 0 {
		l.cli.Printf("No ledger entries for %s\n", assetID)
		return
	}

	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		result, _ := e.Payload["result"].(string)
		hash := e.RecordHash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		rows = append(rows, []any{e.Seq, e.Action, e.ActorID, result, hash})
	}
	l.cli.PrintTable("SEQ\tACTION\tACTOR\tRESULT\tHASH", rows)
}

// Verify replays the chain of one asset. A broken chain exits non-zero.
func (l *LedgerCommands) Verify(args []string) {
	config, assetID, ok := l.parse(args, "verify", "Usage: auditctl ledger verify <asset-id>")
	if !ok {
		return
	}

	result, err := l.cli.CreateClient(config).VerifyLedger(assetID)
	if l.cli.HandleError(err, "verifying ledger") {
		return
	}
	if config.JSON {
		l.cli.PrintJSON(result)
	}

	if !result.Valid {
		l.cli.ExitError("Chain of %s is BROKEN at entry %s: %s\n", assetID, result.FirstInvalidEntryID, result.Reason)
		return
	}
	if !config.JSON {
		l.cli.Printf("Chain of %s is valid (%d entries)\n", assetID, result.Entries)
	}
}
