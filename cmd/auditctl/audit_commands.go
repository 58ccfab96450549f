package main

import (
	"encoding/json"
	"flag"
	"io"
	"os"
)

// AuditCommands handles audit lifecycle and collection commands
type AuditCommands struct {
	cli *CLI
}

// NewAuditCommands creates a new audit commands handler
func NewAuditCommands(cli *CLI) *AuditCommands {
	return &AuditCommands{cli: cli}
}

// Handle routes audit subcommands
func (a *AuditCommands) Handle(args []string) {
	if len(args) == 0 {
		a.cli.Errorln("Audit subcommand required")
		a.cli.Errorln("Usage: auditctl audit <list|get|start|reconcile|report|finalize|cancel> [options]")
		a.cli.Exit(1)
		return
	}

	subcommand := args[0]
	subArgs := args[1:]

	switch subcommand {
	case "list":
		a.List(subArgs)
	case "get":
		a.Get(subArgs)
	case "start", "cancel":
		a.transition(subcommand, subArgs)
	case "reconcile":
		a.Reconcile(subArgs)
	case "report":
		a.Report(subArgs)
	case "finalize":
		a.Finalize(subArgs)
	default:
		a.cli.Errorf("Unknown audit subcommand: %s\n", subcommand)
		a.cli.Errorln("Available: list, get, start, reconcile, report, finalize, cancel")
		a.cli.Exit(1)
	}
}

// List prints audits, optionally filtered by status
func (a *AuditCommands) List(args []string) {
	var status string
	config, remaining, err := a.cli.ParseGlobalFlags(args, "list", func(fs *flag.FlagSet) {
		fs.StringVar(&status, "status", "", "Filter by status")
	})
	if err == flag.ErrHelp {
		a.cli.Println("Usage: auditctl audit list [--status STATUS] [options]")
		return
	}
	if a.cli.HandleError(err, "parsing flags") {
		return
	}
	if !a.cli.ValidateExactArgs(remaining, 0, "Usage: auditctl audit list [--status STATUS] [options]") {
		return
	}

	audits, err := a.cli.CreateClient(config).ListAudits(status)
	if a.cli.HandleError(err, "listing audits") {
		return
	}

	if config.JSON {
		a.cli.PrintJSON(audits)
		return
	}
	if len(audits) == 0 {
		a.cli.Println("No audits found")
		return
	}

	rows := make([][]any, 0, len(audits))
	for _, audit := range audits {
		rows = append(rows, []any{audit.ID, audit.Code, audit.Type, audit.Status, audit.TotalItems, audit.ConformancePct})
	}
	a.cli.PrintTable("ID\tCODE\tTYPE\tSTATUS\tITEMS\tCONFORMANCE", rows)
}

// Get prints one audit
func (a *AuditCommands) Get(args []string) {
	config, remaining, ok := a.parse(args, "get", "Usage: auditctl audit get <audit-id>")
	if !ok {
		return
	}

	audit, err := a.cli.CreateClient(config).GetAudit(remaining[0])
	if a.cli.HandleError(err, "getting audit") {
		return
	}
	a.cli.PrintJSON(audit)
}

func (a *AuditCommands) transition(action string, args []string) {
	config, remaining, ok := a.parse(args, action, "Usage: auditctl audit "+action+" <audit-id>")
	if !ok {
		return
	}

	audit, err := a.cli.CreateClient(config).Transition(remaining[0], action, nil)
	if a.cli.HandleError(err, action+" audit") {
		return
	}
	a.cli.Printf("Audit %s is now %s\n", audit.Code, audit.Status)
}

// Reconcile closes collection and prints the summary
func (a *AuditCommands) Reconcile(args []string) {
	config, remaining, ok := a.parse(args, "reconcile", "Usage: auditctl audit reconcile <audit-id>")
	if !ok {
		return
	}

	summary, err := a.cli.CreateClient(config).Reconcile(remaining[0])
	if a.cli.HandleError(err, "reconciling audit") {
		return
	}
	if config.JSON {
		a.cli.PrintJSON(summary)
		return
	}
	a.cli.Printf("Expected: %d  Collected: %d  Pending: %d\n", summary.TotalItems, summary.Collected, summary.Pending)
	a.cli.Printf("Conformant: %d  Divergent: %d  Not found: %d  Extra: %d\n",
		summary.Conformant, summary.Divergent, summary.NotFound, summary.Extra)
	a.cli.Printf("Conformance: %.1f%%\n", summary.ConformancePct)
}

// Report prints the reconciliation report
func (a *AuditCommands) Report(args []string) {
	config, remaining, ok := a.parse(args, "report", "Usage: auditctl audit report <audit-id>")
	if !ok {
		return
	}

	report, err := a.cli.CreateClient(config).Report(remaining[0])
	if a.cli.HandleError(err, "getting report") {
		return
	}
	a.cli.PrintJSON(report)
}

// Finalize closes the audit
func (a *AuditCommands) Finalize(args []string) {
	var notes string
	usage := "Usage: auditctl audit finalize [--notes TEXT] [options] <audit-id>"
	config, remaining, err := a.cli.ParseGlobalFlags(args, "finalize", func(fs *flag.FlagSet) {
		fs.StringVar(&notes, "notes", "", "Final notes")
	})
	if err == flag.ErrHelp {
		a.cli.Println(usage)
		return
	}
	if a.cli.HandleError(err, "parsing flags") {
		return
	}
	if !a.cli.ValidateExactArgs(remaining, 1, usage) {
		return
	}

	audit, err := a.cli.CreateClient(config).Transition(remaining[0], "finalize", map[string]string{"notes": notes})
	if a.cli.HandleError(err, "finalizing audit") {
		return
	}
	a.cli.Printf("Audit %s finalized by %s\n", audit.Code, audit.FinalizedBy)
}

// Collect submits a JSON array of readings from a file, or stdin for "-"
func (a *AuditCommands) Collect(args []string) {
	config, remaining, ok := a.parseN(args, "collect", 2, "Usage: auditctl collect <audit-id> <readings.json|->")
	if !ok {
		return
	}

	var (
		data []byte
		err  error
	)
	if remaining[1] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(remaining[1])
	}
	if a.cli.HandleError(err, "reading readings file") {
		return
	}
	if !json.Valid(data) {
		a.cli.ExitError("Error: %s is not valid JSON\n", remaining[1])
		return
	}

	result, err := a.cli.CreateClient(config).Collect(remaining[0], data)
	if a.cli.HandleError(err, "submitting readings") {
		return
	}
	if config.JSON {
		a.cli.PrintJSON(result)
		return
	}

	a.cli.Printf("Applied %d reading(s), rejected %d\n", len(result.Successes), len(result.Failures))
	for _, f := range result.Failures {
		a.cli.Printf("  #%d %s: %s\n", f.Index, f.Reason, f.Message)
	}
}

func (a *AuditCommands) parse(args []string, name, usage string) (*GlobalConfig, []string, bool) {
	return a.parseN(args, name, 1, usage)
}

func (a *AuditCommands) parseN(args []string, name string, n int, usage string) (*GlobalConfig, []string, bool) {
	config, remaining, err := a.cli.ParseGlobalFlags(args, name)
	if err == flag.ErrHelp {
		a.cli.Println(usage)
		return nil, nil, false
	}
	if a.cli.HandleError(err, "parsing flags") {
		return nil, nil, false
	}
	if !a.cli.ValidateExactArgs(remaining, n, usage) {
		return nil, nil, false
	}
	return config, remaining, true
}
