package main

import (
	"flag"
)

// BackupCommands handles backup related commands
type BackupCommands struct {
	cli *CLI
}

// NewBackupCommands creates a new backup commands handler
func NewBackupCommands(cli *CLI) *BackupCommands {
	return &BackupCommands{cli: cli}
}

// Handle routes backup subcommands
func (b *BackupCommands) Handle(args []string) {
	if len(args) == 0 || args[0] != "create" {
		b.cli.Errorln("Usage: auditctl backup create [options]")
		b.cli.Exit(1)
		return
	}

	config, remaining, err := b.cli.ParseGlobalFlags(args[1:], "create")
	if err == flag.ErrHelp {
		b.cli.Println("Usage: auditctl backup create [options]")
		return
	}
	if b.cli.HandleError(err, "parsing flags") {
		return
	}
	if !b.cli.ValidateExactArgs(remaining, 0, "Usage: auditctl backup create") {
		return
	}

	path, err := b.cli.CreateClient(config).CreateBackup()
	if b.cli.HandleError(err, "creating backup") {
		return
	}
	b.cli.Printf("Successfully created backup: %s\n", path)
}
