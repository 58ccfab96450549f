package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
)

// CLI represents the command-line interface with dependencies
type CLI struct {
	Output io.Writer
	Error  io.Writer
	Exit   func(int)
}

// NewCLI creates a new CLI instance with default dependencies
func NewCLI() *CLI {
	return &CLI{
		Output: os.Stdout,
		Error:  os.Stderr,
		Exit:   os.Exit,
	}
}

// GlobalConfig holds common configuration for all commands
type GlobalConfig struct {
	ServerURL string
	Actor     string
	Token     string
	JSON      bool
}

// ParseGlobalFlags parses common flags, plus any registered by extra, and
// returns GlobalConfig and remaining args
func (cli *CLI) ParseGlobalFlags(args []string, commandName string, extra ...func(*flag.FlagSet)) (*GlobalConfig, []string, error) {
	config := &GlobalConfig{}

	flagSet := flag.NewFlagSet(commandName, flag.ContinueOnError)
	flagSet.SetOutput(cli.Error)
	flagSet.StringVar(&config.ServerURL, "server", envOr("AUDITCTL_SERVER", "http://localhost:8890"), "auditledger server URL")
	flagSet.StringVar(&config.Actor, "actor", os.Getenv("AUDITCTL_ACTOR"), "Actor id sent as X-Actor-ID")
	flagSet.StringVar(&config.Token, "token", os.Getenv("AUDITCTL_TOKEN"), "Bearer token")
	flagSet.BoolVar(&config.JSON, "json", false, "Print raw JSON")
	for _, register := range extra {
		register(flagSet)
	}

	if len(args) > 0 && (args[0] == "-h" || args[0] == "--help") {
		return nil, nil, flag.ErrHelp
	}

	if err := flagSet.Parse(args); err != nil {
		return nil, nil, err
	}

	return config, flagSet.Args(), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// CreateClient creates an API client from GlobalConfig
func (cli *CLI) CreateClient(config *GlobalConfig) *Client {
	return NewClient(config.ServerURL, config.Actor, config.Token)
}

// Printf writes formatted output to the output writer
func (cli *CLI) Printf(format string, args ...any) {
	fmt.Fprintf(cli.Output, format, args...)
}

// Println writes a line to the output writer
func (cli *CLI) Println(args ...any) {
	fmt.Fprintln(cli.Output, args...)
}

// Errorf writes formatted error to the error writer
func (cli *CLI) Errorf(format string, args ...any) {
	fmt.Fprintf(cli.Error, format, args...)
}

// Errorln writes an error line to the error writer
func (cli *CLI) Errorln(args ...any) {
	fmt.Fprintln(cli.Error, args...)
}

// PrintJSON writes v indented to the output writer
func (cli *CLI) PrintJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		cli.ExitError("Error encoding output: %v\n", err)
		return
	}
	cli.Println(string(data))
}

// ExitError prints an error message and exits
func (cli *CLI) ExitError(format string, args ...any) {
	cli.Errorf(format, args...)
	cli.Exit(1)
}

// HandleError checks if error exists, prints it and exits
func (cli *CLI) HandleError(err error, context string) bool {
	if err != nil {
		cli.ExitError("Error %s: %v\n", context, err)
		return true
	}
	return false
}

// ValidateExactArgs checks if exactly n arguments are provided
func (cli *CLI) ValidateExactArgs(args []string, n int, usage string) bool {
	if len(args) != n {
		cli.Errorln(usage)
		cli.Exit(1)
		return false
	}
	return true
}

// PrintTable writes a header and rows aligned in columns. Float cells are
// rendered as percentages.
func (cli *CLI) PrintTable(header string, rows [][]any) {
	w := tabwriter.NewWriter(cli.Output, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, header)
	for _, row := range rows {
		for i, col := range row {
			sep := "\t"
			if i == len(row)-1 {
				sep = "\n"
			}
			if f, ok := col.(float64); ok {
				fmt.Fprintf(w, "%.1f%%%s", f, sep)
				continue
			}
			fmt.Fprintf(w, "%v%s", col, sep)
		}
	}
	_ = w.Flush()
}
