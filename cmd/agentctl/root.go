package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/RakeshSingh38/multi-agent-ai-system/internal/agents"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/app"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/config"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "agentctl",
		Short:         "Run research, analysis and report workflows",
		Long:          `agentctl runs the coordinator in-process and prints the task envelope as JSON.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default "+config.DefaultConfigPath+" when present)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log agent activity to stderr")

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newAgentsCmd())
	return cmd
}

func (o *rootOptions) load() (*config.Config, error) {
	if o.configPath != "" {
		return config.LoadFile(o.configPath)
	}
	return config.Load()
}

func (o *rootOptions) logger() (*zap.Logger, error) {
	if !o.verbose {
		return zap.NewNop(), nil
	}
	return app.NewLogger("debug")
}

func newAgentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List the registered agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printAgents(cmd.OutOrStdout(), agents.DefaultRegistry())
		},
	}
}

func printAgents(out io.Writer, registry *agents.Registry) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TAG\tNAME\tDESCRIPTION")
	for _, d := range registry.Describe() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Tag, d.Name, d.Description)
	}
	return tw.Flush()
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
