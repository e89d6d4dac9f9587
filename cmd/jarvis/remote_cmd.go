package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var remoteCmd = &cobra.Command{
	Use:               "remote",
	Short:             "Manage saved server profiles",
	GroupID:           "system",
	PersistentPreRunE: skipClient,
}

var remoteAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Save a server profile (replaces one with the same name)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		r := Remote{URL: strings.TrimRight(args[1], "/")}
		r.Token, _ = flags.GetString("token")
		r.GRPCAddr, _ = flags.GetString("grpc")
		r.NATSURL, _ = flags.GetString("nats")
		r.Description, _ = flags.GetString("description")
		use, _ := flags.GetBool("use")

		var active string
		err := updateRemotes(func(cfg *RemotesConfig) error {
			if err := cfg.Put(args[0], r, use); err != nil {
				return err
			}
			active = cfg.Active
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s → %s", args[0], r.URL)
		if active == args[0] {
			fmt.Fprint(cmd.OutOrStdout(), " (active)")
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	},
}

var remoteRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a server profile",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := updateRemotes(func(cfg *RemotesConfig) error { return cfg.Drop(args[0]) }); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
		return nil
	},
}

var remoteUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Switch the active profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := updateRemotes(func(cfg *RemotesConfig) error { return cfg.Use(args[0]) }); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Now using %s\n", args[0])
		return nil
	},
}

var remoteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved profiles; * marks the active one",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadRemotes()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(cfg.Remotes) == 0 {
			fmt.Fprintln(out, "No remotes. Add one with: jarvis remote add <name> <url>")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tURL\tTOKEN\tDESCRIPTION")
		for _, name := range cfg.Names() {
			r := cfg.Remotes[name]
			mark := " "
			if name == cfg.Active {
				mark = "*"
			}
			fmt.Fprintf(w, "%s %s\t%s\t%s\t%s\n", mark, name, r.URL, maskToken(r.Token), r.Description)
		}
		return w.Flush()
	},
}

var remoteShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show one profile (the active one by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRemotes()
		if err != nil {
			return err
		}
		name := cfg.Active
		if len(args) == 1 {
			name = args[0]
		}
		if name == "" {
			return fmt.Errorf("no active remote")
		}
		r, ok := cfg.Remotes[name]
		if !ok {
			return fmt.Errorf("%w: %q", errNoRemote, name)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Name:  %s\n", name)
		fmt.Fprintf(out, "URL:   %s\n", r.URL)
		for _, kv := range [][2]string{
			{"Token", maskToken(r.Token)},
			{"gRPC", r.GRPCAddr},
			{"NATS", r.NATSURL},
			{"Note", r.Description},
		} {
			if kv[1] != "" {
				fmt.Fprintf(out, "%-6s %s\n", kv[0]+":", kv[1])
			}
		}
		return nil
	},
}

// maskToken shows only the first 8 bytes of a token.
func maskToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + strings.Repeat("*", len(token)-8)
}

func init() {
	f := remoteAddCmd.Flags()
	f.String("token", "", "bearer token sent with every request")
	f.String("grpc", "", "gRPC address, used by 'jarvis health'")
	f.String("nats", "", "NATS URL, used by 'jarvis watch'")
	f.StringP("description", "d", "", "free-form note")
	f.Bool("use", false, "make this the active profile")

	remoteCmd.AddCommand(remoteAddCmd, remoteRemoveCmd, remoteUseCmd, remoteListCmd, remoteShowCmd)
}
