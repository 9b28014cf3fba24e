package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"memstream/config"
	"memstream/memstream"
	"memstream/provider"
	"memstream/provider_snapshot"

	"github.com/spf13/cobra"
)

type globalFlags struct {
	configFile string
	provider   string
	snapshot   string
	ignoreCase bool
	pid        uint32
}

func main() {
	rootCmd := newRootCmd()
	rootCmd.SetOut(os.Stdout)

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	rootCmd := &cobra.Command{
		Use:           "memstream",
		Short:         "Resolve processes, module bases and symbol tables through a memory introspection provider",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "YAML config file")
	pf.StringVar(&flags.provider, "provider", "", "Provider: procfs, vmm or snapshot")
	pf.StringVar(&flags.snapshot, "snapshot", "", "Snapshot file for the snapshot provider")
	pf.BoolVar(&flags.ignoreCase, "ignore-case", false, "Match process names case-insensitively")
	pf.Uint32Var(&flags.pid, "pid", 0, "Pick this pid among processes sharing the name")

	rootCmd.AddCommand(
		newProcessCmd(&flags),
		newProcessesCmd(&flags),
		newBaseCmd(&flags),
		newSymbolsCmd(&flags, "exports", "List the export address table of a module", (*memstream.Process).Exports),
		newSymbolsCmd(&flags, "imports", "List the import address table of a module", (*memstream.Process).Imports),
		newModulesCmd(&flags),
		newSnapshotCmd(&flags),
	)

	return rootCmd
}

// loadConfig merges the config file with flags set on the command line
func loadConfig(cmd *cobra.Command, flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("provider") {
		cfg.Provider = flags.provider
	}
	if f.Changed("snapshot") {
		cfg.Snapshot = flags.snapshot
		if !f.Changed("provider") {
			cfg.Provider = config.ProviderSnapshot
		}
	}
	if f.Changed("ignore-case") {
		cfg.IgnoreCase = flags.ignoreCase
	}

	return cfg, cfg.Validate()
}

// openSession opens the configured provider. The returned func closes it.
func openSession(cmd *cobra.Command, flags *globalFlags) (*memstream.Session, func(), error) {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return nil, nil, err
	}

	var p provider.Provider
	if cfg.Provider == config.ProviderSnapshot {
		p, err = provider_snapshot.Load(cfg.Snapshot)
	} else {
		p, err = openLiveProvider(cfg)
	}
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() {
		if c, ok := p.(io.Closer); ok {
			_ = c.Close()
		}
	}

	var opts []memstream.Option
	if cfg.IgnoreCase {
		opts = append(opts, memstream.WithCaseInsensitiveNames())
	}

	return memstream.NewSession(p, opts...), closeFn, nil
}

// resolveProcess resolves name, honouring --pid when several processes share it
func resolveProcess(session *memstream.Session, flags *globalFlags, name string) (*memstream.Process, error) {
	if flags.pid == 0 {
		return session.GetProcess(name)
	}

	list, err := session.GetAllProcesses(name)
	if err != nil {
		return nil, err
	}
	for _, p := range list {
		if p.PID() == provider.ProcessID(flags.pid) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: no process %q with pid %d", memstream.ErrResolutionFailed, name, flags.pid)
}

func newProcessCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "process <name>",
		Short: "Resolve the first process with a name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, closeFn, err := openSession(cmd, flags)
			if err != nil {
				return err
			}
			defer closeFn()

			p, err := resolveProcess(session, flags, args[0])
			if err != nil {
				return err
			}
			cmd.Println(p.PID())
			return nil
		},
	}
}

func newProcessesCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "processes <name>",
		Short: "List every process with a name, in scan order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, closeFn, err := openSession(cmd, flags)
			if err != nil {
				return err
			}
			defer closeFn()

			list, err := session.GetAllProcesses(args[0])
			if err != nil {
				return err
			}
			for _, p := range list {
				line := strconv.FormatUint(uint64(p.PID()), 10)
				if info, err := session.Provider().ProcessInformation(p.PID()); err == nil {
					line += "\t" + info.NameLong
					if info.Path != "" {
						line += "\t" + info.Path
					}
				}
				cmd.Println(line)
			}
			return nil
		},
	}
}

func newBaseCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "base <process> <module>",
		Short: "Print the load address of a module",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, closeFn, err := openSession(cmd, flags)
			if err != nil {
				return err
			}
			defer closeFn()

			p, err := resolveProcess(session, flags, args[0])
			if err != nil {
				return err
			}
			base, err := p.ModuleBase(args[1])
			if err != nil {
				return err
			}
			cmd.Println(base)
			return nil
		},
	}
}

func newSymbolsCmd(flags *globalFlags, use, short string, table func(*memstream.Process, string) (memstream.SymbolList, error)) *cobra.Command {
	var symbol string

	cmd := &cobra.Command{
		Use:   use + " <process> <module>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, closeFn, err := openSession(cmd, flags)
			if err != nil {
				return err
			}
			defer closeFn()

			p, err := resolveProcess(session, flags, args[0])
			if err != nil {
				return err
			}
			symbols, err := table(p, args[1])
			if err != nil {
				return err
			}

			if symbol != "" {
				sym, ok := symbols.Lookup(symbol)
				if !ok {
					return fmt.Errorf("%s has no %s named %q", args[1], use[:len(use)-1], symbol)
				}
				symbols = memstream.SymbolList{sym}
			}

			for _, sym := range symbols {
				cmd.Printf("%s\t%s\n", sym.Address, sym.Name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "Print only this symbol")
	return cmd
}

func newModulesCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "modules <process>",
		Short: "List the modules loaded into a process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, closeFn, err := openSession(cmd, flags)
			if err != nil {
				return err
			}
			defer closeFn()

			p, err := resolveProcess(session, flags, args[0])
			if err != nil {
				return err
			}
			modules, err := p.Modules()
			if err != nil {
				return err
			}
			for _, m := range modules {
				cmd.Printf("%s\t%s\n", m.Base, m.Name)
			}
			return nil
		},
	}
}

func newSnapshotCmd(flags *globalFlags) *cobra.Command {
	var (
		output  string
		modules []string
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture processes and module tables into a JSON or YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, closeFn, err := openSession(cmd, flags)
			if err != nil {
				return err
			}
			defer closeFn()

			s, err := provider_snapshot.Capture(session.Provider(), modules...)
			if err != nil {
				return err
			}
			if err := s.Save(output); err != nil {
				return err
			}
			cmd.Printf("Saved %d processes to %s\n", len(s.Processes), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (.json, .yaml or .yml)")
	cmd.Flags().StringSliceVarP(&modules, "module", "m", nil, "Module to capture, repeatable")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}
