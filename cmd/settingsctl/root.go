package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
)

func newRootCmd() *cobra.Command {
	a := &app{v: newConfig()}

	rootCmd := &cobra.Command{
		Use:   "settingsctl",
		Short: "inspect and edit settings stores",
		Long: fmt.Sprintf(`settingsctl (v%s)

Reads and writes the flat key-value stores used by the settings package.
Flags can also be set via environment variables of the form SETTINGS_<flag>
(e.g. SETTINGS_STORE=file SETTINGS_PATH=app.journal), including from .env
and .env.local files.`, Version),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.bindFlags(cmd)
		},
	}

	key := "store"
	rootCmd.PersistentFlags().String(key, "bolt", wrapString("Store type (bolt, file, mem)"))
	key = "path"
	rootCmd.PersistentFlags().String(key, "", wrapString("Path of the Bolt database or journal file"))
	key = "bucket"
	rootCmd.PersistentFlags().String(key, "settings", wrapString("Bolt bucket holding the settings"))
	key = "timeout"
	rootCmd.PersistentFlags().Duration(key, 0, wrapString("How long to wait for the Bolt file lock (0 waits forever)"))
	key = "sync"
	rootCmd.PersistentFlags().Bool(key, false, wrapString("Fsync the journal after every change (file store)"))
	key = "metrics"
	rootCmd.PersistentFlags().Bool(key, false, wrapString("Print store metrics in Prometheus format to stderr when done"))
	key = "log-level"
	rootCmd.PersistentFlags().String(key, "warn", wrapString("Log level (debug, info, warn, error)"))

	rootCmd.AddCommand(
		newGetCmd(a),
		newPutCmd(a),
		newRmCmd(a),
		newKeysCmd(a),
		newDumpCmd(a),
		newStatsCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newCompactCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of settingsctl",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "settingsctl v%s\n", Version)
		},
	}
}
