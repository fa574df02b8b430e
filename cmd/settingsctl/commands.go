package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/andreyvit/settings"
)

var errNotFound = errors.New("not found")

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get [key] [kind]",
		Short: "Prints the value stored under a key",
		Long:  "Prints the value stored under a key. With a kind (int, long, string, float, double, bool), values of other kinds are reported as missing.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withStore(a, func(cmd *cobra.Command, s settings.Settings, args []string) error {
			key := args[0]
			var v settings.Value
			var ok bool
			if len(args) == 2 {
				kind, err := settings.ParseKind(args[1])
				if err != nil {
					return err
				}
				v, ok = settings.Get(s, key, kind)
			} else {
				v, ok = settings.LookupAny(s, key)
			}
			if !ok {
				return fmt.Errorf("%s: %w", key, errNotFound)
			}
			fmt.Fprintln(cmd.OutOrStdout(), v.Text())
			return nil
		}),
	}
}

func newPutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "put [key] [kind] [value]",
		Short: "Stores a value under a key",
		Args:  cobra.ExactArgs(3),
		RunE: withStore(a, func(cmd *cobra.Command, s settings.Settings, args []string) error {
			kind, err := settings.ParseKind(args[1])
			if err != nil {
				return err
			}
			v, err := settings.ParseValue(kind, args[2])
			if err != nil {
				return fmt.Errorf("invalid %v value %q: %w", kind, args[2], err)
			}
			settings.Put(s, args[0], v)
			return nil
		}),
	}
}

func newRmCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm [key]...",
		Short: "Removes keys",
		Long:  "Removes keys. With --tree, also removes the presence marker and every key nested under each given key, i.e. a whole structured value.",
		Args:  cobra.MinimumNArgs(1),
		RunE: withStore(a, func(cmd *cobra.Command, s settings.Settings, args []string) error {
			tree, _ := cmd.Flags().GetBool("tree")
			var n int
			if tree {
				for _, k := range s.Keys() {
					for _, root := range args {
						if k == root || k == root+"?" || strings.HasPrefix(k, root+".") {
							s.Remove(k)
							n++
							break
						}
					}
				}
			} else {
				for _, k := range args {
					if s.HasKey(k) {
						s.Remove(k)
						n++
					}
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d keys\n", n)
			return nil
		}),
	}
	cmd.Flags().Bool("tree", false, wrapString("Remove everything nested under the given keys"))
	return cmd
}

func newKeysCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "keys [prefix]",
		Short: "Lists keys, optionally only those starting with a prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: withStore(a, func(cmd *cobra.Command, s settings.Settings, args []string) error {
			var prefix string
			if len(args) > 0 {
				prefix = args[0]
			}
			w := cmd.OutOrStdout()
			for _, k := range s.Keys() {
				if strings.HasPrefix(k, prefix) {
					fmt.Fprintln(w, k)
				}
			}
			return nil
		}),
	}
}

func newDumpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Prints every key with its value and kind",
		Args:  cobra.NoArgs,
		RunE: withStore(a, func(cmd *cobra.Command, s settings.Settings, args []string) error {
			_, err := io.WriteString(cmd.OutOrStdout(), settings.Dump(s))
			return err
		}),
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Prints key counts per kind",
		Args:  cobra.NoArgs,
		RunE: withStore(a, func(cmd *cobra.Command, s settings.Settings, args []string) error {
			st := settings.StatsOf(s)
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "keys: %d\n", st.Keys)
			for k := settings.KindInt; k <= settings.KindBool; k++ {
				if n := st.ByKind[k]; n > 0 {
					fmt.Fprintf(w, "%s: %d\n", k, n)
				}
			}
			fmt.Fprintf(w, "string bytes: %d\n", st.StringBytes)
			return nil
		}),
	}
}

func formatFlag(cmd *cobra.Command) (settings.Format, error) {
	name, _ := cmd.Flags().GetString("format")
	return settings.ParseFormat(name)
}

func newExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Writes all keys to stdout or a file",
		Args:  cobra.NoArgs,
		RunE: withStore(a, func(cmd *cobra.Command, s settings.Settings, args []string) error {
			f, err := formatFlag(cmd)
			if err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("output")
			if out == "" || out == "-" {
				return settings.Export(s, cmd.OutOrStdout(), f)
			}
			file, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := settings.Export(s, file, f); err != nil {
				file.Close()
				return err
			}
			return file.Close()
		}),
	}
	cmd.Flags().String("format", "json", wrapString("Output format (json, msgpack, cbor)"))
	cmd.Flags().StringP("output", "o", "", wrapString("Output file (default stdout)"))
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Stores all keys from a file written by export",
		Long:  "Stores all keys from a file written by export (- reads stdin). Existing keys not present in the file are kept unless --replace is given.",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(a, func(cmd *cobra.Command, s settings.Settings, args []string) error {
			f, err := formatFlag(cmd)
			if err != nil {
				return err
			}
			var r io.Reader
			if args[0] == "-" {
				r = cmd.InOrStdin()
			} else {
				file, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer file.Close()
				r = file
			}

			staged := settings.NewMapSettings()
			n, err := settings.Import(staged, r, f)
			if err != nil {
				return err
			}
			if replace, _ := cmd.Flags().GetBool("replace"); replace {
				s.Clear()
			}
			for k, v := range staged.Snapshot() {
				settings.Put(s, k, v)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d keys\n", n)
			return nil
		}),
	}
	cmd.Flags().String("format", "json", wrapString("Input format (json, msgpack, cbor)"))
	cmd.Flags().Bool("replace", false, wrapString("Clear the store before importing"))
	return cmd
}

func newCompactCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Rewrites the journal of a file store with one record per key",
		Args:  cobra.NoArgs,
		RunE: withStore(a, func(cmd *cobra.Command, s settings.Settings, args []string) error {
			return compact(s)
		}),
	}
}
