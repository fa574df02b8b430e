package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/andreyvit/settings"
)

const (
	// wrap is the number of characters to wrap the help text at
	wrap = 50
)

// wrapString wraps a string at wrap characters
func wrapString(text string) string {
	var lines []string
	var line strings.Builder
	for _, word := range strings.Fields(text) {
		if line.Len() > 0 && line.Len()+1+len(word) > wrap {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteString(" ")
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}

// newConfig loads .env files and returns a viper instance reading
// SETTINGS_* environment variables.
func newConfig() *viper.Viper {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	v := viper.New()
	v.SetEnvPrefix("settings")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// app is the state shared by the commands of one invocation.
type app struct {
	v      *viper.Viper
	logger *slog.Logger

	store  settings.Settings
	inst   *settings.Instrumented
	closer io.Closer
}

func (a *app) bindFlags(cmd *cobra.Command) error {
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(a.v.GetString("log-level"))); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

// open opens the configured store on first use.
func (a *app) open() (settings.Settings, error) {
	if a.store != nil {
		return a.store, nil
	}

	kind := a.v.GetString("store")
	path := a.v.GetString("path")
	if kind != "mem" && path == "" {
		return nil, fmt.Errorf("--path is required for the %s store", kind)
	}

	var s settings.Settings
	switch kind {
	case "mem":
		s = settings.NewMapSettings()
	case "bolt":
		bs, err := settings.OpenBolt(path, settings.BoltOptions{
			Bucket:  a.v.GetString("bucket"),
			Timeout: a.v.GetDuration("timeout"),
			Logger:  a.logger,
		})
		if err != nil {
			return nil, err
		}
		s, a.closer = bs, bs
	case "file":
		fs, err := settings.OpenFile(path, settings.FileOptions{
			SyncWrites: a.v.GetBool("sync"),
			Logger:     a.logger,
		})
		if err != nil {
			return nil, err
		}
		s, a.closer = fs, fs
	default:
		return nil, fmt.Errorf("invalid store %q (expected bolt, file or mem)", kind)
	}

	if a.v.GetBool("metrics") {
		a.inst = settings.Instrument(s, kind)
		s = a.inst
	}
	a.store = s
	return s, nil
}

// close releases the store and prints metrics if they were requested.
func (a *app) close(w io.Writer) error {
	if a.inst != nil {
		a.inst.WritePrometheus(w)
	}
	var err error
	if a.closer != nil {
		err = a.closer.Close()
	}
	a.store, a.inst, a.closer = nil, nil, nil
	return err
}

// withStore opens the store for the duration of fn. Backends report write
// failures by panicking with *settings.StoreError; those become errors.
func withStore(a *app, fn func(cmd *cobra.Command, s settings.Settings, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		s, err := a.open()
		if err != nil {
			return err
		}
		defer func() {
			if cerr := a.close(cmd.ErrOrStderr()); err == nil {
				err = cerr
			}
		}()
		defer func() {
			if r := recover(); r != nil {
				var se *settings.StoreError
				if e, ok := r.(error); ok && errors.As(e, &se) {
					err = e
					return
				}
				panic(r)
			}
		}()
		return fn(cmd, s, args)
	}
}

// compactor is implemented by stores that can shrink their files.
type compactor interface {
	Compact() error
}

func compact(s settings.Settings) error {
	if in, ok := s.(*settings.Instrumented); ok {
		s = in.Inner()
	}
	c, ok := s.(compactor)
	if !ok {
		return errors.New("this store does not support compaction")
	}
	return c.Compact()
}
