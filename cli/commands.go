// Package cli provides the Cobra-based CLI for amal: the storefront cart and
// checkout plus the admin catalog, coupon and order commands.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/wbtio/Amal-Center-sub000/backend"
	"github.com/wbtio/Amal-Center-sub000/cart"
	"github.com/wbtio/Amal-Center-sub000/domain"
	"github.com/wbtio/Amal-Center-sub000/store"
)

const shutdownTimeout = 5 * time.Second

var (
	rootCmd = &cobra.Command{
		Use:           "amal",
		Short:         "Amal Center storefront: catalog, cart, checkout and orders",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// tests inject the stores directly
			if shop != nil && cartStore != nil {
				return nil
			}
			return setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if cartStore == nil {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return cartStore.Flush(ctx)
		},
	}

	shop      backend.Backend
	cartStore *cart.Store
	locale    = domain.LocaleArabic
	cleanup   func()
)

func setup(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg := viper.GetString("config"); cfg != "" {
		viper.SetConfigFile(cfg)
		if err := viper.ReadInConfig(); err != nil {
			return err
		}
	}

	lvl := slog.LevelInfo
	switch strings.ToLower(viper.GetString("log-level")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	loc, err := domain.ParseLocale(viper.GetString("locale"))
	if err != nil {
		return err
	}
	locale = loc

	be, err := backend.NewBackend(viper.GetString("backend"), viper.GetString("db"))
	if err != nil {
		return err
	}

	kind := viper.GetString("cart-store")
	target := viper.GetString("cart-file")
	if strings.EqualFold(kind, "redis") {
		target = viper.GetString("redis-addr")
	}
	persister, err := store.NewStore(kind, target)
	if err != nil {
		be.Close()
		return err
	}
	c, err := cart.New(ctx, persister, cart.WithLogger(logger))
	if err != nil {
		closePersister(persister)
		be.Close()
		return err
	}

	shop, cartStore = be, c
	cleanup = func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := c.Close(ctx); err != nil {
			slog.Error("cart close failed", "error", err)
		}
		if err := be.Close(); err != nil {
			slog.Error("backend close failed", "error", err)
		}
		closePersister(persister)
	}
	slog.Debug("stores ready", "backend", viper.GetString("backend"), "cart_store", kind, "locale", string(loc))
	return nil
}

// closePersister releases persisters that hold a connection.
func closePersister(p domain.CartPersister) {
	if cl, ok := p.(io.Closer); ok {
		if err := cl.Close(); err != nil {
			slog.Error("cart store close failed", "error", err)
		}
	}
}

func init() {
	// shell
	shellCmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive shell mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			r := bufio.NewReader(cmd.InOrStdin())
			for {
				fmt.Fprint(cmd.OutOrStdout(), "amal> ")
				line, err := r.ReadString('\n')
				line = strings.TrimSpace(line)
				if line == "exit" || line == "quit" {
					return nil
				}
				if line != "" {
					if err := run(strings.Fields(line)); err != nil {
						fmt.Fprintln(cmd.ErrOrStderr(), localizeError(err))
					}
				}
				if err != nil {
					return nil
				}
			}
		},
	}
	rootCmd.AddCommand(shellCmd)

	pf := rootCmd.PersistentFlags()
	pf.String("cart-store", "file", "cart persistence: memory|file|redis")
	pf.String("cart-file", "data/cart.json", "file cart store path")
	pf.String("redis-addr", "localhost:6379", "redis cart store address")
	pf.String("backend", "sqlite", "backend: memory|sqlite")
	pf.String("db", "data/amal.db", "sqlite database path")
	pf.String("locale", "ar", "display language: ar|en")
	pf.String("config", "", "config file")
	pf.String("log-level", "info", "log level")

	for _, name := range []string{"cart-store", "cart-file", "redis-addr", "backend", "db", "locale", "config", "log-level"} {
		viper.BindPFlag(name, pf.Lookup(name))
	}
	viper.SetEnvPrefix("AMAL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(newProductCmd(), newCouponCmd(), newCartCmd(), newCheckoutCmd(), newOrderCmd())
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// run executes one command line. Subcommand flags are reset first so
// values from an earlier line in the same process do not leak into it.
func run(args []string) error {
	resetFlags(rootCmd)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	return rootCmd.Execute()
}

func resetFlags(c *cobra.Command) {
	for _, sub := range c.Commands() {
		sub.LocalNonPersistentFlags().VisitAll(func(f *pflag.Flag) {
			if f.Changed {
				f.Value.Set(f.DefValue)
				f.Changed = false
			}
		})
		resetFlags(sub)
	}
}

// Execute runs the command tree and releases whatever setup opened.
func Execute() error {
	err := rootCmd.Execute()
	if cleanup != nil {
		cleanup()
		cleanup = nil
		shop, cartStore = nil, nil
	}
	return localizeError(err)
}
