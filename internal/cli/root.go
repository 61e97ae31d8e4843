// Package cli implements the magicpic-admin command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"magicpic_admin/internal/adminapi"
	"magicpic_admin/internal/config"
	"magicpic_admin/internal/logger"
	"magicpic_admin/internal/session"

	redis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// env holds what every command needs. PersistentPreRunE fills it.
type env struct {
	profile config.Profile
	sess    *session.Session
	api     *adminapi.Client
	out     io.Writer
	closeFn func()
}

var app env

var rootCmd = &cobra.Command{
	Use:   "magicpic-admin",
	Short: "Admin console for the MagicPic credit ledger",
	Long: `magicpic-admin talks to the MagicPic admin API: look up users, grant
credits and browse the transaction ledger. The session is kept in
~/.magicpic/session.json, or in Redis when REDIS_ADDR is set.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app.closeFn != nil {
			app.closeFn()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Profile path (default ~/.magicpic/config.toml)")
	rootCmd.PersistentFlags().String("api-url", "", "Admin API base URL, overrides the profile")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
}

// Execute runs the CLI with os.Args.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func setup(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = filepath.Join(config.HomeDir(), "config.toml")
	}
	profile, err := config.LoadProfile(path)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("api-url"); v != "" {
		profile.APIURL = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		profile.LogLevel = v
	}
	logger.InitWriter(cmd.ErrOrStderr(), profile.LogLevel, false)

	store, closeFn := sessionStore(profile)
	sess := session.New(store)
	sess.OnExpired(func(reason string) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Session ended (%s). Run 'magicpic-admin login' again.\n", reason)
	})

	app = env{
		profile: profile,
		sess:    sess,
		api:     adminapi.New(profile.APIURL, sess, adminapi.WithTimeout(time.Duration(profile.TimeoutSeconds)*time.Second)),
		out:     cmd.OutOrStdout(),
		closeFn: closeFn,
	}
	return nil
}

// sessionStore picks Redis when configured, else the file under the home dir.
func sessionStore(p config.Profile) (session.Store, func()) {
	if p.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: p.Redis.Addr, Password: p.Redis.Password, DB: p.Redis.DB})
		return session.NewRedisStore(rdb, p.Redis.Prefix), func() { _ = rdb.Close() }
	}
	return session.NewFileStore(filepath.Join(config.HomeDir(), "session.json")), nil
}

// requireSession fails early when there is no usable token.
func requireSession(ctx context.Context) error {
	if _, ok := app.sess.Token(ctx); !ok {
		return fmt.Errorf("not logged in: run 'magicpic-admin login'")
	}
	return nil
}
