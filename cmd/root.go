package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Tiliavir/punch-clock/internal/account"
	"github.com/Tiliavir/punch-clock/internal/config"
	"github.com/Tiliavir/punch-clock/internal/logger"
	"github.com/Tiliavir/punch-clock/internal/model"
	"github.com/Tiliavir/punch-clock/internal/persist"
	"github.com/Tiliavir/punch-clock/internal/rules"
	"github.com/Tiliavir/punch-clock/internal/session"
	"github.com/Tiliavir/punch-clock/internal/storage"
	"github.com/Tiliavir/punch-clock/internal/storage/sqlstore"
	"github.com/Tiliavir/punch-clock/internal/timecalc"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "punch",
	Short: "punch – a work-hours tracker with auto-filled punches",
	Long: `punch records four punches per working day (morning entry/exit and
afternoon entry/exit) and fills the ones you have not entered yet from the
workday rules. Data is stored in ~/.punch/ unless configured otherwise.`,
	SilenceUsage: true,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.punch/config.json; *.toml read as TOML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(clockCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(logoutCmd)
}

// app bundles what every command needs.
type app struct {
	cfg   config.Config
	rules rules.Rules
	log   zerolog.Logger
	store storage.Store
}

// loadApp reads the config and opens the store. Callers must Close it.
func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	r, err := cfg.Rules.Resolve()
	if err != nil {
		return nil, err
	}
	log := logger.Console("punch", verbose)
	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, rules: r, log: log, store: store}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("closing store")
	}
}

func openStore(ctx context.Context, sc config.StoreConfig) (storage.Store, error) {
	switch sc.Driver {
	case "sqlite":
		path := sc.Path
		if path == "" {
			base, err := storage.BaseDir()
			if err != nil {
				return nil, err
			}
			path = filepath.Join(base, "punch.db")
		}
		return sqlstore.Open(ctx, sqlstore.SQLite, path)
	case "postgres":
		return sqlstore.Open(ctx, sqlstore.Postgres, sc.DSN)
	default:
		base := sc.Path
		if base == "" {
			b, err := storage.BaseDir()
			if err != nil {
				return nil, err
			}
			base = b
		}
		return storage.NewFileStore(base), nil
	}
}

// accounts returns the configured account provider.
func (a *app) accounts() (account.Provider, error) {
	if a.cfg.Account.Mode == "oauth" {
		return a.oauth()
	}
	return account.Static{User: model.User{
		ID:    a.cfg.User.ID,
		Name:  a.cfg.User.Name,
		Email: a.cfg.User.Email,
	}}, nil
}

func (a *app) oauth() (*account.OAuth, error) {
	ac := a.cfg.Account
	return account.NewOAuth(account.OAuthConfig{
		TenantID:      ac.TenantID,
		ClientID:      ac.ClientID,
		DeviceAuthURL: ac.DeviceAuthURL,
		TokenURL:      ac.TokenURL,
		UserInfoURL:   ac.UserInfoURL,
	}, a.log)
}

// currentUser resolves the signed-in user, with a login hint when nobody is.
func (a *app) currentUser(ctx context.Context) (model.User, error) {
	p, err := a.accounts()
	if err != nil {
		return model.User{}, err
	}
	u, err := p.CurrentUser(ctx)
	if errors.Is(err, account.ErrNotAuthenticated) {
		return model.User{}, fmt.Errorf("%w: run `punch login` first", err)
	}
	return u, err
}

// newWriter returns the debounced writer for the configured store.
func (a *app) newWriter() *persist.Writer {
	return persist.NewWriter(a.store, persist.Config{
		Delay: a.cfg.Debounce(),
		ErrorHandler: func(k persist.Key, err error) {
			a.log.Error().Err(err).Str("key", k.String()).Msg("saving punches failed")
		},
	}, a.log)
}

// openEditor opens the day of user at date in a fresh editor.
func (a *app) openEditor(ctx context.Context, user model.User, date string, w *persist.Writer) (*session.Editor, error) {
	ed := session.NewEditor(a.rules, a.store, w, a.log)
	if err := ed.Open(ctx, user.ID, date); err != nil {
		return nil, err
	}
	return ed, nil
}

// resolveDate returns the date flag as YYYY-MM-DD, today when empty.
func resolveDate(flag string, now time.Time) (string, error) {
	if flag == "" || flag == "today" {
		return timecalc.DateKey(now), nil
	}
	if _, err := timecalc.ParseDate(flag); err != nil {
		return "", err
	}
	return flag, nil
}

// resolveMonth returns the first day of the month flag, the current month
// when empty.
func resolveMonth(flag string, now time.Time) (time.Time, error) {
	if flag == "" {
		first, _ := timecalc.MonthRange(now)
		return first, nil
	}
	return timecalc.ParseMonth(flag)
}
