package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/idilsaglam/dayplan/internal/api"
	"github.com/idilsaglam/dayplan/internal/auth"
	"github.com/idilsaglam/dayplan/internal/config"
	"github.com/idilsaglam/dayplan/internal/dateutil"
	"github.com/idilsaglam/dayplan/internal/logging"
	"github.com/idilsaglam/dayplan/internal/model"
	"github.com/idilsaglam/dayplan/internal/planner"
	"github.com/idilsaglam/dayplan/internal/tui"
	"github.com/idilsaglam/dayplan/internal/ui"
)

// App is what every subcommand shares once the root flags are resolved.
type App struct {
	cfgFile  string
	baseURL  string
	user     string
	date     string
	logLevel string
	theme    string
	noColor  bool

	// credDir overrides ~/.dayplan for stored credentials.
	credDir string
	clock   dateutil.Clock

	Config config.Config
	Log    *log.Logger
	Auth   auth.Store
	Client *api.Client
	User   string
	CSRF   string
	token  string
	day    dateutil.DayFunc
}

// NewRootCmd builds the dayplan command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&App{clock: time.Now})
}

func newRootCmd(a *App) *cobra.Command {
	if a.clock == nil {
		a.clock = time.Now
	}
	cmd := &cobra.Command{
		Use:   "dayplan",
		Short: "Plan a day: targets to tick off and appointments to keep.",
		Long: `Plan a day: targets to tick off and appointments to keep.

Without a subcommand dayplan opens the interactive planner.`,
		Example: `
dayplan
dayplan --date tomorrow
dayplan targets add Stretch --order 1
dayplan appts add Dentist --from 09:00 --until 10:00
dayplan ls
`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return a.setup(cmd) },
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&a.cfgFile, "config", "", "Config file (default $HOME/.dayplan.yaml).")
	f.StringVar(&a.baseURL, "base-url", "", "Backend base URL.")
	f.StringVarP(&a.user, "user", "u", "", "User whose day is shown.")
	f.StringVarP(&a.date, "date", "d", "", "Day to work on: YYYY-MM-DD, today, yesterday or tomorrow.")
	f.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error.")
	f.StringVar(&a.theme, "theme", "", "classic, neon or mono.")
	f.BoolVar(&a.noColor, "no-color", false, "Disable colours.")

	addList(cmd, a)
	addEntries(cmd, a, model.KindTarget, "targets", "target")
	addEntries(cmd, a, model.KindAppointment, "appts", "appointments", "schedule")
	addAuth(cmd, a)
	addDevServer(cmd, a)
	return cmd
}

// setup resolves config, then lets explicitly set flags win over it.
func (a *App) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = strings.TrimRight(a.baseURL, "/")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("theme") {
		cfg.Theme = a.theme
	}
	a.Config = cfg

	ui.SetTheme(cfg.Theme)
	if a.noColor {
		ui.SetColorForcing(false, true)
	}

	a.Log, err = logging.New(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return err
	}

	if a.credDir == "" {
		if a.credDir, err = auth.DefaultDir(); err != nil {
			return err
		}
	}
	a.Auth = auth.Store{Dir: a.credDir}
	ti, err := a.Auth.Get()
	if err != nil {
		return err
	}

	token, csrf, user := cfg.Token, cfg.CSRFToken, cfg.User
	if ti != nil {
		if token == "" || ti.Source == "env" {
			token = ti.Token
		}
		if csrf == "" {
			csrf = ti.CSRFToken
		}
		if user == "" {
			user = ti.User
		}
	}
	if flags.Changed("user") {
		user = a.user
	}
	a.User, a.CSRF = strings.TrimSpace(user), csrf

	if flags.Changed("date") {
		day, err := dateutil.Parse(a.date, a.clock())
		if err != nil {
			return err
		}
		a.day = dateutil.Fixed(day)
	} else {
		a.day = dateutil.Current(a.clock)
	}

	a.token = token
	a.Client = a.newClient()
	return nil
}

func (a *App) newClient() *api.Client {
	return api.New(a.Config.BaseURL,
		api.WithToken(a.token),
		api.WithCSRFToken(a.CSRF),
		api.WithTimeout(a.Config.Timeout),
		api.WithLogger(a.Log),
	)
}

var errNoUser = errors.New("no user set: pass --user, set DAYPLAN_USER or run `dayplan auth login --user <name>`")

func (a *App) synchronizer(kind model.Kind) (*planner.Synchronizer, error) {
	if a.User == "" {
		return nil, errNoUser
	}
	return planner.New(kind, a.User, a.Client, a.day, planner.WithLogger(a.Log)), nil
}

// runTUI owns the terminal, so logs go to the log file instead of stderr.
func (a *App) runTUI(cmd *cobra.Command) error {
	if a.User == "" {
		return errNoUser
	}

	var w io.Writer = io.Discard
	if a.Config.LogFile != "" {
		f, err := logging.OpenFile(a.Config.LogFile)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	logger, err := logging.New(w, a.Config.LogLevel)
	if err != nil {
		return err
	}
	a.Log = logger
	a.Client = a.newClient()

	targets, err := a.synchronizer(model.KindTarget)
	if err != nil {
		return err
	}
	appts, err := a.synchronizer(model.KindAppointment)
	if err != nil {
		return err
	}

	if err := tui.Run(tui.Options{
		Context:      cmd.Context(),
		Targets:      targets,
		Appointments: appts,
		User:         a.User,
		CSRFToken:    a.CSRF,
		Logger:       a.Log,
	}); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		ui.Fail(os.Stderr, err.Error())
		return 1
	}
	return 0
}
