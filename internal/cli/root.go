package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/adanyl0v/taskdock/internal/syncclient"
)

const requestTimeout = 15 * time.Second

var validFormats = []string{"text", "json"}

// clientEnv supplies flag defaults from the environment.
type clientEnv struct {
	Server      string `env:"TASKDOCK_SERVER" env-default:"http://localhost:8080"`
	SessionFile string `env:"TASKDOCK_SESSION_FILE"`
}

type RootOptions struct {
	Server      string
	SessionFile string
	Format      string
	Verbose     bool
}

func NewRootCommand() *cobra.Command {
	var env clientEnv
	_ = cleanenv.ReadEnv(&env)

	opts := &RootOptions{}
	cmd := &cobra.Command{
		Use:           "taskctl",
		Short:         "Terminal client for TaskDock",
		Long:          "Manage your TaskDock tasks and follow changes made by collaborators in real time.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Server, "server", "s", env.Server, "server base url")
	cmd.PersistentFlags().StringVar(&opts.SessionFile, "session-file", env.SessionFile, "where the login session is stored")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewRegisterCommand(opts))
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewUsersCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	cmd := NewRootCommand()
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func (o *RootOptions) logger(w io.Writer) zerolog.Logger {
	level := zerolog.WarnLevel
	if o.Verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func (o *RootOptions) sessionPath() (string, error) {
	if o.SessionFile != "" {
		return o.SessionFile, nil
	}
	return defaultSessionPath()
}

// session loads the stored login; commands that talk to the task API
// cannot run without one.
func (o *RootOptions) session() (*Session, *syncclient.API, error) {
	path, err := o.sessionPath()
	if err != nil {
		return nil, nil, err
	}
	sess, err := LoadSession(path)
	if err != nil {
		return nil, nil, err
	}
	server := sess.Server
	if server == "" {
		server = o.Server
	}
	api, err := syncclient.NewAPI(server, sess.Token)
	if err != nil {
		return nil, nil, err
	}
	return sess, api, nil
}

func (o *RootOptions) client(cmd *cobra.Command) (*Session, *syncclient.Client, *syncclient.API, error) {
	sess, api, err := o.session()
	if err != nil {
		return nil, nil, nil, err
	}
	client := syncclient.NewClient(o.logger(cmd.ErrOrStderr()), api, sess.UserID)
	return sess, client, api, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format: o.Format,
		Writer: cmd.OutOrStdout(),
	}
}
