package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/adanyl0v/taskdock/internal/syncclient"
)

func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return authenticate(cmd, rootOpts, func(ctx context.Context, api *syncclient.API) (*syncclient.AuthResult, error) {
				return api.Register(ctx, name, email, password)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return authenticate(cmd, rootOpts, func(ctx context.Context, api *syncclient.API) (*syncclient.AuthResult, error) {
				return api.Login(ctx, email, password)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := rootOpts.sessionPath()
			if err != nil {
				return err
			}
			err = RemoveSession(path)
			if err != nil {
				return err
			}
			return rootOpts.formatter(cmd).Message("logged out")
		},
	}
}

type authFunc func(ctx context.Context, api *syncclient.API) (*syncclient.AuthResult, error)

func authenticate(cmd *cobra.Command, rootOpts *RootOptions, fn authFunc) error {
	api, err := syncclient.NewAPI(rootOpts.Server, "")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	res, err := fn(ctx, api)
	if err != nil {
		return err
	}
	if res.AccessToken == "" {
		return errors.New("server returned no access token")
	}

	path, err := rootOpts.sessionPath()
	if err != nil {
		return err
	}
	err = SaveSession(path, &Session{
		Server:    rootOpts.Server,
		UserID:    res.User.ID,
		Name:      res.User.Name,
		Email:     res.User.Email,
		Token:     res.AccessToken,
		ExpiresAt: res.ExpiresAt,
	})
	if err != nil {
		return err
	}
	return rootOpts.formatter(cmd).Message("logged in as %s <%s>", res.User.Name, res.User.Email)
}

func NewUsersCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "users <query>",
		Short: "Find users by name, to pick an assignee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, api, err := rootOpts.session()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			users, err := api.SearchUsers(ctx, args[0])
			if err != nil {
				return err
			}

			out := rootOpts.formatter(cmd)
			if out.Format == "json" {
				return out.JSON(users)
			}
			if len(users) == 0 {
				return out.Message("no users match %q", args[0])
			}
			for _, u := range users {
				err = out.Message("%s\t%s", u.ID, u.Name)
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
}
