package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/AmmannChristian/go-sessionx/authapi"
	"github.com/AmmannChristian/go-sessionx/httpclient"
)

// LoginCommand exchanges email and password for a credential and stores it.
func LoginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "log in and store the issued credential",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "account email", Required: true},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "account password", EnvVars: []string{"SESSIONX_PASSWORD"}, Required: true},
		},
		Action: withSession(func(c *cli.Context, s *session) error {
			token, err := s.auth.Login(c.Context, authapi.LoginRequest{
				Email:    c.String("email"),
				Password: c.String("password"),
			})
			if err != nil {
				return err
			}

			if token.Expiry.IsZero() {
				fmt.Fprintln(s.out, "logged in")
				return nil
			}
			fmt.Fprintf(s.out, "logged in, credential expires %s\n", token.Expiry.Format("2006-01-02 15:04:05 MST"))
			return nil
		}),
	}
}

// RegisterCommand creates an account.
func RegisterCommand() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "create an account",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "display name", Required: true},
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "account email", Required: true},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "account password", EnvVars: []string{"SESSIONX_PASSWORD"}, Required: true},
		},
		Action: withSession(func(c *cli.Context, s *session) error {
			if err := s.auth.Register(c.Context, authapi.RegisterRequest{
				Name:     c.String("name"),
				Email:    c.String("email"),
				Password: c.String("password"),
			}); err != nil {
				return err
			}
			fmt.Fprintln(s.out, "registered, run login to start a session")
			return nil
		}),
	}
}

// GetCommand fetches one or more paths concurrently.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "GET one or more paths and print their envelopes",
		ArgsUsage: "PATH...",
		Action: withSession(func(c *cli.Context, s *session) error {
			paths := c.Args().Slice()
			if len(paths) == 0 {
				return errors.New("at least one PATH is required")
			}

			results := make([]*httpclient.Response, len(paths))
			g, ctx := errgroup.WithContext(c.Context)
			for i, path := range paths {
				g.Go(func() error {
					resp, err := s.client.Get(ctx, path)
					if err != nil {
						return err
					}
					results[i] = resp
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			for _, resp := range results {
				if err := s.print(resp); err != nil {
					return err
				}
			}
			return nil
		}),
	}
}

// PostCommand sends a JSON body to a path.
func PostCommand() *cli.Command {
	return &cli.Command{
		Name:      "post",
		Usage:     "POST a JSON body and print the envelope",
		ArgsUsage: "PATH",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "data", Aliases: []string{"d"}, Usage: "JSON request body", Value: "{}"},
		},
		Action: withSession(func(c *cli.Context, s *session) error {
			path, err := singlePath(c)
			if err != nil {
				return err
			}

			data := c.String("data")
			if !json.Valid([]byte(data)) {
				return fmt.Errorf("--data is not valid JSON: %q", data)
			}

			resp, err := s.client.Post(c.Context, path, json.RawMessage(data))
			if err != nil {
				return err
			}
			return s.print(resp)
		}),
	}
}

// DeleteCommand deletes a resource.
func DeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "DELETE a path and print the envelope",
		ArgsUsage: "PATH",
		Action: withSession(func(c *cli.Context, s *session) error {
			path, err := singlePath(c)
			if err != nil {
				return err
			}

			resp, err := s.client.Delete(c.Context, path)
			if err != nil {
				return err
			}
			return s.print(resp)
		}),
	}
}

// ProfileCommand prints the logged-in user.
func ProfileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "show the profile of the logged-in user",
		Action: withSession(func(c *cli.Context, s *session) error {
			user, err := s.auth.Profile(c.Context)
			if err != nil {
				return err
			}
			fmt.Fprintf(s.out, "%d\t%s\t%s\n", user.ID, user.Email, user.Name)
			return nil
		}),
	}
}

// LogoutCommand clears the stored credential.
func LogoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "clear the stored credential",
		Action: withSession(func(c *cli.Context, s *session) error {
			if err := s.auth.Logout(c.Context); err != nil {
				return err
			}
			fmt.Fprintln(s.out, "logged out")
			return nil
		}),
	}
}

// withSession opens a session around action and closes it afterwards.
func withSession(action func(*cli.Context, *session) error) cli.ActionFunc {
	return func(c *cli.Context) (err error) {
		s, err := openSession(c)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := s.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()

		return action(c, s)
	}
}

func singlePath(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", errors.New("exactly one PATH is required")
	}
	return c.Args().First(), nil
}

// print writes the response envelope, or the raw body when there is none.
func (s *session) print(resp *httpclient.Response) error {
	if resp.Envelope == nil {
		_, err := fmt.Fprintln(s.out, string(resp.Body))
		return err
	}

	out, err := json.MarshalIndent(resp.Envelope, "", "  ")
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	_, err = fmt.Fprintln(s.out, string(out))
	return err
}
