package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/florianilch/backoffice-client/internal/authclient"
	"github.com/florianilch/backoffice-client/internal/tokensource"
)

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "store an access token issued by the back office",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "token",
				Usage: "access token (prompted for when omitted)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			token := cmd.String("token")
			if token == "" {
				var err error
				if token, err = promptToken(cmd.Root().Reader, cmd.Root().ErrWriter); err != nil {
					return err
				}
			}
			return withClient(ctx, cmd, func(client *authclient.Client) error {
				if err := client.Session().Login(ctx, token); err != nil {
					return err
				}
				fmt.Fprintln(cmd.Root().Writer, "logged in")
				return nil
			})
		},
	}
}

// promptToken reads a token without echo when in is a terminal, otherwise
// the first line of in.
func promptToken(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Access token: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("reading access token: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading access token: %w", err)
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", errors.New("no access token provided")
	}
	return token, nil
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "forget the stored access token",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withClient(ctx, cmd, func(client *authclient.Client) error {
				if err := client.Session().Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.Root().Writer, "logged out")
				return nil
			})
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "show whether an access token is stored and when it expires",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withClient(ctx, cmd, func(client *authclient.Client) error {
				out := cmd.Root().Writer
				token, ok, err := client.Session().AccessToken(ctx)
				if err != nil {
					return err
				}

				fmt.Fprintf(out, "upstream:   %s\n", client.BaseURL().Redacted())
				if !ok {
					fmt.Fprintln(out, "session:    logged out")
					return nil
				}
				fmt.Fprintln(out, "session:    logged in")

				expiry, known := tokensource.Expiry(token)
				if !known {
					fmt.Fprintln(out, "expires:    unknown")
					return nil
				}
				remaining := time.Until(expiry).Round(time.Second)
				if remaining <= 0 {
					fmt.Fprintf(out, "expires:    %s (expired, refreshed on next request)\n", expiry.Format(time.RFC3339))
					return nil
				}
				fmt.Fprintf(out, "expires:    %s (in %s)\n", expiry.Format(time.RFC3339), remaining)
				return nil
			})
		},
	}
}

func requestCommand() *cli.Command {
	return &cli.Command{
		Name:      "request",
		Usage:     "send one authenticated request and print the response body",
		ArgsUsage: "METHOD PATH",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "data",
				Usage: "JSON request body",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 2 {
				return fmt.Errorf("expected METHOD PATH, got %d arguments", cmd.NArg())
			}
			method := strings.ToUpper(cmd.Args().Get(0))
			path := cmd.Args().Get(1)

			var body any
			if data := cmd.String("data"); data != "" {
				if !json.Valid([]byte(data)) {
					return errors.New("--data must be valid JSON")
				}
				body = []byte(data)
			}

			return withClient(ctx, cmd, func(client *authclient.Client) error {
				resp, err := client.Request(ctx, method, path, body)
				var statusErr *authclient.StatusError
				if errors.As(err, &statusErr) {
					_, _ = cmd.Root().Writer.Write(statusErr.Body)
					return err
				}
				if err != nil {
					return err
				}
				_, err = cmd.Root().Writer.Write(resp.Body)
				return err
			})
		},
	}
}
