package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/backoffice-client/internal/authclient"
	"github.com/florianilch/backoffice-client/internal/backoffice"
)

// resourceInput carries the optional body and query of a resource call.
type resourceInput struct {
	args  []string
	data  json.RawMessage
	query url.Values
}

type resourceFunc func(ctx context.Context, api *backoffice.API, in resourceInput) (json.RawMessage, error)

func dataFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "data",
		Usage:    "JSON request body",
		Required: true,
	}
}

func queryFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:  "query",
		Usage: "query parameter as key=value, repeatable",
	}
}

// resourceAction builds a subcommand that calls fn with exactly len(argNames)
// positional arguments and prints the response body.
func resourceAction(name, usage string, argNames []string, flags []cli.Flag, fn resourceFunc) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: strings.Join(argNames, " "),
		Flags:     flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != len(argNames) {
				return fmt.Errorf("expected %d arguments (%s), got %d", len(argNames), strings.Join(argNames, " "), cmd.NArg())
			}

			in := resourceInput{args: cmd.Args().Slice()}
			if data := cmd.String("data"); data != "" {
				if !json.Valid([]byte(data)) {
					return errors.New("--data must be valid JSON")
				}
				in.data = json.RawMessage(data)
			}
			query, err := parseQuery(cmd.StringSlice("query"))
			if err != nil {
				return err
			}
			in.query = query

			return withClient(ctx, cmd, func(client *authclient.Client) error {
				body, err := fn(ctx, backoffice.New(client), in)
				var statusErr *authclient.StatusError
				if errors.As(err, &statusErr) {
					_, _ = cmd.Root().Writer.Write(statusErr.Body)
					return err
				}
				if err != nil {
					return err
				}
				if len(body) > 0 {
					_, err = fmt.Fprintln(cmd.Root().Writer, string(body))
				}
				return err
			})
		},
	}
}

func parseQuery(pairs []string) (url.Values, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	query := url.Values{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --query %q, want key=value", pair)
		}
		query.Add(key, value)
	}
	return query, nil
}

func productsCommand() *cli.Command {
	return &cli.Command{
		Name:  "products",
		Usage: "manage products",
		Commands: []*cli.Command{
			resourceAction("list", "list products", nil, []cli.Flag{queryFlag()},
				func(ctx context.Context, api *backoffice.API, in resourceInput) (json.RawMessage, error) {
					return api.Products.List(ctx, in.query)
				}),
			resourceAction("get", "show one product", []string{"ID"}, nil,
				func(ctx context.Context, api *backoffice.API, in resourceInput) (json.RawMessage, error) {
					return api.Products.Get(ctx, in.args[0])
				}),
			resourceAction("create", "create a product", nil, []cli.Flag{dataFlag()},
				func(ctx context.Context, api *backoffice.API, in resourceInput) (json.RawMessage, error) {
					return api.Products.Create(ctx, in.data)
				}),
			resourceAction("update", "replace a product", []string{"ID"}, []cli.Flag{dataFlag()},
				func(ctx context.Context, api *backoffice.API, in resourceInput) (json.RawMessage, error) {
					return api.Products.Update(ctx, in.args[0], in.data)
				}),
			resourceAction("delete", "delete a product", []string{"ID"}, nil,
				func(ctx context.Context, api *backoffice.API, in resourceInput) (json.RawMessage, error) {
					return nil, api.Products.Delete(ctx, in.args[0])
				}),
			resourceAction("bookings", "list product bookings", nil, []cli.Flag{queryFlag()},
				func(ctx context.Context, api *backoffice.API, in resourceInput) (json.RawMessage, error) {
					return api.Products.Bookings(ctx, in.query)
				}),
		},
	}
}

func ordersCommand() *cli.Command {
	return &cli.Command{
		Name:  "orders",
		Usage: "inspect and update orders",
		Commands: []*cli.Command{
			resourceAction("list", "list orders", nil, []cli.Flag{queryFlag()},
				func(ctx context.Context, api *backoffice.API, in resourceInput) (json.RawMessage, error) {
					return api.Orders.List(ctx, in.query)
				}),
			resourceAction("get", "show one order", []string{"ID"}, nil,
				func(ctx context.Context, api *backoffice.API, in resourceInput) (json.RawMessage, error) {
					return api.Orders.Get(ctx, in.args[0])
				}),
			resourceAction("set-status", "change an order's status", []string{"ID", "STATUS"}, nil,
				func(ctx context.Context, api *backoffice.API, in resourceInput) (json.RawMessage, error) {
					return api.Orders.UpdateStatus(ctx, in.args[0], in.args[1])
				}),
		},
	}
}

func inventoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "inventory",
		Usage: "inspect and adjust inventory sections",
		Commands: []*cli.Command{
			resourceAction("list", "list a section's items", []string{"SECTION"}, []cli.Flag{queryFlag()},
				func(ctx context.Context, api *backoffice.API, in resourceInput) (json.RawMessage, error) {
					return api.Inventory.List(ctx, in.args[0], in.query)
				}),
			resourceAction("get", "show one item", []string{"SECTION", "ID"}, nil,
				func(ctx context.Context, api *backoffice.API, in resourceInput) (json.RawMessage, error) {
					return api.Inventory.Get(ctx, in.args[0], in.args[1])
				}),
			resourceAction("adjust", "post a stock adjustment", []string{"SECTION"}, []cli.Flag{dataFlag()},
				func(ctx context.Context, api *backoffice.API, in resourceInput) (json.RawMessage, error) {
					return api.Inventory.Adjust(ctx, in.args[0], in.data)
				}),
		},
	}
}

func contactCommand() *cli.Command {
	return &cli.Command{
		Name:  "contact",
		Usage: "read and submit contact messages",
		Commands: []*cli.Command{
			resourceAction("list", "list contact messages", nil, []cli.Flag{queryFlag()},
				func(ctx context.Context, api *backoffice.API, in resourceInput) (json.RawMessage, error) {
					return api.Contact.List(ctx, in.query)
				}),
			resourceAction("create", "submit a contact message", nil, []cli.Flag{dataFlag()},
				func(ctx context.Context, api *backoffice.API, in resourceInput) (json.RawMessage, error) {
					return api.Contact.Create(ctx, in.data)
				}),
		},
	}
}

func seoPagesCommand() *cli.Command {
	return &cli.Command{
		Name:  "seo-pages",
		Usage: "manage SEO page metadata",
		Commands: []*cli.Command{
			resourceAction("list", "list SEO pages", nil, []cli.Flag{queryFlag()},
				func(ctx context.Context, api *backoffice.API, in resourceInput) (json.RawMessage, error) {
					return api.SEOPages.List(ctx, in.query)
				}),
			resourceAction("get", "show one SEO page", []string{"SLUG"}, nil,
				func(ctx context.Context, api *backoffice.API, in resourceInput) (json.RawMessage, error) {
					return api.SEOPages.Get(ctx, in.args[0])
				}),
			resourceAction("upsert", "create or replace an SEO page", []string{"SLUG"}, []cli.Flag{dataFlag()},
				func(ctx context.Context, api *backoffice.API, in resourceInput) (json.RawMessage, error) {
					return api.SEOPages.Upsert(ctx, in.args[0], in.data)
				}),
			resourceAction("delete", "delete an SEO page", []string{"SLUG"}, nil,
				func(ctx context.Context, api *backoffice.API, in resourceInput) (json.RawMessage, error) {
					return nil, api.SEOPages.Delete(ctx, in.args[0])
				}),
		},
	}
}
