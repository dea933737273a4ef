package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/streamwatch/streamwatch/client/v1"
	"github.com/urfave/cli/v2"
)

// These variables are populated via the Go linker.
var (
	version string = "v0.1"
	commit  string
	branch  string
)

const defaultURL = "http://localhost:9192"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:                 "streamwatch",
		Usage:                "CLI for managing streams and alert conditions on a Streamwatch server",
		Version:              fmt.Sprintf("%s (git: %s %s)", version, branch, commit),
		EnableBashCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Usage:   "The URL of the Streamwatch server",
				Value:   defaultURL,
				EnvVars: []string{"STREAMWATCH_URL"},
			},
			&cli.BoolFlag{
				Name:    "skipVerify",
				Usage:   "Disable SSL verification (note this is insecure)",
				EnvVars: []string{"STREAMWATCH_UNSAFE_SSL"},
			},
		},
		Before: withClient(),
		Commands: []*cli.Command{
			newPingCmd(),
			newLogLevelCmd(),
			newStreamCmd(),
			newConditionCmd(),
			newTriggerCmd(),
			newStorageCmd(),
		},
	}
}

func withClient() cli.BeforeFunc {
	return func(ctx *cli.Context) error {
		c, err := client.New(client.Config{
			URL:                ctx.String("url"),
			InsecureSkipVerify: ctx.Bool("skipVerify"),
			Credentials:        credentialsFromEnv(),
		})
		if err != nil {
			return err
		}
		ctx.App.Metadata["client"] = c
		return nil
	}
}

// credentialsFromEnv reads optional credentials the same way the server
// env overrides work, so scripted use needs no flags.
func credentialsFromEnv() *client.Credentials {
	if token := os.Getenv("STREAMWATCH_TOKEN"); token != "" {
		return &client.Credentials{
			Method: client.BearerAuthentication,
			Token:  token,
		}
	}
	if username := os.Getenv("STREAMWATCH_USERNAME"); username != "" {
		return &client.Credentials{
			Method:   client.UserAuthentication,
			Username: username,
			Password: os.Getenv("STREAMWATCH_PASSWORD"),
		}
	}
	return nil
}

func getClient(ctx *cli.Context) *client.Client {
	c, ok := ctx.App.Metadata["client"].(*client.Client)
	if !ok {
		panic("missing client")
	}
	return c
}

func commonFlags() []cli.Flag {
	return []cli.Flag{&cli.BoolFlag{
		Name:  "json",
		Usage: "Output data as JSON",
	}}
}

func printJSON(ctx *cli.Context, v interface{}) error {
	enc := json.NewEncoder(ctx.App.Writer)
	enc.SetIndent("", "    ")
	return enc.Encode(v)
}

func newPingCmd() *cli.Command {
	return &cli.Command{
		Name:  "ping",
		Usage: "Check the connection to the Streamwatch server",
		Action: func(ctx *cli.Context) error {
			took, version, err := getClient(ctx).Ping()
			if err != nil {
				return err
			}
			fmt.Fprintf(ctx.App.Writer, "pong: version %s in %s\n", version, took.Round(time.Millisecond))
			return nil
		},
	}
}

func newLogLevelCmd() *cli.Command {
	return &cli.Command{
		Name:      "level",
		Usage:     "Set the logging level on the server",
		ArgsUsage: "[DEBUG|INFO|WARN|ERROR]",
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 1 {
				return fmt.Errorf("expected a single log level argument")
			}
			return getClient(ctx).LogLevel(ctx.Args().First())
		},
	}
}

func newStreamCmd() *cli.Command {
	return &cli.Command{
		Name:  "stream",
		Usage: "Stream management commands",
		Subcommands: []*cli.Command{
			newStreamListCmd(),
			newStreamCreateCmd(),
			newStreamUpdateCmd(),
			newStreamDeleteCmd(),
		},
	}
}

func newStreamListCmd() *cli.Command {
	var opts client.ListStreamsOptions
	flags := append(commonFlags(), []cli.Flag{
		&cli.StringFlag{
			Name:        "pattern",
			Usage:       "glob pattern matched against stream ids",
			Destination: &opts.Pattern,
		},
		&cli.IntFlag{
			Name:        "offset",
			Usage:       "offset into the result set",
			Destination: &opts.Offset,
		},
		&cli.IntFlag{
			Name:        "limit",
			Usage:       "maximum number of streams to return",
			Destination: &opts.Limit,
			Value:       100,
		},
	}...)
	return &cli.Command{
		Name:    "list",
		Usage:   "List streams",
		Aliases: []string{"ls"},
		Flags:   flags,
		Action: func(ctx *cli.Context) error {
			streams, err := getClient(ctx).ListStreams(&opts)
			if err != nil {
				return err
			}
			if ctx.Bool("json") {
				return printJSON(ctx, streams)
			}
			w := tabwriter.NewWriter(ctx.App.Writer, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTitle\tDisabled\tCreated")
			for _, s := range streams {
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", s.ID, s.Title, s.Disabled, s.CreatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
}

func newStreamCreateCmd() *cli.Command {
	var opts client.CreateStreamOptions
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "title",
			Usage:       "title of the stream (required)",
			Destination: &opts.Title,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "description",
			Usage:       "description of the stream",
			Destination: &opts.Description,
		},
	}
	return &cli.Command{
		Name:  "create",
		Usage: "Register a new stream",
		Flags: flags,
		Action: func(ctx *cli.Context) error {
			stream, err := getClient(ctx).CreateStream(opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(ctx.App.Writer, stream.ID)
			return nil
		},
	}
}

func newStreamUpdateCmd() *cli.Command {
	var id string
	var opts client.UpdateStreamOptions
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "id",
			Usage:       "stream ID (required)",
			Aliases:     []string{"i"},
			Destination: &id,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "title",
			Usage:       "new title of the stream (required)",
			Destination: &opts.Title,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "description",
			Usage:       "new description of the stream",
			Destination: &opts.Description,
		},
		&cli.BoolFlag{
			Name:        "disabled",
			Usage:       "pause alerting on the stream",
			Destination: &opts.Disabled,
		},
	}
	return &cli.Command{
		Name:  "update",
		Usage: "Update title, description or the disabled flag of a stream",
		Flags: flags,
		Action: func(ctx *cli.Context) error {
			c := getClient(ctx)
			_, err := c.UpdateStream(c.StreamLink(id), opts)
			return err
		},
	}
}

func newStreamDeleteCmd() *cli.Command {
	var id string
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "id",
			Usage:       "stream ID (required)",
			Aliases:     []string{"i"},
			Destination: &id,
			Required:    true,
		},
	}
	return &cli.Command{
		Name:  "delete",
		Usage: "Delete a stream and all its alert conditions",
		Flags: flags,
		Action: func(ctx *cli.Context) error {
			c := getClient(ctx)
			return c.DeleteStream(c.StreamLink(id))
		},
	}
}

func newConditionCmd() *cli.Command {
	return &cli.Command{
		Name:    "condition",
		Usage:   "Alert condition management commands",
		Aliases: []string{"cond"},
		Subcommands: []*cli.Command{
			newConditionListCmd(),
			newConditionCreateCmd(),
			newConditionUpdateCmd(),
			newConditionDeleteCmd(),
		},
	}
}

// parseParameters decodes the -param key=value pairs into the raw
// parameter map of a condition. Values are passed through as strings,
// whole numbers become numbers since the API rejects strings in
// numeric parameters.
func parseParameters(pairs []string) (map[string]interface{}, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", pair)
		}
		var n json.Number
		if err := json.Unmarshal([]byte(kv[1]), &n); err == nil {
			if i, err := n.Int64(); err == nil {
				params[kv[0]] = i
				continue
			}
		}
		params[kv[0]] = kv[1]
	}
	return params, nil
}

func newConditionListCmd() *cli.Command {
	var streamID string
	flags := append(commonFlags(), []cli.Flag{
		&cli.StringFlag{
			Name:        "stream",
			Usage:       "stream ID (required)",
			Aliases:     []string{"s"},
			Destination: &streamID,
			Required:    true,
		},
	}...)
	return &cli.Command{
		Name:    "list",
		Usage:   "List the alert conditions of a stream",
		Aliases: []string{"ls"},
		Flags:   flags,
		Action: func(ctx *cli.Context) error {
			conditions, err := getClient(ctx).ListConditions(streamID)
			if err != nil {
				return err
			}
			if ctx.Bool("json") {
				return printJSON(ctx, conditions)
			}
			w := tabwriter.NewWriter(ctx.App.Writer, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tType\tTitle\tIn Grace Period")
			for _, c := range conditions.Conditions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", c.ID, c.Type, c.Title, c.InGracePeriod)
			}
			return w.Flush()
		},
	}
}

func newConditionCreateCmd() *cli.Command {
	var streamID string
	var opts client.CreateConditionOptions
	var params cli.StringSlice
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "stream",
			Usage:       "stream ID (required)",
			Aliases:     []string{"s"},
			Destination: &streamID,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "type",
			Usage:       "condition type (required)",
			Aliases:     []string{"t"},
			Destination: &opts.Type,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "title",
			Usage:       "title of the condition",
			Destination: &opts.Title,
		},
		&cli.StringSliceFlag{
			Name:        "param",
			Usage:       "condition parameter as key=value, repeatable",
			Aliases:     []string{"p"},
			Destination: &params,
		},
	}
	return &cli.Command{
		Name:  "create",
		Usage: "Create an alert condition on a stream",
		Flags: flags,
		Action: func(ctx *cli.Context) error {
			var err error
			opts.Parameters, err = parseParameters(params.Value())
			if err != nil {
				return err
			}
			id, err := getClient(ctx).CreateCondition(streamID, opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(ctx.App.Writer, id)
			return nil
		},
	}
}

func newConditionUpdateCmd() *cli.Command {
	var streamID, id string
	var opts client.UpdateConditionOptions
	var params cli.StringSlice
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "stream",
			Usage:       "stream ID (required)",
			Aliases:     []string{"s"},
			Destination: &streamID,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "id",
			Usage:       "condition ID (required)",
			Aliases:     []string{"i"},
			Destination: &id,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "type",
			Usage:       "condition type, must match the existing type (required)",
			Aliases:     []string{"t"},
			Destination: &opts.Type,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "title",
			Usage:       "new title of the condition",
			Destination: &opts.Title,
		},
		&cli.StringSliceFlag{
			Name:        "param",
			Usage:       "condition parameter as key=value, repeatable",
			Aliases:     []string{"p"},
			Destination: &params,
		},
	}
	return &cli.Command{
		Name:  "update",
		Usage: "Replace title and parameters of an alert condition",
		Flags: flags,
		Action: func(ctx *cli.Context) error {
			var err error
			opts.Parameters, err = parseParameters(params.Value())
			if err != nil {
				return err
			}
			c := getClient(ctx)
			return c.UpdateCondition(c.ConditionLink(streamID, id), opts)
		},
	}
}

func newConditionDeleteCmd() *cli.Command {
	var streamID, id string
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "stream",
			Usage:       "stream ID (required)",
			Aliases:     []string{"s"},
			Destination: &streamID,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "id",
			Usage:       "condition ID (required)",
			Aliases:     []string{"i"},
			Destination: &id,
			Required:    true,
		},
	}
	return &cli.Command{
		Name:  "delete",
		Usage: "Delete an alert condition and its trigger history",
		Flags: flags,
		Action: func(ctx *cli.Context) error {
			c := getClient(ctx)
			return c.DeleteCondition(c.ConditionLink(streamID, id))
		},
	}
}

func newTriggerCmd() *cli.Command {
	return &cli.Command{
		Name:  "trigger",
		Usage: "Trigger history commands",
		Subcommands: []*cli.Command{
			newTriggerListCmd(),
			newTriggerRecordCmd(),
		},
	}
}

func newTriggerListCmd() *cli.Command {
	var streamID, conditionID string
	var opts client.ListTriggersOptions
	flags := append(commonFlags(), []cli.Flag{
		&cli.StringFlag{
			Name:        "stream",
			Usage:       "stream ID (required)",
			Aliases:     []string{"s"},
			Destination: &streamID,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "condition",
			Usage:       "condition ID (required)",
			Aliases:     []string{"c"},
			Destination: &conditionID,
			Required:    true,
		},
		&cli.IntFlag{
			Name:        "offset",
			Usage:       "offset into the result set",
			Destination: &opts.Offset,
		},
		&cli.IntFlag{
			Name:        "limit",
			Usage:       "maximum number of triggers to return",
			Destination: &opts.Limit,
			Value:       100,
		},
	}...)
	return &cli.Command{
		Name:    "list",
		Usage:   "List the recorded firings of an alert condition",
		Aliases: []string{"ls"},
		Flags:   flags,
		Action: func(ctx *cli.Context) error {
			triggers, err := getClient(ctx).ListTriggers(streamID, conditionID, &opts)
			if err != nil {
				return err
			}
			if ctx.Bool("json") {
				return printJSON(ctx, triggers)
			}
			w := tabwriter.NewWriter(ctx.App.Writer, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTriggered At\tDescription")
			for _, tr := range triggers {
				fmt.Fprintf(w, "%s\t%s\t%s\n", tr.ID, tr.TriggeredAt.Format(time.RFC3339), tr.Description)
			}
			return w.Flush()
		},
	}
}

func newTriggerRecordCmd() *cli.Command {
	var streamID, conditionID string
	var opts client.RecordTriggerOptions
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "stream",
			Usage:       "stream ID (required)",
			Aliases:     []string{"s"},
			Destination: &streamID,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "condition",
			Usage:       "condition ID (required)",
			Aliases:     []string{"c"},
			Destination: &conditionID,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "description",
			Usage:       "description of the firing",
			Aliases:     []string{"d"},
			Destination: &opts.Description,
		},
	}
	return &cli.Command{
		Name:  "record",
		Usage: "Record a firing of an alert condition",
		Flags: flags,
		Action: func(ctx *cli.Context) error {
			trigger, err := getClient(ctx).RecordTrigger(streamID, conditionID, opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(ctx.App.Writer, trigger.ID)
			return nil
		},
	}
}

func newStorageCmd() *cli.Command {
	return &cli.Command{
		Name:  "storage",
		Usage: "Storage maintenance commands",
		Subcommands: []*cli.Command{
			newStorageListCmd(),
			newStorageRebuildCmd(),
		},
	}
}

func newStorageListCmd() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Usage:   "List the storage stores of the server",
		Aliases: []string{"ls"},
		Flags:   commonFlags(),
		Action: func(ctx *cli.Context) error {
			list, err := getClient(ctx).ListStorage()
			if err != nil {
				return err
			}
			if ctx.Bool("json") {
				return printJSON(ctx, list)
			}
			for _, s := range list.Storage {
				fmt.Fprintln(ctx.App.Writer, s.Name)
			}
			return nil
		},
	}
}

func newStorageRebuildCmd() *cli.Command {
	var name string
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "name",
			Usage:       "name of the store to rebuild (required)",
			Aliases:     []string{"n"},
			Destination: &name,
			Required:    true,
		},
	}
	return &cli.Command{
		Name:  "rebuild",
		Usage: "Rebuild the indexes of a storage store",
		Flags: flags,
		Action: func(ctx *cli.Context) error {
			c := getClient(ctx)
			return c.DoStorageAction(c.StorageLink(name), client.StorageActionOptions{
				Action: client.StorageRebuild,
			})
		},
	}
}
