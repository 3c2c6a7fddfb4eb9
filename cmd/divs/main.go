package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"github.com/divs-identity/divs-agent/api/clients"
	"github.com/divs-identity/divs-agent/api/ownerhandler"
	"github.com/divs-identity/divs-agent/cmd/flags"
	"github.com/divs-identity/divs-agent/cryptoutils"
)

var flagRecordFile = &cli.StringFlag{
	Name:     "file",
	Aliases:  []string{"f"},
	Required: true,
	Usage:    "JSON identity record to upload, - for stdin",
}

var flagStatus = &cli.StringFlag{
	Name:  "status",
	Value: "all",
	Usage: "only list requests in this status: all, pending, approved, rejected",
}

var flagOwner = &cli.StringFlag{
	Name:     "owner",
	Required: true,
	Usage:    "address of the wallet whose data is requested",
}

var flagFields = &cli.StringSliceFlag{
	Name:     "field",
	Required: true,
	Usage:    "field to request; repeat for several (see 'divs fields')",
}

func main() {
	app := &cli.App{
		Name:  "divs",
		Usage: "Talk to a running divs-agent",
		Flags: []cli.Flag{flags.AgentUrlFlag},
		Commands: []*cli.Command{
			{
				Name:  "requests",
				Usage: "list requests addressed to the wallet",
				Action: func(cCtx *cli.Context) error {
					snapshot, err := client(cCtx).OwnerRequests(cCtx.Context)
					if err != nil {
						return err
					}
					return printJSON(snapshot)
				},
			},
			{
				Name:      "approve",
				Usage:     "share the requested fields and approve the request",
				ArgsUsage: "<request id>",
				Action: func(cCtx *cli.Context) error {
					id, err := ownerhandler.ParseRequestID(cCtx.Args().First())
					if err != nil {
						return err
					}
					outcome, err := client(cCtx).Approve(cCtx.Context, id)
					if err != nil {
						return err
					}
					return printJSON(outcome)
				},
			},
			{
				Name:      "reject",
				Usage:     "reject the request",
				ArgsUsage: "<request id>",
				Action: func(cCtx *cli.Context) error {
					id, err := ownerhandler.ParseRequestID(cCtx.Args().First())
					if err != nil {
						return err
					}
					outcome, err := client(cCtx).Reject(cCtx.Context, id)
					if err != nil {
						return err
					}
					return printJSON(outcome)
				},
			},
			{
				Name:  "request",
				Usage: "requests made by the wallet",
				Subcommands: []*cli.Command{
					{
						Name:  "create",
						Usage: "ask a registered user for some of their fields",
						Flags: []cli.Flag{flagOwner, flagFields},
						Action: func(cCtx *cli.Context) error {
							raw := cCtx.String(flagOwner.Name)
							if !ethcommon.IsHexAddress(raw) {
								return fmt.Errorf("invalid owner address %q", raw)
							}
							resp, err := client(cCtx).CreateRequest(cCtx.Context, ethcommon.HexToAddress(raw), cCtx.StringSlice(flagFields.Name))
							if err != nil {
								return err
							}
							return printJSON(resp)
						},
					},
					{
						Name:  "list",
						Usage: "list requests made by the wallet",
						Flags: []cli.Flag{flagStatus},
						Action: func(cCtx *cli.Context) error {
							resp, err := client(cCtx).Requests(cCtx.Context, cCtx.String(flagStatus.Name))
							if err != nil {
								return err
							}
							return printJSON(resp)
						},
					},
					{
						Name:      "data",
						Usage:     "decrypt the data shared for an approved request",
						ArgsUsage: "<request id>",
						Action: func(cCtx *cli.Context) error {
							id, err := ownerhandler.ParseRequestID(cCtx.Args().First())
							if err != nil {
								return err
							}
							data, err := client(cCtx).RequestData(cCtx.Context, id)
							if err != nil {
								return err
							}
							return printJSON(data)
						},
					},
				},
			},
			{
				Name:  "identity",
				Usage: "the wallet's own identity record",
				Subcommands: []*cli.Command{
					{
						Name:  "show",
						Usage: "show the registry entry",
						Action: func(cCtx *cli.Context) error {
							profile, err := client(cCtx).Profile(cCtx.Context)
							if err != nil {
								return err
							}
							return printJSON(profile)
						},
					},
					{
						Name:  "record",
						Usage: "fetch and decrypt the stored record",
						Action: func(cCtx *cli.Context) error {
							record, err := client(cCtx).Record(cCtx.Context)
							if err != nil {
								return err
							}
							return printJSON(record)
						},
					},
					{
						Name:  "register",
						Usage: "encrypt, pin and register a record",
						Flags: []cli.Flag{flagRecordFile},
						Action: func(cCtx *cli.Context) error {
							record, err := readRecord(cCtx.String(flagRecordFile.Name))
							if err != nil {
								return err
							}
							reg, err := client(cCtx).Register(cCtx.Context, record)
							if err != nil {
								return err
							}
							return printJSON(reg)
						},
					},
					{
						Name:  "update",
						Usage: "replace the registered record",
						Flags: []cli.Flag{flagRecordFile},
						Action: func(cCtx *cli.Context) error {
							record, err := readRecord(cCtx.String(flagRecordFile.Name))
							if err != nil {
								return err
							}
							reg, err := client(cCtx).Update(cCtx.Context, record)
							if err != nil {
								return err
							}
							return printJSON(reg)
						},
					},
				},
			},
			{
				Name:  "fields",
				Usage: "list the fields a request can ask for",
				Action: func(cCtx *cli.Context) error {
					fields, err := client(cCtx).Fields(cCtx.Context)
					if err != nil {
						return err
					}
					return printJSON(fields)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func client(cCtx *cli.Context) *clients.AgentClient {
	return clients.NewAgentClient(cCtx.String(flags.AgentUrlFlag.Name))
}

func readRecord(path string) (cryptoutils.IdentityData, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}
	return cryptoutils.ParseIdentityData(data)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
