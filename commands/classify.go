package commands

import (
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/activecm/flowguard/pkg/classify"
	"github.com/activecm/flowguard/pkg/flow"
	"github.com/activecm/flowguard/resources"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

func init() {
	command := cli.Command{
		Name:      "classify",
		Usage:     "Classify a single flow record",
		ArgsUsage: "[JSON record | -]",
		Description: "The record is read from the JSON argument, from standard input when the\n" +
			"   argument is -, or assembled from the field flags. Flags override fields of a JSON record.",
		Flags: []cli.Flag{
			configFlag,
			humanFlag,
			delimFlag,
			cli.StringFlag{Name: "proto", Usage: "transport protocol, e.g. tcp"},
			cli.StringFlag{Name: "conn-state", Usage: "Zeek connection state, e.g. SF"},
			cli.StringFlag{Name: "history", Usage: "Zeek history string, e.g. ShADadfF"},
			cli.StringFlag{Name: "service", Usage: "detected application protocol"},
			cli.Float64Flag{Name: "duration", Usage: "connection duration in seconds"},
			cli.Int64Flag{Name: "orig-pkts", Usage: "packets sent by the originator"},
			cli.Int64Flag{Name: "orig-bytes", Usage: "payload bytes sent by the originator"},
			cli.Int64Flag{Name: "orig-ip-bytes", Usage: "IP level bytes sent by the originator"},
			cli.Int64Flag{Name: "resp-bytes", Usage: "payload bytes sent by the responder"},
		},
		Action: classifyRecord,
	}

	bootstrapCommands(command)
}

func classifyRecord(c *cli.Context) error {
	rec, err := recordFromContext(c)
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}

	res := resources.InitResources(c.String("config"))
	defer res.Close()

	result, err := res.Service.Classify(rec)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("%s: %s", classify.KindOf(err), err.Error()), -1)
	}

	if c.Bool("human-readable") {
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Field", "Value"})
		table.AppendBulk(recordRows(rec))
		table.Append([]string{"label", result.Label})
		table.Append([]string{"confidence", p(result.Confidence)})
		table.Append([]string{"malicious", fmt.Sprint(result.Malicious)})
		table.Render()
		return nil
	}

	delim := c.String("delimiter")
	fmt.Println(strings.Join([]string{"Label", "Confidence", "Malicious"}, delim))
	fmt.Println(strings.Join([]string{result.Label, p(result.Confidence), fmt.Sprint(result.Malicious)}, delim))
	return nil
}

// recordFromContext builds the flow record described by the command line
func recordFromContext(c *cli.Context) (*flow.Record, error) {
	rec := new(flow.Record)

	if arg := c.Args().First(); arg != "" {
		data := []byte(arg)
		if arg == "-" {
			var err error
			data, err = ioutil.ReadAll(os.Stdin)
			if err != nil {
				return nil, fmt.Errorf("could not read the record from standard input: %w", err)
			}
		}
		var err error
		rec, err = flow.Decode(data)
		if err != nil {
			return nil, err
		}
	}

	if c.IsSet("proto") {
		rec.Protocol = flow.String(c.String("proto"))
	}
	if c.IsSet("conn-state") {
		rec.ConnState = flow.String(c.String("conn-state"))
	}
	if c.IsSet("history") {
		rec.History = flow.String(c.String("history"))
	}
	if c.IsSet("service") {
		rec.Service = flow.String(c.String("service"))
	}
	if c.IsSet("duration") {
		rec.Duration = flow.Float(c.Float64("duration"))
	}
	if c.IsSet("orig-pkts") {
		rec.OrigPkts = flow.Int(c.Int64("orig-pkts"))
	}
	if c.IsSet("orig-bytes") {
		rec.OrigBytes = flow.Int(c.Int64("orig-bytes"))
	}
	if c.IsSet("orig-ip-bytes") {
		rec.OrigIPBytes = flow.Int(c.Int64("orig-ip-bytes"))
	}
	if c.IsSet("resp-bytes") {
		rec.RespBytes = flow.Int(c.Int64("resp-bytes"))
	}
	return rec, nil
}

// recordRows lists the classifier inputs of rec
func recordRows(rec *flow.Record) [][]string {
	return [][]string{
		{"proto", optionalString(rec.Protocol)},
		{"conn_state", optionalString(rec.ConnState)},
		{"history", optionalString(rec.History)},
		{"service", optionalString(rec.Service)},
		{"duration", optionalFloat(rec.Duration)},
		{"orig_pkts", optionalInt(rec.OrigPkts)},
		{"orig_bytes", optionalInt(rec.OrigBytes)},
		{"orig_ip_bytes", optionalInt(rec.OrigIPBytes)},
		{"resp_bytes", optionalInt(rec.RespBytes)},
	}
}
