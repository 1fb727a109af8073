package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/furetosan/cjdnsadmin/internal/bencode"
	"github.com/furetosan/cjdnsadmin/internal/output"
)

func callCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "call FUNCTION [key=value ...]",
		Short: "Invoke any admin function",
		Long: `Invoke an admin function by name with key=value arguments. Values that
parse as integers are sent as bencode ints; everything else is sent as a
string.

Examples:
  cjdnsadmin call ping
  cjdnsadmin call Admin_availableFunctions page=0
  cjdnsadmin call InterfaceController_peerStats page=0`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			callArgs, err := parseCallArgs(args[1:])
			if err != nil {
				return err
			}
			n, err := selectedNode(cmd)
			if err != nil {
				return err
			}
			client, err := dialNode(n, newLogger(cmd))
			if err != nil {
				return err
			}
			defer client.Close()

			res, err := client.Call(args[0], callArgs).Wait(cmd.Context())
			if err != nil {
				return err
			}
			if !res.Ok() {
				return fmt.Errorf("call %s on %s: %w", args[0], n.Name, res.Err)
			}
			if raw {
				os.Stdout.Write(res.Raw)
				fmt.Println()
				return nil
			}
			output.WriteDict(os.Stdout, res.Response)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the raw bencoded response")
	return cmd
}

// parseCallArgs turns key=value pairs into the call's args dict.
func parseCallArgs(pairs []string) (*bencode.Dict, error) {
	args := bencode.NewDict()
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("argument %q is not key=value", pair)
		}
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			args.Set(key, bencode.Int(n))
		} else {
			args.Set(key, bencode.String(value))
		}
	}
	return args, nil
}
