package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	berr "github.com/next-trace/scg-rpc-proxy/contract/errors"
	"github.com/next-trace/scg-rpc-proxy/contract/rpc"
	"github.com/next-trace/scg-rpc-proxy/lifecycle"
	"github.com/next-trace/scg-rpc-proxy/operations"
	"github.com/next-trace/scg-rpc-proxy/proxy"
)

type callFlags struct {
	timeout time.Duration
	headers map[string]string
}

func (f *callFlags) register(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "per-call reply timeout (0 uses default-timeout)")
	cmd.Flags().StringToStringVar(&f.headers, "header", nil, "extra frame header key=value")
}

func (f *callFlags) options() []proxy.CallOption {
	var opts []proxy.CallOption
	if f.timeout > 0 {
		opts = append(opts, proxy.WithTimeout(f.timeout))
	}

	if len(f.headers) > 0 {
		opts = append(opts, proxy.WithHeaders(f.headers))
	}

	return opts
}

func newCallCommand(a *app) *cobra.Command {
	var flags callFlags

	cmd := &cobra.Command{
		Use:   "call <destination> <operation> [json]",
		Short: "Send one request and print the correlated reply body",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, op, payload, err := parseInvocation(args)
			if err != nil {
				return err
			}

			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			p := proxy.Dynamic(s.gw.Client, dest)

			body, err := lifecycle.Operations(cmd.Context(), s.gw.Lifecycle, p, op, payload, flags.options()...)
			if err != nil {
				return fmt.Errorf("%s: %w", berr.GraphQLCode(err), err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", body)
			return err
		},
	}
	flags.register(cmd)

	return cmd
}

func newEmitCommand(a *app) *cobra.Command {
	var flags callFlags

	cmd := &cobra.Command{
		Use:   "emit <destination> <operation> [json]",
		Short: "Publish one fire-and-forget message",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, op, payload, err := parseInvocation(args)
			if err != nil {
				return err
			}

			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			return proxy.Dynamic(s.gw.Client, dest).OperationsEmit(cmd.Context(), op, payload, flags.options()...)
		},
	}
	flags.register(cmd)

	return cmd
}

// parseInvocation resolves the destination and operation names before any
// broker connection is made.
func parseInvocation(args []string) (rpc.Destination, rpc.Operation, any, error) {
	dest := rpc.Destination(args[0])
	if len(operations.All(dest)) == 0 {
		return "", nil, nil, fmt.Errorf("destination %q: %w", args[0], berr.ErrUnknownOperation)
	}

	op, ok := operations.Lookup(dest, args[1])
	if !ok {
		return "", nil, nil, fmt.Errorf("operation %q on %s: %w", args[1], dest, berr.ErrUnknownOperation)
	}

	var payload any
	if len(args) == 3 {
		if !json.Valid([]byte(args[2])) {
			return "", nil, nil, fmt.Errorf("payload: %w", berr.ErrSerializationFailed)
		}
		payload = json.RawMessage(args[2])
	}

	return dest, op, payload, nil
}
