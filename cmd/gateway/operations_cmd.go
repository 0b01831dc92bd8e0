package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/next-trace/scg-rpc-proxy/contract/rpc"
	"github.com/next-trace/scg-rpc-proxy/operations"
)

func newOperationsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "operations [destination]",
		Short: "List the operations each destination accepts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dests := operations.Destinations()
			if len(args) == 1 {
				dests = []rpc.Destination{rpc.Destination(args[0])}
			}

			out := cmd.OutOrStdout()
			for _, d := range dests {
				ops := operations.All(d)
				if len(ops) == 0 {
					return fmt.Errorf("unknown destination %q", d)
				}

				if _, err := fmt.Fprintf(out, "%s\n", d); err != nil {
					return err
				}

				for _, op := range ops {
					if _, err := fmt.Fprintf(out, "  %s\n", op); err != nil {
						return err
					}
				}
			}

			return nil
		},
	}
}
