package main

import (
	"fmt"

	"github.com/pingcap/errors"
	"github.com/spf13/cobra"

	"github.com/kolkov/sharedptr/shared"
)

// newVersionCommand implements 'sharedptr version'.
//
// With --require it fails unless the library is at least that version.
func newVersionCommand() *cobra.Command {
	var minVersion string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := shared.GetInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "sharedptr version %s\n", info.Version)
			fmt.Fprintf(cmd.OutOrStdout(), "reference count ordering: %s\n", info.Ordering)
			if info.OriginTracking {
				fmt.Fprintf(cmd.OutOrStdout(), "origin stacks: %d (%d bytes)\n", info.OriginStacks, info.OriginBytes)
			}

			if minVersion == "" {
				return nil
			}
			ok, err := shared.AtLeast(minVersion)
			if err != nil {
				return err
			}
			if !ok {
				return errors.Errorf("version %s does not satisfy required %s", info.Version, minVersion)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&minVersion, "require", "", "minimum required version, e.g. v0.1.0")
	return cmd
}
