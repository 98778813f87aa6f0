package main

import (
	"fmt"
	"strconv"

	"github.com/goliatone/go-optimistic-cache/entityid"
	"github.com/spf13/cobra"
)

func newIDCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "id <key>...",
		Short: "Derive a deterministic entity id from ordered keys",
		Long: "Hashes the keys in order into an entity id. Arguments that parse as unsigned " +
			"integers are hashed as integers unless --raw is set.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := make([]any, len(args))
			for i, arg := range args {
				keys[i] = parseKey(arg, raw)
			}

			id, err := entityid.FromKeys(keys...)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "hash every argument as a string")
	return cmd
}

func parseKey(arg string, raw bool) any {
	if raw {
		return arg
	}
	if n, err := strconv.ParseUint(arg, 10, 64); err == nil {
		return n
	}
	return arg
}
