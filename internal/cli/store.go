package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/percussion/deployer/pkg/errors"
	"github.com/percussion/deployer/pkg/store"
)

// storeCommand groups object store maintenance commands.
func (c *CLI) storeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage the object store",
	}

	cmd.AddCommand(c.storeImportCommand())
	cmd.AddCommand(c.storeListCommand())

	return cmd
}

// storeImportCommand loads objects from a JSON array into the store.
func (c *CLI) storeImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <objects.json>",
		Short: "Load objects from a JSON file into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, err := os.Open(args[0])
			if err != nil {
				return errors.Wrap(errors.ErrCodeInvalidPath, err, "open %s", args[0])
			}
			defer f.Close()

			s, err := openStore(ctx, c.cfg.Store)
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := store.Import(ctx, s, f)
			if err != nil {
				return err
			}
			printSuccess("Imported %s", plural(n, "object"))
			return nil
		},
	}
}

// storeListCommand lists the stored objects of one kind.
func (c *CLI) storeListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list <kind>",
		Short: "List the stored objects of a kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openStore(ctx, c.cfg.Store)
			if err != nil {
				return err
			}
			defer s.Close()

			objs, err := s.List(ctx, args[0])
			if err != nil {
				return err
			}
			for _, o := range objs {
				name := o.Name
				if name == "" {
					name = "-"
				}
				printKeyValue(o.ID, name)
			}
			printStats(plural(len(objs), "object"))
			return nil
		},
	}
}
