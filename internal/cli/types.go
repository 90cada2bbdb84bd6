package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// typesCommand lists the dependency types of the loaded map.
func (c *CLI) typesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the dependency types of the dependency map",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.loadDepMap()
			if err != nil {
				return err
			}
			for _, d := range m.Defs() {
				printKeyValue(d.Type, d.Handler)
				if len(d.Parents) > 0 {
					printDetail("parents: %s", strings.Join(d.Parents, ", "))
				}
				if children := m.Children(d.Type); len(children) > 0 {
					printDetail("children: %s", strings.Join(children, ", "))
				}
				if d.SupportsIDTypes {
					printDetail("supports id types")
				}
			}
			printStats(plural(m.Len(), "type"))
			return nil
		},
	}
}
