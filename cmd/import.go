package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/redstone-tools/tickpack/scan/world"
)

// importCmd loads a world document into a SQLite grid
var importCmd = &cobra.Command{
	Use:   "import <world.json|world.yaml> <grid.db>",
	Short: "Load a world document into a SQLite grid for scanning with --db",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		g, err := world.LoadGrid(args[0])
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		db, err := world.OpenSQLite(args[1], g.World())
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		defer db.Close()
		n, err := db.Import(g)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		fmt.Printf("imported %d cells into world %q\n", n, g.World())
	},
}
