package commands

import (
	"github.com/spf13/cobra"

	"github.com/corelattice/lattice/src/config"
)

var _config = config.NewDefaultConfig()

//RootCmd is the root command for the lattice CLI
var RootCmd = &cobra.Command{
	Use:              "lattice",
	Short:            "replicated ledger chain client",
	TraverseChildren: true,
}
