package cmd

import (
	"fmt"
	"os"

	"github.com/kvmkrao/hdf5/cmd/kvmap"
	"github.com/kvmkrao/hdf5/cmd/serve"
	"github.com/kvmkrao/hdf5/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "iodmap",
		Short: "map object storage service",
		Long: fmt.Sprintf(`iodmap (v%s)

A storage service for key/value map objects in a hierarchical object store.
Maps are created, read and written under explicit transactions, values are
transferred out of band and guarded by end-to-end checksums.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of iodmap",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("iodmap v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kvmap.MapCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (http, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
