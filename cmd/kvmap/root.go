package kvmap

import (
	"errors"
	"fmt"

	"github.com/kvmkrao/hdf5/cmd/util"
	"github.com/kvmkrao/hdf5/lib/checksum"
	"github.com/kvmkrao/hdf5/lib/db"
	"github.com/kvmkrao/hdf5/lib/dtype"
	"github.com/kvmkrao/hdf5/lib/mapsvc"
	"github.com/kvmkrao/hdf5/lib/store"
	bulkhttp "github.com/kvmkrao/hdf5/lib/bulk/http"
	"github.com/kvmkrao/hdf5/rpc/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	rpcMap  client.IMapClient
	exposer *bulkhttp.Exposer

	// MapCommands represents the map command group
	MapCommands = &cobra.Command{
		Use:                "map",
		Short:              "Perform map operations",
		PersistentPreRunE:  setupMapClient,
		PersistentPostRunE: closeMapClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common RPC flags to the map command
	util.SetupRPCClientFlags(MapCommands)

	key := "wtid"
	MapCommands.PersistentFlags().Uint64(key, 1, util.WrapString("Write transaction of create, set and delete"))
	key = "rtid"
	MapCommands.PersistentFlags().Uint64(key, 1, util.WrapString("Read context of all operations"))
	key = "scope"
	MapCommands.PersistentFlags().String(key, "all", util.WrapString("Integrity checks to perform (none, transfer, iod, all or a combination like transfer|iod)"))
	key = "key-type"
	MapCommands.PersistentFlags().String(key, "", util.WrapString("Memory type of keys (e.g. int32, uint64be, string). Defaults to the key type of the map"))
	key = "value-type"
	MapCommands.PersistentFlags().String(key, "", util.WrapString("Memory type of values (e.g. int32, double, string, vlen(int16)). Defaults to the value type of the map"))

	// Add subcommands
	MapCommands.AddCommand(createCmd)
	MapCommands.AddCommand(openCmd)
	MapCommands.AddCommand(setCmd)
	MapCommands.AddCommand(getCmd)
	MapCommands.AddCommand(countCmd)
	MapCommands.AddCommand(existsCmd)
	MapCommands.AddCommand(deleteCmd)
	MapCommands.AddCommand(closeCmd)
	MapCommands.AddCommand(infoCmd)
	MapCommands.AddCommand(perfTestCmd)
}

// setupMapClient exposes the bulk endpoint and initializes the RPC map client
func setupMapClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Get client configuration components
	config := util.GetClientConfig()

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	// Values are pulled and pushed by the server through this endpoint
	exposer, err = bulkhttp.NewExposer(config.BulkEndpoint)
	if err != nil {
		return fmt.Errorf("failed to expose bulk endpoint %s: %w", config.BulkEndpoint, err)
	}

	// Create the map client
	rpcMap, err = client.NewRPCMapClient(
		config.ContainerID,
		*config,
		t,
		s,
		exposer,
	)
	if err != nil {
		_ = exposer.Close()
	}
	return err
}

// closeMapClient closes the transport and the bulk endpoint
func closeMapClient(_ *cobra.Command, _ []string) error {
	var err error
	if rpcMap != nil {
		err = rpcMap.Shutdown()
	}
	if exposer != nil {
		err = errors.Join(err, exposer.Close())
	}
	return err
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// tx returns the transaction context of the flags
func tx() (client.Tx, error) {
	scope, ok := checksum.ParseScope(viper.GetString("scope"))
	if !ok {
		return client.Tx{}, fmt.Errorf("invalid scope %q", viper.GetString("scope"))
	}
	return client.Tx{
		WTID:  viper.GetUint64("wtid"),
		RTID:  viper.GetUint64("rtid"),
		Scope: scope,
	}, nil
}

// memoryType parses the type named by flag, def if the flag is empty
func memoryType(flag string, def dtype.Type) (dtype.Type, error) {
	name := viper.GetString(flag)
	if name == "" {
		return def, nil
	}
	t, err := dtype.Parse(name)
	if err != nil {
		return dtype.Type{}, fmt.Errorf("invalid --%s: %w", flag, err)
	}
	return t, nil
}

// mapRef is a map resolved by path
type mapRef struct {
	target mapsvc.Target
	keys   mapsvc.KeyTypes
	values mapsvc.ValueTypes
	tx     client.Tx
}

// resolve opens the map at path to learn its id and types and closes it again.
// Entry operations address the map by id, the server opens it for their duration.
func resolve(path string) (mapRef, error) {
	t, err := tx()
	if err != nil {
		return mapRef{}, err
	}
	info, err := rpcMap.Open(mapsvc.OpenRequest{LocID: db.RootID, Name: path, RTID: t.RTID, Scope: t.Scope})
	if err != nil {
		return mapRef{}, err
	}
	if err := rpcMap.Close(info.Handle); err != nil {
		return mapRef{}, err
	}

	ref := mapRef{
		target: mapsvc.Target{ID: info.ID, Handle: store.UndefinedHandle},
		keys:   mapsvc.KeyTypes{KeyMap: info.KeyType},
		values: mapsvc.ValueTypes{ValueMap: info.ValType},
		tx:     t,
	}
	if ref.keys.KeyMem, err = memoryType("key-type", info.KeyType); err != nil {
		return mapRef{}, err
	}
	if ref.values.ValueMem, err = memoryType("value-type", info.ValType); err != nil {
		return mapRef{}, err
	}
	return ref, nil
}

// key encodes a key given on the command line
func (r mapRef) key(s string) ([]byte, error) {
	key, err := dtype.ParseValue(r.keys.KeyMem, s)
	if err != nil {
		return nil, fmt.Errorf("invalid key %q for %s: %w", s, r.keys.KeyMem, err)
	}
	return key, nil
}
