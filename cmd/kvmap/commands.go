package kvmap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kvmkrao/hdf5/lib/db"
	"github.com/kvmkrao/hdf5/lib/dtype"
	"github.com/kvmkrao/hdf5/lib/mapsvc"
	"github.com/kvmkrao/hdf5/lib/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	createCmd = &cobra.Command{
		Use:   "create [path]",
		Short: "Creates a map (e.g. /group/map)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tx()
			if err != nil {
				return err
			}
			keyType, err := dtype.Parse(viper.GetString("map-key-type"))
			if err != nil {
				return fmt.Errorf("invalid --map-key-type: %w", err)
			}
			valType, err := dtype.Parse(viper.GetString("map-value-type"))
			if err != nil {
				return fmt.Errorf("invalid --map-value-type: %w", err)
			}

			resp, err := rpcMap.Create(mapsvc.CreateRequest{
				LocID:      db.RootID,
				Name:       args[0],
				MapID:      db.IDUndefined,
				MdkvID:     db.IDUndefined,
				AttrkvID:   db.IDUndefined,
				KeyType:    keyType,
				ValType:    valType,
				WTID:       t.WTID,
				RTID:       t.RTID,
				Scope:      t.Scope,
				Collective: viper.GetBool("collective"),
			})
			if err != nil {
				return err
			}
			defer rpcMap.Close(resp.Handle)
			fmt.Printf("path=%s, id=%d, created=%t\n", args[0], resp.ID, resp.Created)
			return nil
		},
	}
	openCmd = &cobra.Command{
		Use:   "open [path]",
		Short: "Opens a map and prints its metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tx()
			if err != nil {
				return err
			}
			resp, err := rpcMap.Open(mapsvc.OpenRequest{LocID: db.RootID, Name: args[0], RTID: t.RTID, Scope: t.Scope})
			if err != nil {
				return err
			}
			fmt.Printf("path=%s, id=%d, key-type=%s, value-type=%s, link-count=%d, mdkv=%d, attrkv=%d, plist=%x\n",
				args[0], resp.ID, resp.KeyType, resp.ValType, resp.LinkCount, resp.MdkvID, resp.AttrkvID, resp.Plist)
			if viper.GetBool("keep") {
				fmt.Printf("handle=%d\n", resp.Handle.Cookie)
				return nil
			}
			return rpcMap.Close(resp.Handle)
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [path] [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := resolve(args[0])
			if err != nil {
				return err
			}
			key, err := m.key(args[1])
			if err != nil {
				return err
			}
			value, err := dtype.ParseValue(m.values.ValueMem, args[2])
			if err != nil {
				return fmt.Errorf("invalid value %q for %s: %w", args[2], m.values.ValueMem, err)
			}
			if err := rpcMap.Set(m.target, m.keys, m.values, key, value, m.tx); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [path] [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := resolve(args[0])
			if err != nil {
				return err
			}
			key, err := m.key(args[1])
			if err != nil {
				return err
			}
			value, err := rpcMap.Get(m.target, m.keys, m.values, key, viper.GetUint64("capacity"), m.tx)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, size=%d, value=%s\n", args[1], len(value), dtype.Format(m.values.ValueMem, value))
			return nil
		},
	}
	countCmd = &cobra.Command{
		Use:   "count [path]",
		Short: "Counts the entries of a map",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := resolve(args[0])
			if err != nil {
				return err
			}
			n, err := rpcMap.GetCount(m.target, m.tx.RTID)
			if err != nil {
				return err
			}
			fmt.Printf("path=%s, count=%d\n", args[0], n)
			return nil
		},
	}
	existsCmd = &cobra.Command{
		Use:   "exists [path] [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := resolve(args[0])
			if err != nil {
				return err
			}
			key, err := m.key(args[1])
			if err != nil {
				return err
			}
			found, err := rpcMap.Exists(m.target, m.keys, key, m.tx.RTID)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%t\n", args[1], found)
			return nil
		},
	}
	deleteCmd = &cobra.Command{
		Use:   "delete [path] [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := resolve(args[0])
			if err != nil {
				return err
			}
			key, err := m.key(args[1])
			if err != nil {
				return err
			}
			if err := rpcMap.Delete(m.target, m.keys, key, m.tx); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	closeCmd = &cobra.Command{
		Use:   "close [handle]",
		Short: "Closes a handle left open by open --keep",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cookie, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("handle must be a number: %w", err)
			}
			if err := rpcMap.Close(store.Handle{Cookie: cookie}); err != nil {
				return err
			}
			fmt.Println("close successfully")
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints the statistics of the container",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := rpcMap.ContainerInfo()
			if err != nil {
				return err
			}
			var out bytes.Buffer
			if err := json.Indent(&out, meta, "", "  "); err != nil {
				return err
			}
			fmt.Println(out.String())
			return nil
		},
	}
)

func init() {
	createCmd.Flags().String("map-key-type", "int32", "Stored type of keys")
	createCmd.Flags().String("map-value-type", "string", "Stored type of values")
	createCmd.Flags().Bool("collective", false, "Open the map if it was created concurrently")
	openCmd.Flags().Bool("keep", false, "Keep the handle open and print it")
	getCmd.Flags().Uint64("capacity", 0, "Receive buffer size for fixed size values, 0 fits one element")
}
