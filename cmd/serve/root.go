package serve

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	cmdUtil "github.com/kvmkrao/hdf5/cmd/util"
	"github.com/kvmkrao/hdf5/lib/bulk"
	"github.com/kvmkrao/hdf5/lib/db/util"
	"github.com/kvmkrao/hdf5/rpc/common"
	"github.com/kvmkrao/hdf5/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the iodmap server",
		Long:    `Start the iodmap server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is IODMAP_<flag> (e.g. IODMAP_TIMEOUT=15)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "containers"
	ServeCmd.PersistentFlags().String(key, "1=local", cmdUtil.WrapString("Comma-separated list of containers to serve. Format: ID=TYPE where TYPE is one of: local, replicated"))

	key = "rtt-millisecond"
	ServeCmd.PersistentFlags().Int(key, 100, cmdUtil.WrapString("(replicated containers) RTTMillisecond defines the average Round Trip Time (RTT) in milliseconds between two NodeHost instances. \nOther raft configuration parameters (ElectionRTT=value/10, HeartbeatRTT=value/100) are derived from this value"))

	key = "snapshot-entries"
	ServeCmd.PersistentFlags().Int(key, 10, cmdUtil.WrapString("(replicated containers) SnapshotEntries defines how often the state machine should be snapshotted automatically. It is defined in terms of the number of applied Raft log entries. SnapshotEntries can be set to 0 to disable such automatic snapshotting (not recommended)"))

	key = "compaction-overhead"
	ServeCmd.PersistentFlags().Int(key, 5, cmdUtil.WrapString("(replicated containers) CompactionOverhead defines the number of snapshots that should be retained in the system. Recommended value is about 1/2 of SnapshotEntries"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("(replicated containers) DataDir is the directory used for storing the raft log and snapshots"))

	key = "replica-id"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(replicated containers) ReplicaID is the unique identifier for this NodeHost instance (e.g. 'node-1')"))

	key = "cluster-members"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(replicated containers) ClusterMembers is a comma-separated list of NodeHost addresses in the format 'node-1=localhost:63001,node-2=localhost:63002,...'"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds for connections and replicated operations"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080, /tmp/iodmap.sock, ...)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Optional address for the Prometheus metrics endpoint. The http transport always serves /metrics"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "trace-values"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Log every value written by Set (debug log level)"))

	key = "bulk-timeout"
	ServeCmd.PersistentFlags().Int64(key, 30, cmdUtil.WrapString("Timeout in seconds of a single value transfer from or to a client"))

	key = "max-value-size"
	ServeCmd.PersistentFlags().Uint64(key, bulk.DefaultMaxSize, cmdUtil.WrapString("Largest value in bytes a client may send with Set, larger values are rejected with ResourceExhausted"))

	key = "version-retention"
	ServeCmd.PersistentFlags().Uint64(key, 0, cmdUtil.WrapString("Number of transactions old versions of an entry are kept for, 0 keeps the whole history"))
}

// parseContainers parses a list like "1=local,2=replicated"
func parseContainers(list string) ([]common.ServerContainer, error) {
	var containers []common.ServerContainer
	seen := map[uint64]bool{}
	for _, containerConfig := range strings.Split(list, ",") {
		parts := strings.Split(containerConfig, "=")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid container format: %s (expected ID=TYPE)", containerConfig)
		}

		// Parse container ID
		containerID, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid container ID %s: %v", parts[0], err)
		}
		if seen[containerID] {
			return nil, fmt.Errorf("container %d is listed twice", containerID)
		}
		seen[containerID] = true

		// Parse container type
		containerType := common.ContainerType(strings.TrimSpace(parts[1]))
		switch containerType {
		case common.ContainerTypeLocal, common.ContainerTypeReplicated:
		default:
			return nil, fmt.Errorf("invalid container type: %s (expected one of: local, replicated)", containerType)
		}

		containers = append(containers, common.ServerContainer{
			ContainerID: containerID,
			Type:        containerType,
		})
	}
	return containers, nil
}

// parseClusterMembers parses a list like "node-1=localhost:63001,node-2=localhost:63002"
func parseClusterMembers(list string) (map[uint64]string, error) {
	members := make(map[uint64]string)
	for _, member := range strings.Split(list, ",") {
		parts := strings.Split(member, "=")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid cluster member format: %s (expected ID=address)", member)
		}
		members[uint64(util.HashString(parts[0], 0))] = parts[1]
	}
	return members, nil
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	containers, err := parseContainers(viper.GetString("containers"))
	if err != nil {
		return err
	}
	serveCmdConfig.Containers = containers

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.RTTMillisecond = viper.GetUint64("rtt-millisecond")
	serveCmdConfig.SnapshotEntries = viper.GetUint64("snapshot-entries")
	serveCmdConfig.CompactionOverhead = viper.GetUint64("compaction-overhead")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.TraceValues = viper.GetBool("trace-values")
	serveCmdConfig.BulkTimeoutSecond = viper.GetInt64("bulk-timeout")
	serveCmdConfig.MaxValueSize = viper.GetUint64("max-value-size")
	serveCmdConfig.VersionRetention = viper.GetUint64("version-retention")

	// parse replica id
	if id := viper.GetString("replica-id"); id != "" {
		serveCmdConfig.ReplicaID = uint64(util.HashString(id, 0))
	} else if serveCmdConfig.HasReplicatedContainer() {
		// error only if cluster mode
		return fmt.Errorf("ReplicaId is required for replicated containers")
	}

	// parse cluster members
	if clusterMembers := viper.GetString("cluster-members"); clusterMembers != "" {
		if serveCmdConfig.ClusterMembers, err = parseClusterMembers(clusterMembers); err != nil {
			return err
		}
	} else if serveCmdConfig.HasReplicatedContainer() {
		// error only if cluster mode
		return fmt.Errorf("ClusterMembers is required for replicated containers")
	}

	// test if the replica id is in the cluster members (only for cluster mode)
	if _, ok := serveCmdConfig.ClusterMembers[serveCmdConfig.ReplicaID]; !ok && serveCmdConfig.HasReplicatedContainer() {
		return fmt.Errorf("no address found for replica ID %d in cluster members", serveCmdConfig.ReplicaID)
	}

	return nil
}

// run starts the iodmap server and stops it on SIGINT / SIGTERM
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}
	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		if _, ok := <-sigs; ok {
			_ = serv.Close()
		}
	}()

	return serv.Serve()
}
