package serve

import (
	"testing"

	"github.com/kvmkrao/hdf5/lib/db/util"
	"github.com/kvmkrao/hdf5/rpc/common"
	"github.com/stretchr/testify/require"
)

func TestParseContainers(t *testing.T) {
	containers, err := parseContainers("1=local, 2=replicated")
	require.NoError(t, err)
	require.Equal(t, []common.ServerContainer{
		{ContainerID: 1, Type: common.ContainerTypeLocal},
		{ContainerID: 2, Type: common.ContainerTypeReplicated},
	}, containers)

	for _, invalid := range []string{"1", "x=local", "1=remote", "1=local,1=replicated"} {
		_, err := parseContainers(invalid)
		require.Error(t, err, invalid)
	}
}

func TestParseClusterMembers(t *testing.T) {
	members, err := parseClusterMembers("node-1=localhost:63001,node-2=localhost:63002")
	require.NoError(t, err)
	require.Len(t, members, 2)
	require.Equal(t, "localhost:63001", members[uint64(util.HashString("node-1", 0))])

	_, err = parseClusterMembers("node-1")
	require.Error(t, err)
}
