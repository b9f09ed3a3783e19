package yarnrm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dtrain-ml/dtrain/appmaster/internal/sproto"
	"github.com/dtrain-ml/dtrain/appmaster/pkg/cproto"
)

func res(memoryMiB uint64, vcores uint32) cproto.Resource {
	return cproto.Resource{MemoryMiB: memoryMiB, VCores: vcores}
}

func TestClassifyUnsetResources(t *testing.T) {
	require.Equal(t, sproto.ContainerUpdateNone,
		classifyResourceUpdate(cproto.Resource{}, res(4096, 2)))
	require.Equal(t, sproto.ContainerUpdateNone,
		classifyResourceUpdate(res(4096, 2), cproto.Resource{}))
	require.Equal(t, sproto.ContainerUpdateNone,
		classifyResourceUpdate(cproto.Resource{}, cproto.Resource{}))
}

func TestClassifyEqualIsNone(t *testing.T) {
	for _, r := range []cproto.Resource{
		res(1024, 1),
		res(8192, 4),
		res(3000, 7),
	} {
		require.Equal(t, sproto.ContainerUpdateNone, classifyResourceUpdate(r, r))
	}
}

func TestClassifyMemoryRounding(t *testing.T) {
	// The RM allocated 8192 MiB for a role asking 8000 MiB; comparing at
	// 1 GiB granularity the memories agree, so only the vcore change counts.
	require.Equal(t, sproto.ContainerUpdateIncrease,
		classifyResourceUpdate(res(8192, 4), res(8000, 5)))

	// Memory-only differences inside the same GiB step do not update.
	require.Equal(t, sproto.ContainerUpdateNone,
		classifyResourceUpdate(res(8192, 4), res(8000, 4)))
}

func TestClassifyIncreaseDecrease(t *testing.T) {
	require.Equal(t, sproto.ContainerUpdateIncrease,
		classifyResourceUpdate(res(4096, 2), res(8192, 4)))
	require.Equal(t, sproto.ContainerUpdateDecrease,
		classifyResourceUpdate(res(8192, 4), res(4096, 2)))
	require.Equal(t, sproto.ContainerUpdateIncrease,
		classifyResourceUpdate(res(4096, 2), res(4096, 4)))
	require.Equal(t, sproto.ContainerUpdateDecrease,
		classifyResourceUpdate(res(8192, 4), res(4096, 4)))
}

func TestClassifyMixedChangeIsNone(t *testing.T) {
	// One dimension up, another down: not expressible in one request.
	require.Equal(t, sproto.ContainerUpdateNone,
		classifyResourceUpdate(res(8192, 4), res(4096, 8)))
	require.Equal(t, sproto.ContainerUpdateNone,
		classifyResourceUpdate(res(4096, 8), res(8192, 4)))
}

func TestClassifyDirectionProperties(t *testing.T) {
	pairs := []struct{ a, b cproto.Resource }{
		{res(1024, 1), res(2048, 2)},
		{res(2048, 2), res(2048, 4)},
		{res(5000, 3), res(9000, 3)},
	}
	for _, p := range pairs {
		// b dominates a: classifying from b to a may only shrink or hold.
		got := classifyResourceUpdate(p.b, p.a)
		require.Contains(t,
			[]sproto.ContainerUpdateType{sproto.ContainerUpdateDecrease, sproto.ContainerUpdateNone}, got)
		// a fits in b: classifying from a to b may only grow or hold.
		got = classifyResourceUpdate(p.a, p.b)
		require.Contains(t,
			[]sproto.ContainerUpdateType{sproto.ContainerUpdateIncrease, sproto.ContainerUpdateNone}, got)
	}
}
