package storeapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromHeadersDetectsSLO(t *testing.T) {
	meta := FromHeaders("k1", map[string]string{
		HeaderETag:              "abc123",
		HeaderStaticLargeObject: "True",
	})
	assert.True(t, meta.IsSLO)
	assert.Equal(t, "abc123", meta.Hash)
}

func TestFromHeadersDetectsMPU(t *testing.T) {
	meta := FromHeaders("k1", map[string]string{
		HeaderETag:          "deadbeef-2",
		HeaderMPUPartsCount: "2",
	})
	assert.True(t, meta.IsMPU)
}

func TestFromHeadersDetectsMigratorOwnership(t *testing.T) {
	meta := FromHeaders("k1", map[string]string{
		HeaderMigratorObject: "100.000000",
	})
	assert.True(t, meta.IsMigratorOwned)
	assert.Equal(t, int64(100), meta.SysTimestamp.Seconds)
}

func TestFromHeadersClientOwnedHasNoSysTimestamp(t *testing.T) {
	meta := FromHeaders("k1", map[string]string{HeaderETag: "abc"})
	assert.False(t, meta.IsMigratorOwned)
}

func TestToSwiftHeadersNeverSetsMigratorHeaderImplicitly(t *testing.T) {
	meta := ObjectMeta{Name: "seg/1", LastModified: FixedTimestamp{Seconds: 1}}
	headers := meta.ToSwiftHeaders()
	_, present := headers[HeaderMigratorObject]
	assert.False(t, present, "ToSwiftHeaders must never set the migrator-owned header implicitly")
}

func TestContainerMetaIsMigratorOwned(t *testing.T) {
	assert.True(t, ContainerMeta{MigratorState: ContainerStateMigrating}.IsMigratorOwned())
	assert.True(t, ContainerMeta{MigratorState: ContainerStateSrcDeleted}.IsMigratorOwned())
	assert.False(t, ContainerMeta{}.IsMigratorOwned())
}
