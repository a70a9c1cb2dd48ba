package comdat

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/objtools/objtools/internal/md5sum"
	"github.com/objtools/objtools/internal/objfile"
	"github.com/objtools/objtools/internal/objfile/objfiletest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func groupSection(order binary.ByteOrder, members ...uint32) *objfiletest.Section {
	data := make([]byte, 4*(len(members)+1))
	order.PutUint32(data[0:4], groupFlagLinkOnce)
	for i, idx := range members {
		order.PutUint32(data[4+4*i:8+4*i], idx)
	}
	return &objfiletest.Section{SecName: ".group", SecType: sectionTypeGroup, SecLink: 1, SecInfo: 7, SecData: data}
}

func TestScanObjectAggregatesLinkOnceGroup(t *testing.T) {
	order := binary.LittleEndian
	text := &objfiletest.Section{SecName: ".text._Z3fooi", SecData: make([]byte, 16)}
	group := groupSection(order, 1)

	provider := objfiletest.New(
		[]byte("object-a"),
		order,
		[]*objfiletest.Section{group, text},
		[]objfiletest.Symbol{{Section: 1, Index: 7, Name: "_Z3fooi"}},
		nil,
	)

	agg := NewAggregator()
	digests := NewDigestAggregator()
	require.NoError(t, ScanObject(provider, agg, digests))

	entry, ok := agg.Snapshot()["_Z3fooi"]
	require.True(t, ok, "expected an entry for _Z3fooi")
	assert.Equal(t, Entry{TotalSize: 16, Largest: 16, Instances: 1}, entry)
}

func TestScanObjectIgnoresNonComdatGroups(t *testing.T) {
	order := binary.LittleEndian
	text := &objfiletest.Section{SecName: ".text", SecData: make([]byte, 8)}
	data := make([]byte, 8)
	order.PutUint32(data[0:4], 0) // not GRP_COMDAT
	order.PutUint32(data[4:8], 1)
	group := &objfiletest.Section{SecName: ".group", SecType: sectionTypeGroup, SecLink: 1, SecInfo: 0, SecData: data}

	provider := objfiletest.New([]byte("x"), order, []*objfiletest.Section{group, text}, nil, nil)

	agg := NewAggregator()
	digests := NewDigestAggregator()
	require.NoError(t, ScanObject(provider, agg, digests))
	assert.Empty(t, agg.Snapshot())
}

func TestScanObjectRejectsMisalignedGroupSection(t *testing.T) {
	order := binary.LittleEndian
	group := &objfiletest.Section{SecName: ".group", SecType: sectionTypeGroup, SecData: []byte{1, 2, 3}}
	provider := objfiletest.New(nil, order, []*objfiletest.Section{group}, nil, nil)

	agg := NewAggregator()
	digests := NewDigestAggregator()
	assert.Error(t, ScanObject(provider, agg, digests))
}

func TestScanObjectRejectsOutOfRangeMemberIndex(t *testing.T) {
	order := binary.LittleEndian
	group := groupSection(order, 99)
	provider := objfiletest.New(nil, order, []*objfiletest.Section{group}, nil, nil)

	agg := NewAggregator()
	digests := NewDigestAggregator()
	assert.Error(t, ScanObject(provider, agg, digests))
}

func TestAggregatorAddAccumulatesLargestAndInstances(t *testing.T) {
	agg := NewAggregator()
	agg.Add("sym", 10)
	agg.Add("sym", 30)
	agg.Add("sym", 20)

	assert.Equal(t, Entry{TotalSize: 60, Largest: 30, Instances: 3}, agg.Snapshot()["sym"])
}

func TestDigestAggregatorIsOrderIndependent(t *testing.T) {
	a := md5sum.Sum([]byte("a"))
	b := md5sum.Sum([]byte("b"))
	c := md5sum.Sum([]byte("c"))

	d1 := NewDigestAggregator()
	d1.Add(a)
	d1.Add(b)
	d1.Add(c)

	d2 := NewDigestAggregator()
	d2.Add(c)
	d2.Add(a)
	d2.Add(b)

	assert.Equal(t, d1.Finalize(), d2.Finalize())
}

func TestFrameWrapsBeginAndEndMarkers(t *testing.T) {
	framed := frame([]byte("xyz"))
	want := append(append([]byte{'B', 'g', 'n', 0}, "xyz"...), 'E', 'n', 'd', 0)
	assert.Equal(t, want, framed)
}

var _ objfile.Object = (*objfiletest.Provider)(nil)
