package page

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/frontpage/internal/assets"
	"github.com/conneroisu/frontpage/internal/placeholder"
	"github.com/conneroisu/frontpage/internal/tstree"
)

func TestRenderContext_AddUncached(t *testing.T) {
	rc := NewRenderContext(nil, "/", 0)

	marker := rc.AddUncached(Instruction{Type: InstructionUSER})
	require.True(t, placeholder.Contains(marker))
	assert.True(t, rc.HasUncachedFragments)

	ids := placeholder.IDs(marker)
	inst, ok := rc.Instruction(ids[0])
	require.True(t, ok)
	assert.Equal(t, InstructionUSER, inst.Type)
}

func TestRenderContext_PermanentDoesNotMarkFragments(t *testing.T) {
	rc := NewRenderContext(nil, "/", 0)
	rc.AddUncached(Instruction{Type: InstructionFunc, Target: "nonce.substitute", Permanent: true})

	assert.False(t, rc.HasUncachedFragments)
	assert.True(t, rc.NeedsUncachedPass())
}

func TestFragments(t *testing.T) {
	var f Fragments
	f.Set("a", "<a>")
	f.Set("b", "<b>")
	f.Set("a", "<A>")
	assert.Equal(t, []string{"<A>", "<b>"}, f.Markup())
}

func TestCachedPage_EncodeDecode(t *testing.T) {
	reg := assets.NewRegistry()
	reg.AddCSSFile("a.css", assets.CSSFileOptions{})
	snap := reg.Snapshot()

	p := &CachedPage{
		Content: "<html>" + placeholder.Marker("k") + "</html>",
		Instructions: []Instruction{{
			Key:  "k",
			Type: InstructionCOA,
			Conf: tstree.New().Set("10", "TEXT").SetChild("10", tstree.New().Set("value", "hi")),
		}},
		Ext:       UncachedExt{DivKey: "d", Assets: &snap},
		CreatedAt: time.Unix(100, 0).UTC(),
	}
	data, err := p.Encode()
	require.NoError(t, err)

	got, err := DecodeCachedPage(data)
	require.NoError(t, err)
	assert.Equal(t, p.Content, got.Content)
	require.Len(t, got.Instructions, 1)
	assert.Equal(t, "hi", got.Instructions[0].Conf.String("10.value"))
	require.NotNil(t, got.Ext.Assets)
	assert.Equal(t, []string{"a.css"}, got.Ext.Assets.State.CSSFiles.Keys)
	assert.True(t, p.CreatedAt.Equal(got.CreatedAt))

	_, err = DecodeCachedPage([]byte(`{"version":7}`))
	assert.ErrorIs(t, err, ErrCachedPageVersion)
}

func TestCachedPage_CheckVersion(t *testing.T) {
	snap := assets.NewRegistry().Snapshot()
	coll := assets.NewAssetCollector().Snapshot()
	p := &CachedPage{Version: CachedPageVersion, Ext: UncachedExt{Assets: &snap, Collector: &coll}}
	require.NoError(t, p.CheckVersion())

	snap.Version = assets.SnapshotVersion + 1
	assert.ErrorIs(t, p.CheckVersion(), ErrCachedPageVersion)

	data, err := p.Encode()
	require.NoError(t, err)
	_, err = DecodeCachedPage(data)
	assert.ErrorIs(t, err, ErrCachedPageVersion, "stale snapshots decode as a schema mismatch")

	snap.Version = assets.SnapshotVersion
	coll.Version = 0
	assert.ErrorIs(t, p.CheckVersion(), ErrCachedPageVersion)
}
