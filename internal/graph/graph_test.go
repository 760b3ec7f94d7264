package graph

import (
	"encoding/json"
	"testing"

	"pyfreeze/internal/extractor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_AddModuleAndEdges(t *testing.T) {
	g := NewGraph()

	main := &Module{Name: "__main__", File: "app.py", Kind: KindSource}
	osMod := &Module{Name: "os", File: "/usr/lib/python3/os.py", Kind: KindSource}
	sys := &Module{Name: "sys", Kind: KindBuiltin}

	require.True(t, g.AddModule(main))
	require.True(t, g.AddModule(osMod))
	require.True(t, g.AddModule(sys))

	t.Run("Names are unique", func(t *testing.T) {
		dup := &Module{Name: "os", File: "/elsewhere/os.py", Kind: KindSource}
		assert.False(t, g.AddModule(dup))
		assert.Equal(t, "/usr/lib/python3/os.py", g.Module("os").File)
		assert.Equal(t, 3, g.Len())
	})

	t.Run("Edges have set semantics", func(t *testing.T) {
		assert.True(t, g.AddEdge("__main__", "os", RelationImports))
		assert.False(t, g.AddEdge("__main__", "os", RelationImports))
		assert.True(t, g.AddEdge("os", "sys", RelationImports))
		assert.Len(t, g.Edges, 2)
	})

	t.Run("Dependencies and dependents", func(t *testing.T) {
		deps := g.GetDependencies("__main__")
		require.Len(t, deps, 1)
		assert.Equal(t, "os", deps[0].Module.Name)

		dependents := g.GetDependents("sys")
		require.Len(t, dependents, 1)
		assert.Equal(t, "os", dependents[0].Module.Name)
	})

	t.Run("Path between modules", func(t *testing.T) {
		assert.Equal(t, []string{"__main__", "os", "sys"}, g.PathTo("__main__", "sys"))
		assert.Nil(t, g.PathTo("sys", "__main__"))
		assert.Nil(t, g.PathTo("__main__", "missing"))
	})

	t.Run("Sorted names", func(t *testing.T) {
		assert.Equal(t, []string{"__main__", "os", "sys"}, g.Names())
	})

	t.Run("File-less modules", func(t *testing.T) {
		assert.False(t, sys.HasFile())
		assert.True(t, osMod.HasFile())
	})
}

func TestGraph_MarkUnresolved(t *testing.T) {
	g := NewGraph()

	stmt := extractor.ImportStatement{Module: "winreg", Line: 3, Conditional: true}
	g.MarkUnresolved(FromStatement("app", "app.py", "", stmt, ReasonNotFound))
	require.Len(t, g.Unresolved, 1)
	assert.True(t, g.Unresolved[0].Conditional)
	assert.Equal(t, "winreg", g.Unresolved[0].Target)
	assert.Equal(t, 3, g.Unresolved[0].Evidence.Line)

	stmt.Conditional = false
	g.MarkUnresolved(FromStatement("app", "app.py", "", stmt, ReasonNotFound))
	require.Len(t, g.Unresolved, 1)
	assert.False(t, g.Unresolved[0].Conditional, "an unconditional import makes the miss unconditional")

	computed := extractor.ImportStatement{Computed: true, Expr: "name", Line: 9}
	g.MarkUnresolved(FromStatement("app", "app.py", "", computed, ReasonNotFound))
	require.Len(t, g.Unresolved, 2)
	assert.Equal(t, ReasonDynamic, g.Unresolved[1].Reason)

	counts := g.UnresolvedReasonCounts()
	assert.Equal(t, 1, counts[ReasonNotFound])
	assert.Equal(t, 1, counts[ReasonDynamic])
}

func TestGraph_RebuildIndicesAfterDecode(t *testing.T) {
	g := NewGraph()
	g.AddModule(&Module{Name: "a", File: "a.py", Kind: KindSource})
	g.AddModule(&Module{Name: "b", File: "b.py", Kind: KindSource})
	g.AddEdge("a", "b", RelationImports)

	data, err := json.Marshal(g)
	require.NoError(t, err)

	var decoded Graph
	require.NoError(t, json.Unmarshal(data, &decoded))
	decoded.RebuildIndices()

	assert.False(t, decoded.AddEdge("a", "b", RelationImports))
	assert.True(t, decoded.AddEdge("b", "a", RelationImports))
	assert.Equal(t, 2, decoded.KindCounts()[KindSource])
}
