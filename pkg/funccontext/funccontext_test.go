package funccontext_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-dev/codegraph/pkg/funccontext"
	"github.com/codegraph-dev/codegraph/pkg/graph"
)

func buildStore() *graph.Store {
	store := graph.NewStore()

	store.AddNodesBatch([]graph.Node{
		{QualifiedName: "app.Main", Kind: graph.KindFunction, FilePath: "app/main.go", Name: "Main"},
		{QualifiedName: "app.run", Kind: graph.KindFunction, FilePath: "app/main.go", Name: "run"},
		{QualifiedName: "util.Join", Kind: graph.KindFunction, FilePath: "pkg/util/join.go", Name: "Join"},
		{QualifiedName: "svc.Handle", Kind: graph.KindFunction, FilePath: "svc/handler.go", Name: "Handle"},
		{QualifiedName: "app_test.TestRun", Kind: graph.KindFunction, FilePath: "app/main_test.go", Name: "TestRun"},
	})

	store.AddEdgesBatch([]graph.Edge{
		{Source: "app.Main", Target: "app.run", Kind: graph.EdgeCalls},
		{Source: "app.run", Target: "util.Join", Kind: graph.EdgeCalls},
		{Source: "svc.Handle", Target: "util.Join", Kind: graph.EdgeCalls},
		{Source: "app_test.TestRun", Target: "app.run", Kind: graph.EdgeCalls},
	})

	return store
}

func TestBuildClassifiesTestFunctionAsTestRole(t *testing.T) {
	store := buildStore()
	ctxs := funccontext.Build(store, funccontext.DefaultThresholds())

	got, ok := ctxs["app_test.TestRun"]
	require.True(t, ok)
	assert.Equal(t, funccontext.RoleTest, got.Role)
	assert.True(t, got.IsTest)
}

func TestBuildClassifiesUtilityByModuleName(t *testing.T) {
	store := buildStore()
	ctxs := funccontext.Build(store, funccontext.DefaultThresholds())

	got, ok := ctxs["util.Join"]
	require.True(t, ok)
	assert.Equal(t, funccontext.RoleUtility, got.Role)
	assert.True(t, got.IsInUtilityModule)
	assert.Equal(t, 2, got.InDegree)
}

func TestBuildComputesCallDepthFromEntryPoints(t *testing.T) {
	store := buildStore()
	ctxs := funccontext.Build(store, funccontext.DefaultThresholds())

	main, ok := ctxs["app.Main"]
	require.True(t, ok)
	assert.Equal(t, 0, main.CallDepth)

	run, ok := ctxs["app.run"]
	require.True(t, ok)
	assert.Equal(t, 1, run.CallDepth)
}

func TestSeverityMultiplierMatchesRoleTable(t *testing.T) {
	assert.Equal(t, 0.5, funccontext.RoleUtility.SeverityMultiplier())
	assert.Equal(t, 0.7, funccontext.RoleLeaf.SeverityMultiplier())
	assert.Equal(t, 0.3, funccontext.RoleTest.SeverityMultiplier())
	assert.Equal(t, 1.2, funccontext.RoleHub.SeverityMultiplier())
	assert.Equal(t, 1.0, funccontext.RoleUnknown.SeverityMultiplier())
}
