package detectors_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-dev/codegraph/pkg/detect"
	"github.com/codegraph-dev/codegraph/pkg/detectors"
	"github.com/codegraph-dev/codegraph/pkg/graph"
)

func findSecurity(t *testing.T, name string) detect.Detector {
	t.Helper()

	for _, d := range detectors.NewSecurityDetectors() {
		if d.Name() == name {
			return d
		}
	}

	t.Fatalf("security detector %q not found", name)

	return nil
}

func TestSyncBlockingInAsyncDetectorFlagsDirectBlockingCall(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "handler.go", "func handler() {\n\tdata, _ := ioutil.ReadFile(\"x.txt\")\n\t_ = data\n}\n")

	store := graph.NewStore()
	store.AddNode(graph.Node{
		QualifiedName: "pkg.handler", Kind: graph.KindFunction, Name: "handler",
		FilePath: path, LineStart: 1, LineEnd: 4,
		Properties: graph.Property{"is_async": true},
	})

	d := findSecurity(t, "security_sync_blocking_in_async")
	findings := runOne(t, d, newDetectContext(t, store))

	require.NotEmpty(t, findings)
	assert.Equal(t, 2, findings[0].LineStart)
	assert.Contains(t, findings[0].Title, "handler")
}

func TestSyncBlockingInAsyncDetectorSkipsNonAsyncFunctions(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "handler.go", "func handler() {\n\tdata, _ := ioutil.ReadFile(\"x.txt\")\n\t_ = data\n}\n")

	store := graph.NewStore()
	store.AddNode(graph.Node{
		QualifiedName: "pkg.handler", Kind: graph.KindFunction, Name: "handler",
		FilePath: path, LineStart: 1, LineEnd: 4,
	})

	d := findSecurity(t, "security_sync_blocking_in_async")
	findings := runOne(t, d, newDetectContext(t, store))

	assert.Empty(t, findings)
}

func TestSyncBlockingInAsyncDetectorFlagsTransitiveBlockingCallee(t *testing.T) {
	dir := t.TempDir()
	callerPath := writeTempFile(t, dir, "caller.go", "func caller() {\n\thelper()\n}\n")
	helperPath := writeTempFile(t, dir, "helper.go", "func helper() {\n\ttime.Sleep(time.Second)\n}\n")

	store := graph.NewStore()
	store.AddNode(graph.Node{
		QualifiedName: "pkg.caller", Kind: graph.KindFunction, Name: "caller",
		FilePath: callerPath, LineStart: 1, LineEnd: 3,
		Properties: graph.Property{"is_async": true},
	})
	store.AddNode(graph.Node{
		QualifiedName: "pkg.helper", Kind: graph.KindFunction, Name: "helper",
		FilePath: helperPath, LineStart: 1, LineEnd: 3,
	})
	store.AddEdgeByName("pkg.caller", "pkg.helper", graph.EdgeCalls, nil)

	d := findSecurity(t, "security_sync_blocking_in_async")
	findings := runOne(t, d, newDetectContext(t, store))

	var sawTransitive bool

	for _, f := range findings {
		if f.Title == "caller is async but calls into a blocking function via helper" {
			sawTransitive = true
		}
	}

	assert.True(t, sawTransitive, "expected a transitive-blocking finding for caller, got: %+v", findings)
}

func TestSyncBlockingInAsyncDetectorFindsNothingInEmptyGraph(t *testing.T) {
	ctx := context.Background()
	d := findSecurity(t, "security_sync_blocking_in_async")

	store := graph.NewStore()
	findings, err := d.Run(ctx, newDetectContext(t, store), nil)
	require.NoError(t, err)
	assert.Empty(t, findings)
}
