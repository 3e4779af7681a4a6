package mongodeck_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/saurav-z/mongodeck"
)

func newTestClient(fake *fakeClient) *mongodeck.AdminClient {
	registry := mongodeck.NewConnectionRegistryWithDial(staticDial(fake))
	return mongodeck.NewAdminClientWithRegistry(mongodeck.DefaultClientConfig(), registry)
}

func TestExecuteCommandEndToEnd(t *testing.T) {
	fake := newFakeClient()
	client := newTestClient(fake)
	ctx := context.Background()

	result := client.ExecuteCommand(ctx, testURI, `{"ping": 1}`)
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	payload, ok := result.Payload.(map[string]interface{})
	if !ok || payload["ok"] != float64(1) {
		t.Errorf("unexpected payload: %v", result.Payload)
	}

	result = client.ExecuteCommand(ctx, testURI, `db.people.find({"age": {"$gt": 21}}).limit(3)`)
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	coll := fake.database("demo").collection("people")
	if len(coll.findCalls) != 1 || coll.findCalls[0].Limit != 3 {
		t.Errorf("unexpected find calls: %+v", coll.findCalls)
	}
}

func TestExecuteCommandMissingIdentity(t *testing.T) {
	client := newTestClient(newFakeClient())

	// 标识缺失进入信封，不作为 error 抛出
	result := client.ExecuteCommand(context.Background(), "", `{"ping": 1}`)
	if result.Success {
		t.Fatal("expected failure envelope")
	}
	if !strings.Contains(result.Error, mongodeck.ErrMissingIdentity.Error()) {
		t.Errorf("expected missing identity diagnostic, got %q", result.Error)
	}
}

func TestExecuteCommandUnrecognizedSkipsDial(t *testing.T) {
	var dials int32
	dial := func(ctx context.Context, identity string, onClose func()) (mongodeck.DatabaseClient, error) {
		atomic.AddInt32(&dials, 1)
		return newFakeClient(), nil
	}
	registry := mongodeck.NewConnectionRegistryWithDial(dial)
	client := mongodeck.NewAdminClientWithRegistry(mongodeck.DefaultClientConfig(), registry)

	result := client.ExecuteCommand(context.Background(), testURI, "frobnicate everything")
	if result.Success {
		t.Fatal("expected failure envelope")
	}
	if got := atomic.LoadInt32(&dials); got != 0 {
		t.Errorf("unrecognized command must not dial, got %d dials", got)
	}
}

func TestExecuteCommandConnectionFailure(t *testing.T) {
	dial := func(ctx context.Context, identity string, onClose func()) (mongodeck.DatabaseClient, error) {
		return nil, errors.New("connection refused")
	}
	registry := mongodeck.NewConnectionRegistryWithDial(dial)
	client := mongodeck.NewAdminClientWithRegistry(mongodeck.DefaultClientConfig(), registry)

	result := client.ExecuteCommand(context.Background(), testURI, `{"ping": 1}`)
	if result.Success {
		t.Fatal("expected failure envelope")
	}
	if !strings.Contains(result.Error, "connection failed") {
		t.Errorf("expected connection failure diagnostic, got %q", result.Error)
	}
	// 连接串不回显到错误信息中
	if strings.Contains(result.Error, testURI) {
		t.Errorf("error must not echo the connection string: %q", result.Error)
	}
}

func TestOpenConnectionIdempotent(t *testing.T) {
	var dials int32
	dial := func(ctx context.Context, identity string, onClose func()) (mongodeck.DatabaseClient, error) {
		atomic.AddInt32(&dials, 1)
		return newFakeClient(), nil
	}
	registry := mongodeck.NewConnectionRegistryWithDial(dial)
	client := mongodeck.NewAdminClientWithRegistry(mongodeck.DefaultClientConfig(), registry)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := client.OpenConnection(ctx, testURI); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := atomic.LoadInt32(&dials); got != 1 {
		t.Errorf("expected 1 dial, got %d", got)
	}
	if client.ActiveConnections() != 1 {
		t.Errorf("expected 1 active connection, got %d", client.ActiveConnections())
	}
}

func TestExecuteCommandRecordsMetrics(t *testing.T) {
	client := newTestClient(newFakeClient())
	ctx := context.Background()

	client.ExecuteCommand(ctx, testURI, `{"ping": 1}`)
	client.ExecuteCommand(ctx, testURI, "garbage input")

	recent := client.Metrics().GetRecentExecutions(0)
	if len(recent) != 2 {
		t.Fatalf("expected 2 recorded executions, got %d", len(recent))
	}
	if recent[0].Kind != "raw" || !recent[0].Success {
		t.Errorf("unexpected first record: %+v", recent[0])
	}
	if recent[1].Kind != "unrecognized" || recent[1].Success {
		t.Errorf("unexpected second record: %+v", recent[1])
	}
	if recent[0].Host != "localhost:27017" {
		t.Errorf("expected host label without credentials, got %q", recent[0].Host)
	}
}

func TestDocumentPassThroughOperations(t *testing.T) {
	fake := newFakeClient()
	client := newTestClient(fake)
	ctx := context.Background()

	id, err := client.InsertDocument(ctx, testURI, "", "people", map[string]interface{}{"name": "li"})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if id != "generated-id" {
		t.Errorf("unexpected inserted id: %v", id)
	}

	// database 为空回退到缺省库
	coll := fake.database("demo").collection("people")
	if len(coll.insertOneDocs) != 1 {
		t.Fatalf("expected insert into the default database, got %d calls", len(coll.insertOneDocs))
	}

	coll.updateCount = 2
	modified, err := client.UpdateDocuments(ctx, testURI, "demo", "people",
		map[string]interface{}{"name": "li"},
		map[string]interface{}{"$set": map[string]interface{}{"age": 30}})
	if err != nil || modified != 2 {
		t.Errorf("expected 2 modified, got %d (err=%v)", modified, err)
	}

	coll.deleteCount = 1
	deleted, err := client.DeleteDocuments(ctx, testURI, "demo", "people", map[string]interface{}{"name": "li"})
	if err != nil || deleted != 1 {
		t.Errorf("expected 1 deleted, got %d (err=%v)", deleted, err)
	}

	docs, err := client.FindDocuments(ctx, testURI, "demo", "people", mongodeck.QueryOptions{})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if docs == nil && len(coll.findCalls) != 1 {
		t.Error("expected find call")
	}
	// 未指定 limit 时套用缺省值
	if coll.findCalls[len(coll.findCalls)-1].Limit != mongodeck.DefaultFindLimit {
		t.Errorf("expected default limit, got %d", coll.findCalls[len(coll.findCalls)-1].Limit)
	}

	names, err := client.ListDatabases(ctx, testURI)
	if err != nil || len(names) != 2 {
		t.Errorf("expected 2 databases, got %v (err=%v)", names, err)
	}

	collections, err := client.ListCollections(ctx, testURI, "")
	if err != nil || len(collections) != 2 {
		t.Errorf("expected 2 collections, got %v (err=%v)", collections, err)
	}
}

func TestImportDocumentsThroughClient(t *testing.T) {
	fake := newFakeClient()
	client := newTestClient(fake)

	result, err := client.ImportDocuments(context.Background(), testURI, "demo", "people", makeDocuments(12))
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if result.Inserted != 12 {
		t.Errorf("expected 12 inserted, got %d", result.Inserted)
	}
}

func TestClientDisconnectAndClose(t *testing.T) {
	fake := newFakeClient()
	client := newTestClient(fake)
	ctx := context.Background()

	if err := client.OpenConnection(ctx, testURI); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := client.Disconnect(ctx, testURI); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.ActiveConnections() != 0 {
		t.Errorf("expected 0 active connections, got %d", client.ActiveConnections())
	}
	if fake.disconnectCount() != 1 {
		t.Errorf("expected 1 disconnect, got %d", fake.disconnectCount())
	}

	if err := client.Close(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := client.OpenConnection(ctx, testURI); !errors.Is(err, mongodeck.ErrRegistryClosed) {
		t.Errorf("expected ErrRegistryClosed after close, got %v", err)
	}
}
