package mongodeck_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/saurav-z/mongodeck"
)

// TestRealServerRoundTrip 需要真实 MongoDB，通过
// MONGODECK_TEST_MONGO_URI 指定连接串后运行
func TestRealServerRoundTrip(t *testing.T) {
	uri := os.Getenv("MONGODECK_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("MONGODECK_TEST_MONGO_URI not set")
	}

	client := mongodeck.NewAdminClient(mongodeck.DefaultClientConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	defer client.Close(context.Background())

	if err := client.OpenConnection(ctx, uri); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	result := client.ExecuteCommand(ctx, uri, `{"ping": 1}`)
	if !result.Success {
		t.Fatalf("ping failed: %q", result.Error)
	}

	result = client.ExecuteCommand(ctx, uri, "listdatabases")
	if !result.Success {
		t.Fatalf("listdatabases failed: %q", result.Error)
	}

	collection := "mongodeck_it_" + time.Now().UTC().Format("20060102150405")
	result = client.ExecuteCommand(ctx, uri, `db.createCollection("`+collection+`")`)
	if !result.Success {
		t.Fatalf("createCollection failed: %q", result.Error)
	}
	defer client.ExecuteCommand(ctx, uri, `db.dropCollection("`+collection+`")`)

	if _, err := client.InsertDocument(ctx, uri, "", collection, map[string]interface{}{"name": "it", "age": 30}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	result = client.ExecuteCommand(ctx, uri, `db.`+collection+`.countDocuments({})`)
	if !result.Success {
		t.Fatalf("count failed: %q", result.Error)
	}
	if result.Payload != int64(1) {
		t.Errorf("expected count 1, got %v", result.Payload)
	}

	result = client.ExecuteCommand(ctx, uri, `db.`+collection+`.find({"age": {"$gt": 21}}).limit(5)`)
	if !result.Success {
		t.Fatalf("find failed: %q", result.Error)
	}
}
