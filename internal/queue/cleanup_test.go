package queue

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestDecodeCleanup(t *testing.T) {
	data, err := json.Marshal(CleanupPayload{ResourcePath: "abcdefghij012345", Keys: []string{"assets/abcdefghij012345.glb"}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	p, err := DecodeCleanup(asynq.NewTask(CleanupAssetTask, data))
	if err != nil {
		t.Fatalf("DecodeCleanup: %v", err)
	}
	if p.ResourcePath != "abcdefghij012345" || len(p.Keys) != 1 {
		t.Fatalf("unexpected payload %+v", p)
	}

	for _, raw := range []string{"not json", `{"keys":["a"]}`} {
		if _, err := DecodeCleanup(asynq.NewTask(CleanupAssetTask, []byte(raw))); err == nil {
			t.Fatalf("DecodeCleanup(%q) succeeded", raw)
		}
	}
}

func TestSchedulerReportsUnreachableRedis(t *testing.T) {
	client := asynq.NewClient(RedisOpt("127.0.0.1:1", "", 0))
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := NewScheduler(client).Cleanup(ctx, "abcdefghij012345", []string{"assets/abcdefghij012345.glb"})
	if err == nil {
		t.Fatal("Cleanup succeeded without a reachable redis")
	}
	if !strings.Contains(err.Error(), "enqueue cleanup task") {
		t.Fatalf("err = %v, want it wrapped with the enqueue context", err)
	}
}

// startRedis runs Redis in a container and returns its address.
func startRedis(t *testing.T) string {
	t.Helper()
	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "docker.io/redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})
	addr, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("redis endpoint: %v", err)
	}
	return addr
}

func TestSchedulerEnqueuesDelayedCleanup(t *testing.T) {
	opt := RedisOpt(startRedis(t), "", 0)
	client := asynq.NewClient(opt)
	defer client.Close()

	keys := []string{"assets/abcdefghij012345.glb", "uploads/qrcodes/abcdefghij012345.png"}
	if err := NewScheduler(client).Cleanup(context.Background(), "abcdefghij012345", keys); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	inspector := asynq.NewInspector(opt)
	defer inspector.Close()
	tasks, err := inspector.ListScheduledTasks("default")
	if err != nil {
		t.Fatalf("ListScheduledTasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("got %d scheduled tasks, want 1", len(tasks))
	}
	task := tasks[0]
	if task.Type != CleanupAssetTask || task.MaxRetry != 5 {
		t.Fatalf("task = %s (max retry %d)", task.Type, task.MaxRetry)
	}
	payload, err := DecodeCleanup(asynq.NewTask(task.Type, task.Payload))
	if err != nil {
		t.Fatalf("DecodeCleanup: %v", err)
	}
	if payload.ResourcePath != "abcdefghij012345" || len(payload.Keys) != 2 {
		t.Fatalf("payload = %+v", payload)
	}
}
