package sync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/twin/internal/bus"
	"github.com/matheus3301/twin/internal/platform"
	"github.com/matheus3301/twin/internal/store"
	"go.uber.org/zap"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.UpgradeSchema(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func botMsg(code, content string) platform.Message {
	return platform.Message{MsgCode: code, SenderType: platform.SenderBot, Content: content, CreatedAt: "2024-05-01T10:00:00Z"}
}

func TestEngineIngestMessage(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	e := NewEngine(db, b, nil)

	ch, unsub := b.Subscribe("sync.", 10)
	defer unsub()

	if err := e.IngestMessage("conv", botMsg("m1", "hello")); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListMessages("conv", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Content != "hello" {
		t.Fatalf("got %+v, want 1 message with content=hello", msgs)
	}
	if msgs[0].SentAt != time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC).UnixMilli() {
		t.Errorf("sent_at = %d, want parsed created_at", msgs[0].SentAt)
	}

	select {
	case evt := <-ch:
		if evt.Kind != bus.KindSyncIngested {
			t.Errorf("event kind = %q, want %s", evt.Kind, bus.KindSyncIngested)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for sync.ingested event")
	}

	last, err := e.Reconciler().LastIngest("conv")
	if err != nil {
		t.Fatal(err)
	}
	if last.IsZero() {
		t.Error("checkpoint not recorded")
	}
}

func TestEngineIngestMessageIdempotent(t *testing.T) {
	db := testDB(t)
	e := NewEngine(db, bus.New(), nil)

	msg := botMsg("m1", "v1")
	if err := e.IngestMessage("conv", msg); err != nil {
		t.Fatal(err)
	}
	msg.Content = "v2"
	if err := e.IngestMessage("conv", msg); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListMessages("conv", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1 (idempotent)", len(msgs))
	}
	if msgs[0].Content != "v2" {
		t.Errorf("content = %q, want v2 (updated)", msgs[0].Content)
	}
}

func TestEngineSkipsUncodedMessages(t *testing.T) {
	db := testDB(t)
	e := NewEngine(db, bus.New(), nil)

	if err := e.IngestMessage("conv", platform.Message{Content: "local"}); err != nil {
		t.Fatal(err)
	}
	n, err := db.CountMessages("conv")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("stored %d messages without a code, want 0", n)
	}
}

func TestEngineHistoryBatchIdempotent(t *testing.T) {
	db := testDB(t)
	e := NewEngine(db, bus.New(), nil)

	msgs := []platform.Message{
		{MsgCode: "u1", SenderType: platform.SenderUser, Content: "q"},
		botMsg("b1", "a"),
	}
	if err := e.IngestHistoryBatch("conv", msgs); err != nil {
		t.Fatal(err)
	}
	if err := e.IngestHistoryBatch("conv", msgs); err != nil {
		t.Fatal(err)
	}

	stored, _ := db.ListMessages("conv", 10)
	if len(stored) != 2 {
		t.Errorf("got %d messages, want 2 (idempotent batch)", len(stored))
	}
}

// TestEngineBusSubscription verifies the engine processes events from the bus.
func TestEngineBusSubscription(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	logger, _ := zap.NewDevelopment()
	e := NewEngine(db, b, logger)

	e.Start(context.Background())
	defer e.Stop()

	b.Publish(bus.Event{Kind: bus.KindLiveMessage, Payload: bus.LiveMessage{ConvCode: "c", Message: botMsg("live1", "from live")}})
	b.Publish(bus.Event{Kind: bus.KindHistoryPage, Payload: bus.HistoryPage{ConvCode: "c", Messages: []platform.Message{botMsg("old1", "older")}}})
	b.Publish(bus.Event{Kind: bus.KindMessageRated, Payload: bus.MessageRated{ConvCode: "c", Codes: []string{"live1"}, Value: 1}})

	deadline := time.Now().Add(2 * time.Second)
	for {
		msgs, err := db.ListMessages("c", 10)
		if err != nil {
			t.Fatal(err)
		}
		rated := false
		for _, m := range msgs {
			if m.MsgCode == "live1" && m.Rating == 1 {
				rated = true
			}
		}
		if len(msgs) == 2 && rated {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("got %+v, want live1 (rated) and old1", msgs)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
