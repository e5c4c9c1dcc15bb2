package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
)

func TestRedisGetHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()
	c := NewRedisFromClient(db, time.Hour, "test:")

	data, _ := json.Marshal(completedRecord(7, "ja", "試験"))
	mock.ExpectGet("test:exam:7:ja").SetVal(string(data))

	rec, ok := c.Get(context.Background(), 7, "ja")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if rec.TranslatedText != "試験" || rec.ExamID != 7 {
		t.Errorf("unexpected record: %+v", rec)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRedisGetMissAndError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()
	c := NewRedisFromClient(db, time.Hour, "test:")

	mock.ExpectGet("test:exam:1:de").RedisNil()
	if _, ok := c.Get(context.Background(), 1, "de"); ok {
		t.Error("expected miss on redis.Nil")
	}

	mock.ExpectGet("test:exam:1:de").SetErr(errors.New("connection refused"))
	if _, ok := c.Get(context.Background(), 1, "de"); ok {
		t.Error("expected miss on backend error")
	}

	mock.ExpectGet("test:exam:1:de").SetVal("{not json")
	if _, ok := c.Get(context.Background(), 1, "de"); ok {
		t.Error("expected miss on corrupt entry")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRedisSetAndDelete(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()
	c := NewRedisFromClient(db, time.Hour, "")

	rec := completedRecord(3, "fr", "Bonjour")
	data, _ := json.Marshal(rec)
	mock.ExpectSet("examprep:exam:3:fr", data, time.Hour).SetVal("OK")
	mock.ExpectDel("examprep:exam:3:fr").SetVal(1)

	if err := c.Set(context.Background(), rec); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Delete(context.Background(), 3, "fr"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
