package s3

import (
	"context"
	"errors"
	"foodflow/internal/blob/core"
	"io"
	"strings"
	"testing"
	"time"
)

func TestStoreMockedBasicFlow(t *testing.T) {
	ctx := context.Background()
	s := NewMockForTests()
	if s.Driver() != core.DriverS3 {
		t.Fatalf("unexpected driver")
	}
	info, err := s.Put(ctx, "exports/usr-1/exp.json", strings.NewReader(`{"parcels":[]}`), core.PutOptions{ContentType: "application/json"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len(`{"parcels":[]}`)) || info.ContentType != "application/json" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "exports/usr-1/exp.json", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	_, rc, err := s.Get(ctx, "exports/usr-1/exp.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != `{"parcels":[]}` {
		t.Fatalf("unexpected body %q", body)
	}
	list, err := s.List(ctx, "exports/")
	if err != nil || len(list) != 1 || list[0].Key != "exports/usr-1/exp.json" {
		t.Fatalf("unexpected list %+v (%v)", list, err)
	}
	if ok, err := s.Delete(ctx, "exports/usr-1/exp.json"); !ok || err != nil {
		t.Fatalf("expected delete, got %v %v", ok, err)
	}
	if ok, err := s.Delete(ctx, "exports/usr-1/exp.json"); ok || err != nil {
		t.Fatalf("expected missing delete to report false, got %v %v", ok, err)
	}
	if _, err := s.Head(ctx, "exports/usr-1/exp.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStorePresign(t *testing.T) {
	s := NewMockForTests()
	url, err := s.PresignURL(context.Background(), "exports/a.csv", core.SignedURLOptions{Expiry: time.Minute})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.Contains(url, "mock-bucket/exports/a.csv") || !strings.Contains(url, "X-Amz-Expires=60") {
		t.Fatalf("unexpected presigned url %s", url)
	}
	if _, err := s.PresignURL(context.Background(), "k", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported method")
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}

func TestDecodeChunked(t *testing.T) {
	out, ok := decodeChunked([]byte("5;chunk-signature=abc\r\nhello\r\n0\r\n\r\n"))
	if !ok || string(out) != "hello" {
		t.Fatalf("unexpected decode %q %v", out, ok)
	}
	if _, ok := decodeChunked([]byte("plain body")); ok {
		t.Fatalf("expected plain body to pass through")
	}
}
