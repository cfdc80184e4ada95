package interceptors

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"concord-access-core/backend/internal/telemetry/domain"
)

type memEmitter struct {
	mu     sync.Mutex
	events []*domain.Event
}

func (m *memEmitter) Emit(_ context.Context, e *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memEmitter) waitForEvent(t *testing.T) *domain.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m.mu.Lock()
		if len(m.events) > 0 {
			e := m.events[0]
			m.mu.Unlock()
			return e
		}
		m.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no telemetry event emitted")
	return nil
}

func TestTelemetryUnary_EmitsRequestEvent(t *testing.T) {
	emitter := &memEmitter{}
	interceptor := TelemetryUnary(emitter, nil)

	ctx := WithIdentity(context.Background(), "user-1", "session-1")
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return "ok", nil
	}

	if _, err := interceptor(ctx, "request", &grpc.UnaryServerInfo{
		FullMethod: "/concord.SessionService/Rotate",
	}, handler); err != nil {
		t.Fatalf("interceptor: %v", err)
	}

	e := emitter.waitForEvent(t)
	if e.EventType != domain.EventGRPCRequest {
		t.Errorf("event type = %q, want %q", e.EventType, domain.EventGRPCRequest)
	}
	if e.UserID != "user-1" || e.SessionID != "session-1" {
		t.Errorf("identity = (%q, %q), want (user-1, session-1)", e.UserID, e.SessionID)
	}
	var meta grpcRequestMetadata
	if err := json.Unmarshal(e.Metadata, &meta); err != nil {
		t.Fatalf("metadata unmarshal: %v", err)
	}
	if meta.FullMethod != "/concord.SessionService/Rotate" {
		t.Errorf("full_method = %q", meta.FullMethod)
	}
	if meta.StatusCode != codes.OK.String() {
		t.Errorf("status_code = %q, want OK", meta.StatusCode)
	}
}

func TestTelemetryUnary_RecordsErrorCode(t *testing.T) {
	emitter := &memEmitter{}
	interceptor := TelemetryUnary(emitter, nil)

	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.PermissionDenied, "denied")
	}

	_, err := interceptor(context.Background(), "request", &grpc.UnaryServerInfo{
		FullMethod: "/concord.AccessService/Resolve",
	}, handler)
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("handler error should pass through, got %v", err)
	}

	e := emitter.waitForEvent(t)
	var meta grpcRequestMetadata
	if err := json.Unmarshal(e.Metadata, &meta); err != nil {
		t.Fatalf("metadata unmarshal: %v", err)
	}
	if meta.StatusCode != codes.PermissionDenied.String() {
		t.Errorf("status_code = %q, want PermissionDenied", meta.StatusCode)
	}
}

func TestTelemetryUnary_SkipMethod(t *testing.T) {
	emitter := &memEmitter{}
	skip := map[string]bool{"/grpc.health.v1.Health/Check": true}
	interceptor := TelemetryUnary(emitter, skip)

	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return "ok", nil
	}
	if _, err := interceptor(context.Background(), "request", &grpc.UnaryServerInfo{
		FullMethod: "/grpc.health.v1.Health/Check",
	}, handler); err != nil {
		t.Fatalf("interceptor: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	emitter.mu.Lock()
	defer emitter.mu.Unlock()
	if len(emitter.events) != 0 {
		t.Errorf("skipped method emitted %d events", len(emitter.events))
	}
}

func TestTelemetryUnary_NilEmitterPassesThrough(t *testing.T) {
	interceptor := TelemetryUnary(nil, nil)

	wantErr := errors.New("boom")
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, wantErr
	}
	_, err := interceptor(context.Background(), "request", &grpc.UnaryServerInfo{
		FullMethod: "/test.Service/Method",
	}, handler)
	if !errors.Is(err, wantErr) {
		t.Errorf("error = %v, want %v", err, wantErr)
	}
}
