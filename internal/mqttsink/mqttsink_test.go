package mqttsink

import "testing"

func TestMessageType_ExtractsType(t *testing.T) {
	got := messageType([]byte(`{"type":"node_error","node_index":2}`))
	if got != "node_error" {
		t.Errorf("messageType = %q, want node_error", got)
	}
}

func TestMessageType_EmptyOnMalformedPayload(t *testing.T) {
	if got := messageType([]byte(`not json`)); got != "" {
		t.Errorf("messageType = %q, want empty", got)
	}
}

func TestMessageType_EmptyWhenFieldMissing(t *testing.T) {
	if got := messageType([]byte(`{"node_index":2}`)); got != "" {
		t.Errorf("messageType = %q, want empty", got)
	}
}

func TestSend_ReturnsErrorWhenNotConnected(t *testing.T) {
	s := New(Config{TopicBase: "pipelined/test"}, nil)
	if err := s.Send([]byte(`{"type":"pipeline_start"}`)); err == nil {
		t.Fatal("expected error sending before Start")
	}
}

func TestStop_NoopWhenNeverStarted(t *testing.T) {
	s := New(Config{TopicBase: "pipelined/test"}, nil)
	if err := s.Stop(nil); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
