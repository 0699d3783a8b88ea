package protocol

import (
	"encoding/json"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	raw, err := Encode(TypePointerDown, PointerDownData{BallID: "b_1a2b3c4d", X: 120, Y: 88})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	msg, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != TypePointerDown {
		t.Errorf("type = %q, want %q", msg.Type, TypePointerDown)
	}

	var data PointerDownData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if data.BallID != "b_1a2b3c4d" || data.X != 120 || data.Y != 88 {
		t.Errorf("payload = %+v", data)
	}
}

func TestEncodeNilPayloadOmitsData(t *testing.T) {
	raw, err := Encode(TypePing, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(raw) != `{"type":"ping"}` {
		t.Errorf("frame = %s, want bare envelope", raw)
	}
}

func TestDecodeRejectsMalformedFrame(t *testing.T) {
	if _, err := Decode([]byte(`{"type":`)); err == nil {
		t.Error("expected error for truncated JSON")
	}
}

func TestSpawnBallOptionalFields(t *testing.T) {
	var data SpawnBallData
	if err := json.Unmarshal([]byte(`{"preset":"light"}`), &data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if data.Preset != "light" {
		t.Errorf("preset = %q", data.Preset)
	}
	if data.Size != nil || data.X != nil || data.Y != nil {
		t.Error("absent fields should stay nil")
	}

	var full SpawnBallData
	if err := json.Unmarshal([]byte(`{"size":64,"x":10,"y":20}`), &full); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if full.Size == nil || *full.Size != 64 {
		t.Errorf("size = %v", full.Size)
	}
}
