package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func TestSchemasValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	reject := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err == nil {
			t.Fatalf("expected validation failure, got none")
		}
	}

	messageSchema := compile("message.schema.json")
	pointerDownSchema := compile("pointer_down.schema.json")
	spawnBallSchema := compile("spawn_ball.schema.json")
	frameSchema := compile("frame.schema.json")
	welcomeSchema := compile("welcome.schema.json")

	var envelope any
	_ = json.Unmarshal([]byte(`{
	  "type":"pointer_down",
	  "data":{"ball_id":"b_1a2b3c4d","x":120,"y":88}
	}`), &envelope)
	validate(messageSchema, envelope)

	var bare any
	_ = json.Unmarshal([]byte(`{"type":"ping"}`), &bare)
	validate(messageSchema, bare)

	var down any
	_ = json.Unmarshal([]byte(`{"ball_id":"b_1a2b3c4d","x":120,"y":88.5}`), &down)
	validate(pointerDownSchema, down)

	var badDown any
	_ = json.Unmarshal([]byte(`{"ball_id":"ball-7","x":120,"y":88}`), &badDown)
	reject(pointerDownSchema, badDown)

	var spawn any
	_ = json.Unmarshal([]byte(`{"preset":"heavy"}`), &spawn)
	validate(spawnBallSchema, spawn)

	var badSpawn any
	_ = json.Unmarshal([]byte(`{"preset":"giant"}`), &badSpawn)
	reject(spawnBallSchema, badSpawn)

	var frame any
	_ = json.Unmarshal([]byte(`{
	  "arena_id":"a_0123456789",
	  "version":42,
	  "balls":[
	    {
	      "id":"b_1a2b3c4d",
	      "position":{"x":100,"y":520},
	      "velocity":{"x":0,"y":0},
	      "size":80,
	      "is_animating":false,
	      "is_dragging":false
	    },
	    {
	      "id":"b_99aabbcc",
	      "position":{"x":300.5,"y":12.25},
	      "velocity":{"x":-2.4,"y":6.1},
	      "size":120,
	      "is_animating":true,
	      "is_dragging":false,
	      "last_collision_at":1700000000123
	    }
	  ]
	}`), &frame)
	validate(frameSchema, frame)

	var welcome any
	_ = json.Unmarshal([]byte(`{
	  "guest_id":7,
	  "display_name":"drifter",
	  "protocol_version":"1.0"
	}`), &welcome)
	validate(welcomeSchema, welcome)
}
