package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func TestSchemas_ValidateSamples(t *testing.T) {
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

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	obsSchema := compile("obs.schema.json")
	actSchema := compile("act.schema.json")

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1",
	  "agent_name":"bot1"
	}`), &hello)
	validate(helloSchema, hello)

	var welcome any
	_ = json.Unmarshal([]byte(`{
	  "type":"WELCOME",
	  "protocol_version":"1",
	  "match_id":"m-20260823-0001",
	  "player":0,
	  "match_params":{
	    "map_size":12,
	    "max_turns":1000,
	    "turn_timeout_ms":2000,
	    "seed":1337
	  },
	  "rules_digest":"deadbeef"
	}`), &welcome)
	validate(welcomeSchema, welcome)

	var obs any
	_ = json.Unmarshal([]byte(`{
	  "type":"OBS",
	  "protocol_version":"1",
	  "match_id":"m-20260823-0001",
	  "turn":0,
	  "player":0,
	  "grid":[[0,-1],[1,-1]],
	  "units":[{"id":1,"owner":0,"kind":2,"x":0,"y":0,"health":45,"boosted":false,"attacks_remaining":0}],
	  "energy":[0,0],
	  "territory":[0.25,0.25],
	  "exploration":0.03,
	  "events":[]
	}`), &obs)
	validate(obsSchema, obs)

	var act any
	_ = json.Unmarshal([]byte(`{
	  "type":"ACT",
	  "protocol_version":"1",
	  "match_id":"m-20260823-0001",
	  "turn":0,
	  "orders":[
	    {"unit":1,"act":[0,2,1,0]},
	    {"unit":3,"act":[13,7,4,0]}
	  ]
	}`), &act)
	validate(actSchema, act)
}
