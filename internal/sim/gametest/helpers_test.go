package gametest

import "quantumharvest.ai/internal/protocol"

func eventsOf(events []protocol.Event, action string) []protocol.Event {
	var out []protocol.Event
	for _, e := range events {
		if e["type"] == "ACTION" && e["action"] == action {
			out = append(out, e)
		}
	}
	return out
}

func resultEvent(events []protocol.Event) protocol.Event {
	for _, e := range events {
		if e["type"] == "RESULT" {
			return e
		}
	}
	return nil
}

func effectOf(e protocol.Event) map[string]interface{} {
	eff, _ := e["effect"].(map[string]interface{})
	return eff
}
