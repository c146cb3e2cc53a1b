// Package rislive provides a WebSocket client for the RIPE RIS Live BGP
// stream. Parsed updates are normalized to the same schema.BGPUpdate shape
// the Kafka ingest path produces, so the rest of the pipeline does not care
// where a route update came from.
package rislive

import (
	"encoding/json"
	"fmt"
	"strconv"

	"nettriage/internal/schema"
)

// risMessage is the top-level envelope on the RIS Live stream.
type risMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// risUpdateData is the payload of a ris_message of type UPDATE.
type risUpdateData struct {
	Timestamp     float64           `json:"timestamp"`
	Peer          string            `json:"peer"`
	PeerASN       json.RawMessage   `json:"peer_asn"` // string or number on the wire
	Path          json.RawMessage   `json:"path"`
	Announcements []risAnnouncement `json:"announcements"`
	Withdrawals   []string          `json:"withdrawals"`
}

type risAnnouncement struct {
	Prefixes []string `json:"prefixes"`
}

// ParseMessage converts one RIS Live WebSocket frame into a BGPUpdate.
// Frames that are not BGP updates (rrc lists, pongs, errors) return
// (nil, nil) so callers can skip them without treating them as failures.
func ParseMessage(data []byte) (*schema.BGPUpdate, error) {
	var msg risMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	if msg.Type != "ris_message" {
		return nil, nil
	}

	var upd risUpdateData
	if err := json.Unmarshal(msg.Data, &upd); err != nil {
		return nil, fmt.Errorf("unmarshal update data: %w", err)
	}

	peer := upd.Peer
	if peer == "" {
		peer = parseASN(upd.PeerASN)
	}
	if peer == "" {
		return nil, nil
	}

	out := &schema.BGPUpdate{
		Timestamp: upd.Timestamp,
		Peer:      peer,
		Type:      "UPDATE",
	}
	for _, ann := range upd.Announcements {
		out.Announce = append(out.Announce, ann.Prefixes...)
	}
	out.Withdraw = append(out.Withdraw, upd.Withdrawals...)
	if len(out.Announce) == 0 && len(out.Withdraw) == 0 {
		return nil, nil
	}

	if path := parseASPath(upd.Path); len(path) > 0 {
		out.Attrs = map[string]any{"as_path": path}
	}
	return out, nil
}

// parseASN handles peer ASNs arriving as either a JSON string or number.
func parseASN(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var num uint64
	if err := json.Unmarshal(data, &num); err == nil {
		return strconv.FormatUint(num, 10)
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		return str
	}
	return ""
}

// parseASPath flattens an AS path that may contain nested arrays (AS_SET
// segments). Nested members are kept in order of appearance.
func parseASPath(data json.RawMessage) []int {
	if len(data) == 0 {
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	var path []int
	for _, elem := range raw {
		var asn int
		if err := json.Unmarshal(elem, &asn); err == nil {
			path = append(path, asn)
			continue
		}
		var set []int
		if err := json.Unmarshal(elem, &set); err == nil {
			path = append(path, set...)
		}
	}
	return path
}
