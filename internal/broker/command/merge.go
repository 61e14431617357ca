package command

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"

	"github.com/autopeer-io/hmibroker/internal/broker/core"
)

// envelopeKeys are HMI status fields that never reach the mobile payload.
var envelopeKeys = []string{"resultCode", "info"}

// mergeEvents deep-merges event payloads into one. The result depends only on
// the set of events, not on their arrival order: events are merged in the
// order of their canonical JSON encoding.
func mergeEvents(events []core.Payload) core.Payload {
	type keyed struct {
		enc string
		p   core.Payload
	}
	sorted := make([]keyed, 0, len(events))
	for _, ev := range events {
		// encoding/json writes map keys sorted, which makes the encoding canonical.
		b, _ := json.Marshal(ev)
		sorted = append(sorted, keyed{enc: string(b), p: ev})
	}
	slices.SortFunc(sorted, func(a, b keyed) int { return strings.Compare(a.enc, b.enc) })

	out := core.Payload{}
	for _, k := range sorted {
		mergeInto(out, core.MustClonePayload(k.p))
	}
	for _, key := range envelopeKeys {
		delete(out, key)
	}
	return out
}

func mergeInto(dst, src map[string]any) {
	for _, k := range slices.Sorted(maps.Keys(src)) {
		sv := src[k]
		if sm, ok := sv.(map[string]any); ok {
			if dm, ok := dst[k].(map[string]any); ok {
				mergeInto(dm, sm)
				continue
			}
		}
		dst[k] = sv
	}
}
