package state

import "encoding/json"

// documentAlias avoids infinite recursion when Document implements
// MarshalJSON/UnmarshalJSON itself.
type documentAlias Document

// MarshalJSON flattens Extra's keys alongside the known fields so unrelated
// data written by other components round-trips unchanged.
func (d Document) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(documentAlias(d))
	if err != nil {
		return nil, err
	}

	var merged map[string]any
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}

	for k, v := range d.Extra {
		if _, exists := merged[k]; !exists {
			merged[k] = v
		}
	}

	return json.Marshal(merged)
}

// UnmarshalJSON parses all keys into the known fields, then stashes any key
// not modeled by Document into Extra.
func (d *Document) UnmarshalJSON(data []byte) error {
	var alias documentAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*d = Document(alias)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	known := knownKeys()
	extra := make(map[string]any)
	for k, v := range raw {
		if known[k] {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		extra[k] = val
	}
	d.Extra = extra

	return nil
}

func knownKeys() map[string]bool {
	return map[string]bool{
		"supervisor":      true,
		"activeStep":      true,
		"tddPhase":        true,
		"tddPhaseStarted": true,
		"activeAgent":     true,
		"progress":        true,
		"message":         true,
		"issue":           true,
		"daemonHeartbeat": true,
	}
}
