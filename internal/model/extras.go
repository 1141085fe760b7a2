package model

import "encoding/json"

// extraFields returns the keys of raw that are not in known, each still-encoded as JSON, so that
// fields this binary does not recognize round-trip unchanged through load/mutate/save cycles.
func extraFields(raw map[string]json.RawMessage, known map[string]struct{}) json.RawMessage {
	extra := make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		if _, ok := known[k]; ok {
			continue
		}
		extra[k] = v
	}
	if len(extra) == 0 {
		return nil
	}
	b, err := json.Marshal(extra)
	if err != nil {
		return nil
	}
	return b
}

// mergeExtras decodes extras (if any) back into raw so MarshalJSON can re-emit unknown fields
// alongside the known ones.
func mergeExtras(raw map[string]json.RawMessage, extras json.RawMessage) map[string]json.RawMessage {
	if raw == nil {
		raw = map[string]json.RawMessage{}
	}
	if len(extras) == 0 {
		return raw
	}
	var extra map[string]json.RawMessage
	if err := json.Unmarshal(extras, &extra); err != nil {
		return raw
	}
	for k, v := range extra {
		raw[k] = v
	}
	return raw
}

var entryKnownFields = fieldSet("id", "name", "path", "argsExtra", "notes", "createdAt",
	"updatedAt", "lastScanAt")

func (e *Entry) UnmarshalJSON(data []byte) error {
	type alias Entry
	a := (*alias)(e)
	if err := json.Unmarshal(data, a); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Extras = extraFields(raw, entryKnownFields)
	return nil
}

func (e Entry) MarshalJSON() ([]byte, error) {
	type alias Entry
	b, err := json.Marshal(alias(e))
	if err != nil {
		return nil, err
	}
	return remarshalWithExtras(b, e.Extras)
}

var itemKnownFields = fieldSet("id", "entryId", "path", "sizeBytes", "mtimeSec",
	"sourceFingerprint", "probe", "scanAt", "ready", "status", "lastJobId", "lastError",
	"lastTranscodeAt", "transcodeCount", "ratio")

func (it *Item) UnmarshalJSON(data []byte) error {
	type alias Item
	a := (*alias)(it)
	if err := json.Unmarshal(data, a); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	it.Extras = extraFields(raw, itemKnownFields)
	return nil
}

func (it Item) MarshalJSON() ([]byte, error) {
	type alias Item
	b, err := json.Marshal(alias(it))
	if err != nil {
		return nil, err
	}
	return remarshalWithExtras(b, it.Extras)
}

var jobKnownFields = fieldSet("id", "itemId", "workerId", "status", "claimedAt", "startedAt",
	"finishedAt", "error", "cancelRequested", "lastUpdateAt", "progress")

func (j *Job) UnmarshalJSON(data []byte) error {
	type alias Job
	a := (*alias)(j)
	if err := json.Unmarshal(data, a); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	j.Extras = extraFields(raw, jobKnownFields)
	return nil
}

func (j Job) MarshalJSON() ([]byte, error) {
	type alias Job
	b, err := json.Marshal(alias(j))
	if err != nil {
		return nil, err
	}
	return remarshalWithExtras(b, j.Extras)
}

var workerKnownFields = fieldSet("id", "name", "status", "lastHeartbeatAt", "workWindows",
	"withinWorkHours")

func (w *Worker) UnmarshalJSON(data []byte) error {
	type alias Worker
	a := (*alias)(w)
	if err := json.Unmarshal(data, a); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	w.Extras = extraFields(raw, workerKnownFields)
	return nil
}

func (w Worker) MarshalJSON() ([]byte, error) {
	type alias Worker
	b, err := json.Marshal(alias(w))
	if err != nil {
		return nil, err
	}
	return remarshalWithExtras(b, w.Extras)
}

var configKnownFields = fieldSet("baselineArgs", "ffprobePath", "targetMbPerMinByHeight",
	"targetSamplesByHeight", "audioLangList", "subtitleLangList")

func (c *Config) UnmarshalJSON(data []byte) error {
	type alias Config
	a := (*alias)(c)
	if err := json.Unmarshal(data, a); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Extras = extraFields(raw, configKnownFields)
	return nil
}

func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	b, err := json.Marshal(alias(c))
	if err != nil {
		return nil, err
	}
	return remarshalWithExtras(b, c.Extras)
}

func fieldSet(keys ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return m
}

// remarshalWithExtras decodes the already-marshaled known fields back into a map and merges in
// extras before re-encoding, so the emitted object carries both known and unknown fields.
func remarshalWithExtras(known []byte, extras json.RawMessage) ([]byte, error) {
	if len(extras) == 0 {
		return known, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(known, &raw); err != nil {
		return known, nil
	}
	raw = mergeExtras(raw, extras)
	return json.Marshal(raw)
}
