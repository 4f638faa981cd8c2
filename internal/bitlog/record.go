package bitlog

import "encoding/json"

// Command is the closed sum of things this package ever persists: a Set or
// a Remove. Exactly one of Set or Remove is non-nil; encoding/decoding keeps
// the tag external ("Set"/"Remove") rather than adding a discriminant field,
// so the wire shape stays `{"Set":{...}}` or `{"Remove":{...}}`.
type Command struct {
	Set    *SetCommand
	Remove *RemoveCommand
}

// SetCommand assigns value to key.
type SetCommand struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// RemoveCommand deletes key.
type RemoveCommand struct {
	Key string `json:"key"`
}

// setCommand builds the wire shape for a Set record.
func setCommand(key, value string) Command {
	return Command{Set: &SetCommand{Key: key, Value: value}}
}

// removeCommand builds the wire shape for a Remove record.
func removeCommand(key string) Command {
	return Command{Remove: &RemoveCommand{Key: key}}
}

// key returns the key carried by whichever variant is set.
func (c Command) key() string {
	if c.Set != nil {
		return c.Set.Key
	}
	if c.Remove != nil {
		return c.Remove.Key
	}
	return ""
}

// wireCommand is the envelope actually marshaled, one field present at a
// time. Keeping it separate from Command lets encodeRecord/decodeRecord stay
// simple round-trip functions instead of custom field-walking code.
type wireCommand struct {
	Set    *SetCommand    `json:"Set,omitempty"`
	Remove *RemoveCommand `json:"Remove,omitempty"`
}

// encodeRecord renders cmd as a single line: JSON object followed by '\n'.
// The returned bytes are exactly what the Log Writer appends, so its length
// is also the record's on-disk length.
func encodeRecord(cmd Command) ([]byte, error) {
	w := wireCommand{Set: cmd.Set, Remove: cmd.Remove}

	b, err := json.Marshal(w)
	if err != nil {
		return nil, serdeErr(err)
	}

	b = append(b, '\n')
	return b, nil
}

// decodeRecord parses a single line (without its trailing newline) into a
// Command. offset is used only to annotate a LogCorruption error.
func decodeRecord(line []byte, offset int64) (Command, error) {
	var w wireCommand
	if err := json.Unmarshal(line, &w); err != nil {
		return Command{}, logCorruptionErr(offset, err)
	}

	if w.Set == nil && w.Remove == nil {
		return Command{}, logCorruptionErr(offset, errEmptyCommand)
	}
	if w.Set != nil && w.Remove != nil {
		return Command{}, logCorruptionErr(offset, errAmbiguousCommand)
	}

	return Command{Set: w.Set, Remove: w.Remove}, nil
}
