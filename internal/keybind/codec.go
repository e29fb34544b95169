package keybind

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/olafkfreund/comunicado-sub000/internal/store"
	"gopkg.in/yaml.v3"
)

// Format is the closed set of serialization formats the binding table can
// round-trip through. Only the User and Plugin priority layers are ever
// written; Default and System bindings never leave the process.
type Format int

const (
	FormatJSON Format = iota
	FormatTOML
	FormatYAML
	FormatCSV
)

// FormatForPath infers a Format from a file's extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return 0, store.NewError("FormatForPath", store.KindMalformed, fmt.Errorf("unrecognized binding file extension %q", path))
	}
}

// wireBinding is the on-disk shape of a single exported binding.
type wireBinding struct {
	ID       string `json:"id" toml:"id" yaml:"id"`
	ActionID string `json:"action_id" toml:"action_id" yaml:"action_id"`
	Context  string `json:"context" toml:"context" yaml:"context"`
	Key      string `json:"key" toml:"key" yaml:"key"`
	Priority string `json:"priority" toml:"priority" yaml:"priority"`
	Enabled  bool   `json:"enabled" toml:"enabled" yaml:"enabled"`
}

type wireDocument struct {
	Bindings []wireBinding `json:"bindings" toml:"bindings" yaml:"bindings"`
}

func toWire(b Binding) wireBinding {
	return wireBinding{
		ID:       b.ID,
		ActionID: b.ActionID,
		Context:  b.Context.String(),
		Key:      b.Key.String(),
		Priority: b.Priority.String(),
		Enabled:  b.Enabled,
	}
}

func fromWire(w wireBinding) (Binding, error) {
	ctx, err := parseContext(w.Context)
	if err != nil {
		return Binding{}, err
	}
	key, err := parseKeyCombo(w.Key)
	if err != nil {
		return Binding{}, err
	}
	priority, err := parsePriority(w.Priority)
	if err != nil {
		return Binding{}, err
	}
	return Binding{
		ID:       w.ID,
		ActionID: w.ActionID,
		Context:  ctx,
		Key:      key,
		Priority: priority,
		Enabled:  w.Enabled,
	}, nil
}

var contextByName = map[string]Context{
	"global": Global, "email": Email, "compose": Compose,
	"calendar": Calendar, "search": Search, "draft_list": DraftList,
}

func parseContext(s string) (Context, error) {
	c, ok := contextByName[strings.ToLower(s)]
	if !ok {
		return 0, store.NewError("parseContext", store.KindMalformed, fmt.Errorf("unrecognized context %q", s))
	}
	return c, nil
}

// priorityByName maps the wire priority string to a Priority. Only "user"
// and "plugin" are accepted from an imported file; an empty value falls
// back to PriorityUser so hand-edited files without a priority column
// still import as the user layer, and any other value is rejected as
// Malformed.
var priorityByName = map[string]Priority{
	"user": PriorityUser, "plugin": PriorityPlugin,
}

func parsePriority(s string) (Priority, error) {
	if s == "" {
		return PriorityUser, nil
	}
	p, ok := priorityByName[strings.ToLower(s)]
	if !ok {
		return 0, store.NewError("parsePriority", store.KindMalformed, fmt.Errorf("unrecognized priority %q", s))
	}
	return p, nil
}

func parseKeyCombo(s string) (KeyCombo, error) {
	parts := strings.Split(s, "+")
	if len(parts) == 0 {
		return KeyCombo{}, store.NewError("parseKeyCombo", store.KindMalformed, fmt.Errorf("empty key combo"))
	}
	key := parts[len(parts)-1]
	if key == "" {
		return KeyCombo{}, store.NewError("parseKeyCombo", store.KindMalformed, fmt.Errorf("key combo %q has no base key", s))
	}
	var mods Modifier
	for _, m := range parts[:len(parts)-1] {
		switch strings.ToLower(m) {
		case "ctrl":
			mods |= ModCtrl
		case "shift":
			mods |= ModShift
		case "alt":
			mods |= ModAlt
		case "meta":
			mods |= ModMeta
		default:
			return KeyCombo{}, store.NewError("parseKeyCombo", store.KindMalformed, fmt.Errorf("unrecognized modifier %q in %q", m, s))
		}
	}
	return KeyCombo{Key: key, Modifiers: mods}, nil
}

// Export serializes the table's User- and Plugin-priority bindings in
// format. System and Default bindings are never serialized.
func Export(t *Table, format Format) ([]byte, error) {
	t.mu.RLock()
	var wires []wireBinding
	for _, b := range t.bindings {
		if b.Priority == PriorityUser || b.Priority == PriorityPlugin {
			wires = append(wires, toWire(*b))
		}
	}
	t.mu.RUnlock()

	doc := wireDocument{Bindings: wires}

	switch format {
	case FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
			return nil, store.NewError("Export", store.KindEngine, err)
		}
		return buf.Bytes(), nil
	case FormatYAML:
		return yaml.Marshal(doc)
	case FormatCSV:
		return exportCSV(wires)
	default:
		return nil, store.NewError("Export", store.KindMalformed, fmt.Errorf("unknown format %d", format))
	}
}

func exportCSV(wires []wireBinding) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"id", "action_id", "context", "key", "priority", "enabled"}); err != nil {
		return nil, store.NewError("Export", store.KindIo, err)
	}
	for _, wb := range wires {
		record := []string{wb.ID, wb.ActionID, wb.Context, wb.Key, wb.Priority, fmt.Sprintf("%t", wb.Enabled)}
		if err := w.Write(record); err != nil {
			return nil, store.NewError("Export", store.KindIo, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, store.NewError("Export", store.KindIo, err)
	}
	return buf.Bytes(), nil
}

// Import parses data per format and installs the User- and Plugin-layer
// bindings it contains into t. When replace is true, every existing User
// and Plugin binding is dropped first; otherwise bindings merge by id
// (later entries overwrite earlier ones with the same id). Entries whose
// action_id is not registered on t are skipped with a logged warning,
// per the binding file's contract with the action registry.
func Import(t *Table, data []byte, format Format, replace bool) error {
	wires, err := decode(data, format)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if replace {
		for id, b := range t.bindings {
			if b.Priority == PriorityUser || b.Priority == PriorityPlugin {
				delete(t.bindings, id)
			}
		}
	}

	for _, w := range wires {
		if _, ok := t.actions[w.ActionID]; !ok {
			slog.Default().Warn("skipping binding with unknown action_id", "binding_id", w.ID, "action_id", w.ActionID)
			continue
		}
		b, err := fromWire(w)
		if err != nil {
			return err
		}
		b.order = t.nextSeq
		t.nextSeq++
		stored := b
		t.bindings[b.ID] = &stored
	}
	return nil
}

func decode(data []byte, format Format) ([]wireBinding, error) {
	var doc wireDocument
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, store.NewError("Import", store.KindMalformed, err)
		}
	case FormatTOML:
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return nil, store.NewError("Import", store.KindMalformed, err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, store.NewError("Import", store.KindMalformed, err)
		}
	case FormatCSV:
		wires, err := decodeCSV(data)
		if err != nil {
			return nil, err
		}
		doc.Bindings = wires
	default:
		return nil, store.NewError("Import", store.KindMalformed, fmt.Errorf("unknown format %d", format))
	}
	return doc.Bindings, nil
}

func decodeCSV(data []byte) ([]wireBinding, error) {
	r := csv.NewReader(bytes.NewReader(data))
	records, err := r.ReadAll()
	if err != nil {
		return nil, store.NewError("Import", store.KindMalformed, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	var wires []wireBinding
	for _, rec := range records[1:] {
		if len(rec) < 6 {
			return nil, store.NewError("Import", store.KindMalformed, fmt.Errorf("short CSV row: %v", rec))
		}
		wires = append(wires, wireBinding{
			ID: rec[0], ActionID: rec[1], Context: rec[2], Key: rec[3],
			Priority: rec[4], Enabled: rec[5] == "true",
		})
	}
	return wires, nil
}
