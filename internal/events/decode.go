package events

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ProtocolError reports a payload that does not match the expected schema of
// its event. It is recoverable: the event is dropped and the session goes on.
type ProtocolError struct {
	Event  Name
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed %q payload: %s: %v", e.Event, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed %q payload: %s", e.Event, e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// Decode turns the raw arguments of a socket.io event into a typed Event.
func Decode(name Name, args []any) (Event, error) {
	var payload any
	if len(args) > 0 {
		payload = args[0]
	}

	switch name {
	case Connect:
		return ConnectEvent{}, nil
	case Disconnect:
		reason, _ := payload.(string)
		return DisconnectEvent{Reason: reason}, nil
	case ClientUpdate:
		text, err := textPayload(name, payload)
		if err != nil {
			return nil, err
		}
		return ClientUpdateEvent{Text: text}, nil
	case DeleteUpdate:
		text, err := textPayload(name, payload)
		if err != nil {
			return nil, err
		}
		return DeleteUpdateEvent{Text: text}, nil
	case InstallDep:
		text, err := textPayload(name, payload)
		if err != nil {
			return nil, err
		}
		return InstallDepEvent{Content: text}, nil
	case InstallUpdate:
		return decodeInstallUpdate(payload)
	case MissingDeps:
		return decodeMissingDeps(payload)
	case NotSupported:
		return decodeNotSupported(payload)
	}
	return nil, &ProtocolError{Event: name, Reason: "unknown event"}
}

// textPayload accepts either a bare string or an object with a content field.
func textPayload(name Name, payload any) (string, error) {
	switch v := payload.(type) {
	case string:
		return v, nil
	case map[string]any:
		if content, ok := v["content"].(string); ok {
			return content, nil
		}
		if _, ok := v["content"]; !ok {
			return "", &ProtocolError{Event: name, Reason: "missing content field"}
		}
		return "", &ProtocolError{Event: name, Reason: "content is not a string"}
	case nil:
		return "", &ProtocolError{Event: name, Reason: "empty payload"}
	}
	return "", &ProtocolError{Event: name, Reason: fmt.Sprintf("unexpected payload type %T", payload)}
}

func decodeInstallUpdate(payload any) (Event, error) {
	var ev InstallUpdateEvent
	if err := remarshal(payload, &ev); err != nil {
		return nil, &ProtocolError{Event: InstallUpdate, Reason: "not an object", Err: err}
	}
	switch ev.Type {
	case UpdateLog, UpdateInfo, UpdateStatus, UpdateCatch, UpdateInstallFinished:
	case UpdateProgress:
		if ev.Progress == nil {
			var p Progress
			if err := remarshal(payload, &p); err == nil {
				ev.Progress = &p
			}
		}
	case "":
		return nil, &ProtocolError{Event: InstallUpdate, Reason: "missing type"}
	default:
		return nil, &ProtocolError{Event: InstallUpdate, Reason: fmt.Sprintf("unknown type %q", ev.Type)}
	}
	return ev, nil
}

// decodeMissingDeps accepts a list of names, a list of dependency objects, or
// an object keyed by dependency name (optionally wrapped in a "deps" field).
func decodeMissingDeps(payload any) (Event, error) {
	if wrapped, ok := payload.(map[string]any); ok {
		if inner, ok := wrapped["deps"]; ok {
			payload = inner
		}
	}

	deps := make(map[string]Dependency)
	switch v := payload.(type) {
	case nil:
	case []any:
		for i, item := range v {
			switch entry := item.(type) {
			case string:
				deps[entry] = Dependency{Name: entry, Status: "missing"}
			case map[string]any:
				var d Dependency
				if err := remarshal(entry, &d); err != nil || d.Name == "" {
					return nil, &ProtocolError{Event: MissingDeps, Reason: fmt.Sprintf("entry %d has no name", i), Err: err}
				}
				if d.Status == "" {
					d.Status = "missing"
				}
				deps[d.Name] = d
			default:
				return nil, &ProtocolError{Event: MissingDeps, Reason: fmt.Sprintf("entry %d has type %T", i, item)}
			}
		}
	case map[string]any:
		for name, raw := range v {
			var d Dependency
			switch entry := raw.(type) {
			case map[string]any:
				if err := remarshal(entry, &d); err != nil {
					return nil, &ProtocolError{Event: MissingDeps, Reason: fmt.Sprintf("dependency %q", name), Err: err}
				}
			case string:
				d.Status = entry
			case bool:
				d.Status = "installed"
				if !entry {
					d.Status = "missing"
				}
			default:
				return nil, &ProtocolError{Event: MissingDeps, Reason: fmt.Sprintf("dependency %q has type %T", name, raw)}
			}
			d.Name = name
			if d.Status == "" {
				d.Status = "missing"
			}
			deps[name] = d
		}
	default:
		return nil, &ProtocolError{Event: MissingDeps, Reason: fmt.Sprintf("unexpected payload type %T", payload)}
	}
	return MissingDepsEvent{Dependencies: deps}, nil
}

func decodeNotSupported(payload any) (Event, error) {
	var raw any = payload
	if obj, ok := payload.(map[string]any); ok {
		raw = obj["reasons"]
		if raw == nil {
			raw = obj["reason"]
		}
	}

	var reasons []string
	switch v := raw.(type) {
	case string:
		reasons = []string{v}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				reasons = append(reasons, s)
			}
		}
	case []string:
		reasons = v
	default:
		return nil, &ProtocolError{Event: NotSupported, Reason: fmt.Sprintf("unexpected reasons type %T", raw)}
	}

	cleaned := make([]string, 0, len(reasons))
	for _, r := range reasons {
		if r = strings.TrimSpace(r); r != "" {
			cleaned = append(cleaned, r)
		}
	}
	if len(cleaned) == 0 {
		return nil, &ProtocolError{Event: NotSupported, Reason: "no reasons given"}
	}
	return NotSupportedEvent{Reasons: cleaned}, nil
}

func remarshal(in any, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// SortedNames returns the dependency names of ev in lexical order.
func (ev MissingDepsEvent) SortedNames() []string {
	names := make([]string, 0, len(ev.Dependencies))
	for name := range ev.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
