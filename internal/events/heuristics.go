package events

import "strings"

// Heuristics translates unstructured backend text into typed signals. It is
// the only place that knows which phrases the backend prints; swapping it out
// is enough once the backend emits structured events instead.
type Heuristics struct {
	// SuccessPhrases mark a status update as the terminal success of a run.
	SuccessPhrases []string
	// KillSuccessPhrases produce a success toast unless the session has
	// already seen an error.
	KillSuccessPhrases []string
	// FailurePhrases are surfaced to the user as warning toasts.
	FailurePhrases []string
	// ServerReadyPhrases mark log lines worth scanning for a preview port.
	ServerReadyPhrases []string
	// ErrorMarker sets the sticky error flag when found case-insensitively.
	ErrorMarker string
}

// DefaultHeuristics returns the phrase lists the backend is known to print.
func DefaultHeuristics() *Heuristics {
	return &Heuristics{
		SuccessPhrases:     []string{"actions executed"},
		KillSuccessPhrases: []string{"Script killed successfully"},
		FailurePhrases: []string{
			"Failed to kill process",
			"Error killing process",
			"Error executing actions",
			"Error installing dependencies",
		},
		ServerReadyPhrases: []string{
			"started server",
			"http",
			"127.0.0.1",
			"localhost",
			"0.0.0.0",
			"running on",
			"serving at",
			"server running",
		},
		ErrorMarker: "error",
	}
}

// Signals is what the heuristics extracted from one piece of content.
type Signals struct {
	Error       bool
	Failure     string // matched failure phrase, empty if none
	Success     bool
	KillSuccess bool
	ServerReady bool
}

// Inspect classifies content. status is the explicit status field of the
// payload, if any.
func (h *Heuristics) Inspect(content, status string) Signals {
	lower := strings.ToLower(content)
	sig := Signals{
		Error:       strings.EqualFold(status, "error"),
		Success:     containsAny(content, h.SuccessPhrases),
		KillSuccess: containsAny(content, h.KillSuccessPhrases),
		ServerReady: containsAnyFold(lower, h.ServerReadyPhrases),
	}
	if h.ErrorMarker != "" && strings.Contains(lower, strings.ToLower(h.ErrorMarker)) {
		sig.Error = true
	}
	for _, phrase := range h.FailurePhrases {
		if phrase != "" && strings.Contains(content, phrase) {
			sig.Failure = phrase
			break
		}
	}
	return sig
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func containsAnyFold(lower string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
