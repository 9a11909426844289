package workspace

// Selection is a user-chosen span of text in the active document, expressed
// as half-open rune offsets [StartIndex, EndIndex).
type Selection struct {
	Text       string `json:"text"`
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
}

// SelectionProvider abstracts wherever selections come from (a browser
// bridge in production, a stub in tests). Current returns nil when no valid
// selection exists in the active document.
type SelectionProvider interface {
	Current() *Selection
}

// FocusSignal delivers a tick whenever the client regains foreground focus.
// The sync watcher probes the remote store on each tick.
type FocusSignal interface {
	Focus() <-chan struct{}
}
