package main

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// ActivityItem is one finished deposit or transfer as shown in the activity window.
type ActivityItem struct {
	Time    string `json:"time"`
	Action  string `json:"action"`
	Account string `json:"account,omitempty"`
	To      string `json:"to,omitempty"`
	Amount  string `json:"amount"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	TxHash  string `json:"txHash,omitempty"`
}

var (
	activity []ActivityItem
	actMu    sync.Mutex
)

func actAdd(it ActivityItem) {
	actMu.Lock()
	activity = append(activity, it)
	actMu.Unlock()
}

func actSnapshot() []ActivityItem {
	actMu.Lock()
	defer actMu.Unlock()
	return append([]ActivityItem(nil), activity...)
}

func writeActivityJSON(w io.Writer, items []ActivityItem) error {
	out := map[string]any{
		"generatedAt": time.Now().UTC().Format(time.RFC3339),
		"activity":    items,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
