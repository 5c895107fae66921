// Package session remembers the last chat conversation id per device so a
// returning customer lands in the same conversation. Stores never fail
// loudly: when the backing storage is unavailable every operation degrades to
// a no-op and Load reports absent.
package session

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
)

type Store interface {
	Save(conversationID string)
	Load() (conversationID string, ok bool)
	Clear()
}

// File persists a single conversation id in a small JSON file, replaced
// atomically on every save.
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

type fileRecord struct {
	ConversationID string `json:"conversation_id"`
}

func (f *File) Save(conversationID string) {
	if conversationID == "" {
		return
	}
	data, err := json.Marshal(fileRecord{ConversationID: conversationID})
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		log.Printf("session: mkdir failed: %v", err)
		return
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		log.Printf("session: write failed: %v", err)
		return
	}
	if err := os.Rename(tmp, f.path); err != nil {
		log.Printf("session: rename failed: %v", err)
	}
}

func (f *File) Load() (string, bool) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return "", false
	}
	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", false
	}
	if rec.ConversationID == "" {
		return "", false
	}
	return rec.ConversationID, true
}

func (f *File) Clear() {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		log.Printf("session: clear failed: %v", err)
	}
}

// Memory is a process-local Store for tests.
type Memory struct {
	id string
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Save(conversationID string) {
	if conversationID != "" {
		m.id = conversationID
	}
}

func (m *Memory) Load() (string, bool) {
	return m.id, m.id != ""
}

func (m *Memory) Clear() { m.id = "" }
