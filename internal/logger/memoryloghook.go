// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

package logger

// Stores log messages in memory so tests can assert on them.

import (
	"sync"

	"github.com/sirupsen/logrus"
)

type MemoryLogHook struct {
	messagesLock sync.Mutex
	messages     []MemoryLogMessage
}

type MemoryLogMessage struct {
	Message string
	Level   logrus.Level
}

func NewMemoryLogHook() *MemoryLogHook {
	return &MemoryLogHook{}
}

func (h *MemoryLogHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *MemoryLogHook) Fire(entry *logrus.Entry) error {
	h.messagesLock.Lock()
	defer h.messagesLock.Unlock()

	h.messages = append(h.messages, MemoryLogMessage{
		Message: entry.Message,
		Level:   entry.Level,
	})
	return nil
}

// Messages returns a copy of the collected messages.
func (h *MemoryLogHook) Messages() []MemoryLogMessage {
	h.messagesLock.Lock()
	defer h.messagesLock.Unlock()

	return append([]MemoryLogMessage(nil), h.messages...)
}
