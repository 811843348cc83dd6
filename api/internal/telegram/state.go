package telegram

import (
	"sync"

	"algo-viz/api/internal/ir"
)

const (
	maxMessage = 3900
	maxCaption = 1000
)

// chatState keeps per-chat preferences in memory. They are lost on restart.
type chatState struct {
	engines sync.Map // chatID -> string
	domains sync.Map // chatID -> ir.Domain
	busy    sync.Map // chatID -> struct{}
}

func newChatState() *chatState { return &chatState{} }

func (s *chatState) engine(chatID int64) string {
	if v, ok := s.engines.Load(chatID); ok {
		return v.(string)
	}
	return ""
}

func (s *chatState) setEngine(chatID int64, name string) { s.engines.Store(chatID, name) }

func (s *chatState) domain(chatID int64) ir.Domain {
	if v, ok := s.domains.Load(chatID); ok {
		return v.(ir.Domain)
	}
	return ""
}

func (s *chatState) setDomain(chatID int64, d ir.Domain) {
	if d == "" {
		s.domains.Delete(chatID)
		return
	}
	s.domains.Store(chatID, d)
}

// tryLock allows one running generation per chat.
func (s *chatState) tryLock(chatID int64) bool {
	_, loaded := s.busy.LoadOrStore(chatID, struct{}{})
	return !loaded
}

func (s *chatState) unlock(chatID int64) { s.busy.Delete(chatID) }
