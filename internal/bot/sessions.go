package bot

import (
	"container/list"
	"sync"
	"time"

	"tldr/internal/domain"
)

const (
	maxSessions = 1024
	sessionTTL  = 24 * time.Hour
)

type sessionKey struct {
	chatID    int64
	messageID int
}

// session ties a bot message to the history entry it belongs to, so a reply
// to that message continues the conversation about the entry.
type session struct {
	historyID int64
	messages  []domain.Message
}

type sessionEntry struct {
	key       sessionKey
	session   session
	expiresAt time.Time
}

// sessions is an LRU of reply sessions whose entries also expire.
type sessions struct {
	mu         sync.Mutex
	entries    map[sessionKey]*list.Element
	order      *list.List
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

func newSessions(maxEntries int, ttl time.Duration) *sessions {
	return &sessions{
		entries:    make(map[sessionKey]*list.Element, maxEntries),
		order:      list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

func (s *sessions) get(chatID int64, messageID int) (session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.entries[sessionKey{chatID, messageID}]
	if !ok {
		return session{}, false
	}

	entry := elem.Value.(*sessionEntry)
	if s.now().After(entry.expiresAt) {
		s.removeElement(elem)
		return session{}, false
	}

	s.order.MoveToFront(elem)

	return entry.session, true
}

func (s *sessions) put(chatID int64, messageID int, sess session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey{chatID, messageID}
	now := s.now()

	if elem, ok := s.entries[key]; ok {
		entry := elem.Value.(*sessionEntry)
		entry.session = sess
		entry.expiresAt = now.Add(s.ttl)
		s.order.MoveToFront(elem)

		return
	}

	s.entries[key] = s.order.PushFront(&sessionEntry{
		key:       key,
		session:   sess,
		expiresAt: now.Add(s.ttl),
	})

	s.evictExpiredLocked(now)
	s.enforceSizeLimitLocked()
}

func (s *sessions) evictExpiredLocked(now time.Time) {
	for elem := s.order.Back(); elem != nil; {
		prev := elem.Prev()
		if now.After(elem.Value.(*sessionEntry).expiresAt) {
			s.removeElement(elem)
		}
		elem = prev
	}
}

func (s *sessions) enforceSizeLimitLocked() {
	for len(s.entries) > s.maxEntries {
		elem := s.order.Back()
		if elem == nil {
			return
		}
		s.removeElement(elem)
	}
}

func (s *sessions) removeElement(elem *list.Element) {
	delete(s.entries, elem.Value.(*sessionEntry).key)
	s.order.Remove(elem)
}
