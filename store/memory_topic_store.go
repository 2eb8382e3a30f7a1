package store

import (
	"strings"
	"sync"

	"github.com/ynotnauk/go-irc/entities"
)

type MemoryTopicStore struct {
	mu     sync.RWMutex
	topics map[string]entities.TopicInfo
}

func NewMemoryTopicStore() *MemoryTopicStore {
	return &MemoryTopicStore{
		topics: make(map[string]entities.TopicInfo),
	}
}

func topicKey(network string, channel string) string {
	return network + "\x00" + strings.ToLower(channel)
}

func (s *MemoryTopicStore) SetTopic(network string, channel string, topic *entities.TopicInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics[topicKey(network, channel)] = *topic
	return nil
}

func (s *MemoryTopicStore) GetTopic(network string, channel string) (*entities.TopicInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	topic, ok := s.topics[topicKey(network, channel)]
	if !ok {
		return nil, ErrTopicNotFound
	}
	return &topic, nil
}
