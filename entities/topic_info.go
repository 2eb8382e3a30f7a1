package entities

import "time"

type TopicInfo struct {
	Topic string
	SetBy string
	SetAt time.Time
}
