package interfaces

import "github.com/ynotnauk/go-irc/entities"

type DisplayEmitter interface {
	Display(message *entities.DisplayMessage)
}

type EventEmitter interface {
	Emit(event *entities.Event)
}
