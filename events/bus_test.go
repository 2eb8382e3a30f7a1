package events

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ynotnauk/go-irc/entities"
)

func TestBusDeliversByName(t *testing.T) {
	bus := NewBus()
	var kicks, all []string
	bus.Subscribe(entities.EventKick, func(event *entities.Event) {
		kicks = append(kicks, event.Arg(0).(string))
	})
	bus.Subscribe(AnyEvent, func(event *entities.Event) {
		all = append(all, event.Name)
	})

	bus.Emit(&entities.Event{Name: entities.EventKick, Args: []any{"#chan"}})
	bus.Emit(&entities.Event{Name: entities.EventPong, Args: []any{int64(12)}})

	assert.Equal(t, []string{"#chan"}, kicks)
	assert.Equal(t, []string{entities.EventKick, entities.EventPong}, all)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()
	count := 0
	id := bus.Subscribe(AnyEvent, func(*entities.Event) { count++ })
	lineID := bus.OnDisplay(func(*entities.DisplayMessage) { count++ })

	bus.Emit(&entities.Event{Name: "x"})
	bus.Display(&entities.DisplayMessage{Text: "x"})
	bus.Unsubscribe(id)
	bus.Unsubscribe(lineID)
	bus.Unsubscribe("unknown")
	bus.Emit(&entities.Event{Name: "x"})
	bus.Display(&entities.DisplayMessage{Text: "x"})

	assert.Equal(t, 2, count)
}

func TestBusSurvivesPanickingSubscriber(t *testing.T) {
	bus := NewBus()
	delivered := false
	bus.OnDisplay(func(*entities.DisplayMessage) { panic("boom") })
	bus.OnDisplay(func(*entities.DisplayMessage) { delivered = true })

	assert.NotPanics(t, func() {
		bus.Display(&entities.DisplayMessage{Text: "hello"})
	})
	assert.True(t, delivered)
}
