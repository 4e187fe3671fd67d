package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	EntityCategory = "categoria"
	EntityExpense  = "gasto"

	OpCreated = "created"
	OpUpdated = "updated"
	OpDeleted = "deleted"
)

// ChangeEvent tells subscribers that a record changed. It carries only the
// identity of the record; consumers refetch whatever they display.
type ChangeEvent struct {
	Entity    string    `json:"entity"`
	Op        string    `json:"op"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChangeEvent(entity, op, id string) ChangeEvent {
	return ChangeEvent{
		Entity:    entity,
		Op:        op,
		ID:        id,
		Timestamp: time.Now(),
	}
}

// RoutingKey is "<entity>.<op>", e.g. "gasto.created".
func (e ChangeEvent) RoutingKey() string {
	return e.Entity + "." + e.Op
}

func (e ChangeEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func ChangeEventFromJSON(data []byte) (ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ChangeEvent{}, err
	}
	if ev.Entity != EntityCategory && ev.Entity != EntityExpense {
		return ChangeEvent{}, fmt.Errorf("unknown entity %q", ev.Entity)
	}
	return ev, nil
}
