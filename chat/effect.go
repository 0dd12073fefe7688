package chat

// Event is one server to client push.
type Event struct {
	Name string      `json:"event"`
	Data interface{} `json:"data,omitempty"`
}

type EffectKind int

const (
	// ToSelf targets the acting connection.
	ToSelf EffectKind = iota + 1
	// ToUser targets the connection on record for UserID.
	ToUser
	// ToGroup targets the connections subscribed to GroupID, except the one of UserID.
	ToGroup
	// ToAll targets every registered connection.
	ToAll
	// Subscribe joins the connection of UserID to the GroupID channel.
	Subscribe
	// Unsubscribe removes the connection of UserID from the GroupID channel.
	Unsubscribe
	// CloseGroup unsubscribes every connection from the GroupID channel.
	CloseGroup
)

// Effect is an outbound action computed by the service. Effects are applied in
// order after the operation returns.
type Effect struct {
	Kind    EffectKind
	UserID  string
	GroupID string
	Event   *Event
}

type Effects []Effect

func (e *Effects) self(name string, data interface{}) {
	*e = append(*e, Effect{Kind: ToSelf, Event: &Event{Name: name, Data: data}})
}

func (e *Effects) user(uid, name string, data interface{}) {
	*e = append(*e, Effect{Kind: ToUser, UserID: uid, Event: &Event{Name: name, Data: data}})
}

func (e *Effects) group(groupID, except, name string, data interface{}) {
	*e = append(*e, Effect{Kind: ToGroup, GroupID: groupID, UserID: except, Event: &Event{Name: name, Data: data}})
}

func (e *Effects) all(name string, data interface{}) {
	*e = append(*e, Effect{Kind: ToAll, Event: &Event{Name: name, Data: data}})
}

func (e *Effects) subscribe(uid, groupID string) {
	*e = append(*e, Effect{Kind: Subscribe, UserID: uid, GroupID: groupID})
}

func (e *Effects) unsubscribe(uid, groupID string) {
	*e = append(*e, Effect{Kind: Unsubscribe, UserID: uid, GroupID: groupID})
}

func (e *Effects) closeGroup(groupID string) {
	*e = append(*e, Effect{Kind: CloseGroup, GroupID: groupID})
}

// Named returns the effects carrying an event with the given name.
func (e Effects) Named(name string) Effects {
	var out Effects
	for _, v := range e {
		if v.Event != nil && v.Event.Name == name {
			out = append(out, v)
		}
	}
	return out
}
