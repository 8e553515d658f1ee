package room

// Event is anything a room reacts to. Client events carry the client that
// caused them; TimerExpired and Close come from the room itself.
type Event interface{ isEvent() }

type Join struct{ Client *Client }

type ConnectionLost struct{ Client *Client }

type Chat struct {
	Client *Client
	Text   string
}

type ChooseRPS struct {
	Client *Client
	Value  uint8
}

type ChooseTurn struct {
	Client     *Client
	GoingFirst bool
}

type Ready struct {
	Client *Client
	Value  bool
}

type Rematch struct {
	Client *Client
	Answer bool
}

// Response is an opaque answer forwarded to the engine.
type Response struct {
	Client *Client
	Data   []byte
}

type Surrender struct{ Client *Client }

type ToDuelist struct{ Client *Client }

type ToObserver struct{ Client *Client }

// TryKick names the seat, wire encoded, the host wants emptied.
type TryKick struct {
	Client *Client
	Pos    uint8
}

type TryStart struct{ Client *Client }

type UpdateDeck struct {
	Client     *Client
	Main, Side []uint32
}

// TimerExpired is posted by the duel clock. Gen is the arm it belongs to.
type TimerExpired struct {
	Team uint8
	Gen  uint64
}

// Close asks a room that has not started to shut down. Reply, when set,
// receives whether the room accepted.
type Close struct{ Reply chan bool }

// GetProps asks for the room's listing properties.
type GetProps struct{ Reply chan Props }

func (Join) isEvent()           {}
func (ConnectionLost) isEvent() {}
func (Chat) isEvent()           {}
func (ChooseRPS) isEvent()      {}
func (ChooseTurn) isEvent()     {}
func (Ready) isEvent()          {}
func (Rematch) isEvent()        {}
func (Response) isEvent()       {}
func (Surrender) isEvent()      {}
func (ToDuelist) isEvent()      {}
func (ToObserver) isEvent()     {}
func (TryKick) isEvent()        {}
func (TryStart) isEvent()       {}
func (UpdateDeck) isEvent()     {}
func (TimerExpired) isEvent()   {}
func (Close) isEvent()          {}
func (GetProps) isEvent()       {}
