// Package types holds the JSON shapes served by the HTTP API.
package types

// RoomList is the lobby listing body.
type RoomList struct {
	Rooms []Room `json:"rooms"`
}

// Room is one listed room. The field names are the ones lobby clients
// already parse.
type Room struct {
	ID             uint32 `json:"roomid"`
	Name           string `json:"roomname"`
	Notes          string `json:"roomnotes"`
	Mode           uint8  `json:"roommode"`
	NeedPass       bool   `json:"needpass"`
	Team1          int32  `json:"team1"`
	Team2          int32  `json:"team2"`
	BestOf         int32  `json:"best_of"`
	DuelFlag       uint32 `json:"duel_flag"`
	ForbiddenTypes int32  `json:"forbidden_types"`
	ExtraRules     uint16 `json:"extra_rules"`
	StartLP        uint32 `json:"start_lp"`
	StartHand      uint8  `json:"start_hand"`
	DrawCount      uint8  `json:"draw_count"`
	TimeLimit      uint16 `json:"time_limit"`
	Rule           uint8  `json:"rule"`
	NoCheck        bool   `json:"no_check"`
	NoShuffle      bool   `json:"no_shuffle"`
	BanlistHash    uint32 `json:"banlist_hash"`
	Started        string `json:"istart"` // "start" | "waiting"
	Users          []User `json:"users"`
}

type User struct {
	Name string `json:"name"`
	Pos  uint8  `json:"pos"`
}
