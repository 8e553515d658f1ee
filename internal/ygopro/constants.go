// Package ygopro holds the card-game protocol: constants, the room host
// configuration, decks and their validation, banlists, the client/server
// frame codecs and the replay record.
package ygopro

// Card locations.
const (
	LocationDeck    uint8 = 0x01
	LocationHand    uint8 = 0x02
	LocationMZone   uint8 = 0x04
	LocationSZone   uint8 = 0x08
	LocationGrave   uint8 = 0x10
	LocationRemoved uint8 = 0x20
	LocationExtra   uint8 = 0x40
	LocationOverlay uint8 = 0x80
)

// Card positions.
const (
	PosFaceUpAttack    uint32 = 0x1
	PosFaceDownAttack  uint32 = 0x2
	PosFaceUpDefense   uint32 = 0x4
	PosFaceDownDefense uint32 = 0x8
	PosFaceUp                 = PosFaceUpAttack | PosFaceUpDefense
	PosFaceDown               = PosFaceDownAttack | PosFaceDownDefense
)

// Card types.
const (
	TypeMonster = 0x1
	TypeSpell   = 0x2
	TypeTrap    = 0x4
	TypeNormal  = 0x10
	TypeEffect  = 0x20
	TypeFusion  = 0x40
	TypeSynchro = 0x2000
	TypeToken   = 0x4000
	TypeXyz     = 0x800000
	TypeLink    = 0x4000000
	TypeSkill   = 0x8000000
)

// Card scopes, as stored in the card database "ot" column.
const (
	ScopeOCG        uint32 = 0x1
	ScopeTCG        uint32 = 0x2
	ScopeAnime      uint32 = 0x4
	ScopeIllegal    uint32 = 0x8
	ScopeVideoGame  uint32 = 0x10
	ScopeCustom     uint32 = 0x20
	ScopeSpeed      uint32 = 0x40
	ScopePrerelease uint32 = 0x100
	ScopeRush       uint32 = 0x200
	ScopeLegend     uint32 = 0x400
	ScopeHidden     uint32 = 0x1000
	ScopeOCGTCG            = ScopeOCG | ScopeTCG
	ScopeOfficial          = ScopeOCG | ScopeTCG | ScopePrerelease
)

// AllowedCards selects which card pools a room accepts.
type AllowedCards uint8

const (
	AllowedOCGOnly AllowedCards = iota
	AllowedTCGOnly
	AllowedOCGTCG
	AllowedWithPrerelease
	AllowedAny
)

// Duel flags relevant to the room.
const (
	DuelPseudoShuffle uint64 = 0x10
	DuelRelay         uint64 = 0x80
)

// Extra rules, a bit set carried in HostInfo.ExtraRules.
const (
	RuleSealed         uint16 = 0x1
	RuleBooster        uint16 = 0x2
	RuleDestinyDraw    uint16 = 0x4
	RuleConcentration  uint16 = 0x8
	RuleBoss           uint16 = 0x10
	RuleBattleCity     uint16 = 0x20
	RuleDuelistKingdom uint16 = 0x40
	RuleDimension      uint16 = 0x80
	RuleTurbo          uint16 = 0x100
	RuleDoubleDeck     uint16 = 0x200
	RuleCommand        uint16 = 0x400
	RuleDeckMaster     uint16 = 0x800
	RuleAction         uint16 = 0x1000
	RuleDeckLimit20    uint16 = 0x2000
)

// ExtraRuleCard is a rule that is enforced by adding a card to the field.
type ExtraRuleCard struct {
	Rule uint16
	Code uint32
}

// ExtraRuleCards lists, in injection order, every rule backed by a card.
var ExtraRuleCards = []ExtraRuleCard{
	{RuleSealed, 511005092},
	{RuleBooster, 511005093},
	{RuleDestinyDraw, 511004000},
	{RuleConcentration, 511004322},
	{RuleBoss, 95000000},
	{RuleBattleCity, 511004014},
	{RuleDuelistKingdom, 511002621},
	{RuleDimension, 511600002},
	{RuleTurbo, 110000000},
	{RuleCommand, 95200000},
	{RuleDeckMaster, 300},
	{RuleAction, 151999999},
}

// Engine message tags. The first byte of every engine message is one of these.
const (
	MsgRetry              uint8 = 1
	MsgHint               uint8 = 2
	MsgWaiting            uint8 = 3
	MsgStart              uint8 = 4
	MsgWin                uint8 = 5
	MsgUpdateData         uint8 = 6
	MsgUpdateCard         uint8 = 7
	MsgSelectBattleCmd    uint8 = 10
	MsgSelectIdleCmd      uint8 = 11
	MsgSelectEffectYN     uint8 = 12
	MsgSelectYesNo        uint8 = 13
	MsgSelectOption       uint8 = 14
	MsgSelectCard         uint8 = 15
	MsgSelectChain        uint8 = 16
	MsgSelectPlace        uint8 = 18
	MsgSelectPosition     uint8 = 19
	MsgSelectTribute      uint8 = 20
	MsgSortChain          uint8 = 21
	MsgSelectCounter      uint8 = 22
	MsgSelectSum          uint8 = 23
	MsgSelectDisfield     uint8 = 24
	MsgSortCard           uint8 = 25
	MsgSelectUnselect     uint8 = 26
	MsgConfirmDecktop     uint8 = 30
	MsgConfirmCards       uint8 = 31
	MsgShuffleDeck        uint8 = 32
	MsgShuffleHand        uint8 = 33
	MsgSwapGraveDeck      uint8 = 35
	MsgShuffleSetCard     uint8 = 36
	MsgReverseDeck        uint8 = 37
	MsgDeckTop            uint8 = 38
	MsgShuffleExtra       uint8 = 39
	MsgNewTurn            uint8 = 40
	MsgNewPhase           uint8 = 41
	MsgConfirmExtratop    uint8 = 42
	MsgMove               uint8 = 50
	MsgPosChange          uint8 = 53
	MsgSet                uint8 = 54
	MsgSwap               uint8 = 55
	MsgFieldDisabled      uint8 = 56
	MsgSummoning          uint8 = 60
	MsgSummoned           uint8 = 61
	MsgSpSummoning        uint8 = 62
	MsgSpSummoned         uint8 = 63
	MsgFlipSummoning      uint8 = 64
	MsgFlipSummoned       uint8 = 65
	MsgChaining           uint8 = 70
	MsgChained            uint8 = 71
	MsgChainSolving       uint8 = 72
	MsgChainSolved        uint8 = 73
	MsgChainEnd           uint8 = 74
	MsgChainNegated       uint8 = 75
	MsgChainDisabled      uint8 = 76
	MsgRandomSelected     uint8 = 81
	MsgBecomeTarget       uint8 = 83
	MsgDraw               uint8 = 90
	MsgDamage             uint8 = 91
	MsgRecover            uint8 = 92
	MsgEquip              uint8 = 93
	MsgLPUpdate           uint8 = 94
	MsgCardTarget         uint8 = 96
	MsgCancelTarget       uint8 = 97
	MsgPayLPCost          uint8 = 100
	MsgAddCounter         uint8 = 101
	MsgRemoveCounter      uint8 = 102
	MsgAttack             uint8 = 110
	MsgBattle             uint8 = 111
	MsgAttackDisabled     uint8 = 112
	MsgDamageStepStart    uint8 = 113
	MsgDamageStepEnd      uint8 = 114
	MsgMissedEffect       uint8 = 120
	MsgTossCoin           uint8 = 130
	MsgTossDice           uint8 = 131
	MsgRockPaperScissors  uint8 = 132
	MsgHandRes            uint8 = 133
	MsgAnnounceRace       uint8 = 140
	MsgAnnounceAttrib     uint8 = 141
	MsgAnnounceCard       uint8 = 142
	MsgAnnounceNumber     uint8 = 143
	MsgAnnounceCardFilter uint8 = 144
	MsgCardHint           uint8 = 160
	MsgTagSwap            uint8 = 161
	MsgReloadField        uint8 = 162
	MsgPlayerHint         uint8 = 165
	MsgMatchKill          uint8 = 170
)

// Win reasons carried by MSG_WIN.
const (
	WinReasonSurrendered    uint8 = 0x00
	WinReasonTimedOut       uint8 = 0x03
	WinReasonConnectionLost uint8 = 0x04
	WinReasonWrongResponse  uint8 = 0x05
	WinReasonInternalError  uint8 = 0x06
)

// Rock paper scissors values.
const (
	RPSScissor uint8 = 1
	RPSRock    uint8 = 2
	RPSPaper   uint8 = 3
)

// Version the server speaks and the handshake value hosts must present.
const (
	ClientVersionMajor uint8  = 39
	ClientVersionMinor uint8  = 3
	CoreVersionMajor   uint8  = 9
	CoreVersionMinor   uint8  = 1
	ServerHandshake    uint64 = 4043399681
)

// ServerVersion packs the client version the way JOIN_GAME carries it.
const ServerVersion = uint16(ClientVersionMinor)<<8 | uint16(ClientVersionMajor)
