// Package distributor decides who may see each engine message and strips
// what the rest of the room is not entitled to know.
package distributor

import (
	"encoding/binary"
	"fmt"

	"github.com/DoyleJ11/duel-room-server/internal/ygopro"
)

// Class is the visibility of one engine message.
type Class uint8

const (
	// EveryoneAsIs goes verbatim to every duelist and spectator.
	EveryoneAsIs Class = iota
	// EveryoneStripped goes to every team in its stripped form for that
	// team; spectators get the most restrictive copy.
	EveryoneStripped
	// SpecificTeam goes unstripped to the duelists of one team.
	SpecificTeam
	// SpecificTeamDuelist goes to the team's acting duelist only.
	SpecificTeamDuelist
	// SpecificTeamDuelistStripped goes, stripped, to the acting duelist.
	SpecificTeamDuelistStripped
	// EveryoneExceptTeamDuelist goes to everyone but the acting duelist.
	EveryoneExceptTeamDuelist
)

func (c Class) String() string {
	switch c {
	case EveryoneAsIs:
		return "everyone"
	case EveryoneStripped:
		return "everyone_stripped"
	case SpecificTeam:
		return "specific_team"
	case SpecificTeamDuelist:
		return "specific_team_duelist"
	case SpecificTeamDuelistStripped:
		return "specific_team_duelist_stripped"
	case EveryoneExceptTeamDuelist:
		return "everyone_except_team_duelist"
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

// MalformedError rejects an engine message the distributor can not route
// safely. Such a message is never sent to anyone.
type MalformedError struct {
	Tag    uint8
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed engine message %d: %s", e.Tag, e.Reason)
}

func malformed(msg []byte, reason string) *MalformedError {
	var tag uint8
	if len(msg) > 0 {
		tag = msg[0]
	}
	return &MalformedError{Tag: tag, Reason: reason}
}

// Split cuts an engine buffer into its messages. Every message is
// prefixed with its u32 length.
func Split(buf []byte) ([][]byte, error) {
	var msgs [][]byte
	for len(buf) > 0 {
		if len(buf) < 4 {
			return msgs, &MalformedError{Reason: "truncated length prefix"}
		}
		n := binary.LittleEndian.Uint32(buf)
		buf = buf[4:]
		if uint64(n) > uint64(len(buf)) {
			return msgs, &MalformedError{Reason: fmt.Sprintf("frame of %d bytes with %d left", n, len(buf))}
		}
		msgs = append(msgs, buf[:n:n])
		buf = buf[n:]
	}
	return msgs, nil
}

// Classify returns the visibility of msg and, for the classes that name
// one, the engine team it concerns.
func Classify(msg []byte) (Class, uint8, error) {
	if len(msg) == 0 {
		return 0, 0, &MalformedError{Reason: "empty message"}
	}
	tag := msg[0]
	if !known[tag] {
		return 0, 0, malformed(msg, "unknown message type")
	}
	class, err := classOf(msg)
	if err != nil {
		return 0, 0, err
	}
	switch class {
	case EveryoneAsIs, EveryoneStripped:
		return class, 0, nil
	}
	idx := 1
	if tag == ygopro.MsgHint {
		idx = 2
	}
	if len(msg) <= idx {
		return 0, 0, malformed(msg, "missing team")
	}
	team := msg[idx]
	if team > 1 {
		return 0, 0, malformed(msg, fmt.Sprintf("team %d out of range", team))
	}
	return class, team, nil
}

func classOf(msg []byte) (Class, error) {
	switch msg[0] {
	case ygopro.MsgSelectCard, ygopro.MsgSelectTribute, ygopro.MsgSelectUnselect:
		return SpecificTeamDuelistStripped, nil
	case ygopro.MsgSelectBattleCmd, ygopro.MsgSelectIdleCmd, ygopro.MsgSelectEffectYN,
		ygopro.MsgSelectYesNo, ygopro.MsgSelectOption, ygopro.MsgSelectChain,
		ygopro.MsgSelectPlace, ygopro.MsgSelectDisfield, ygopro.MsgSelectPosition,
		ygopro.MsgSortCard, ygopro.MsgSortChain, ygopro.MsgSelectCounter,
		ygopro.MsgSelectSum, ygopro.MsgRockPaperScissors, ygopro.MsgAnnounceRace,
		ygopro.MsgAnnounceAttrib, ygopro.MsgAnnounceCard, ygopro.MsgAnnounceNumber,
		ygopro.MsgAnnounceCardFilter, ygopro.MsgMissedEffect:
		return SpecificTeamDuelist, nil
	case ygopro.MsgHint:
		if len(msg) < 2 {
			return 0, malformed(msg, "missing hint type")
		}
		switch msg[1] {
		case 1, 2, 3, 5:
			return SpecificTeamDuelist, nil
		case 200:
			return SpecificTeam, nil
		case 4, 6, 7, 8, 9, 11:
			return EveryoneExceptTeamDuelist, nil
		}
		return EveryoneAsIs, nil
	case ygopro.MsgConfirmCards:
		// cards confirmed from the deck are for their owner only
		c := cursor{b: msg, off: 2}
		if c.u32() != 0 {
			c.skip(4 + 1)
			if c.u8() == ygopro.LocationDeck && c.err == nil {
				return SpecificTeamDuelist, nil
			}
		}
		if c.err != nil {
			return 0, malformed(msg, "truncated card list")
		}
		return EveryoneAsIs, nil
	case ygopro.MsgShuffleHand, ygopro.MsgShuffleExtra, ygopro.MsgSet,
		ygopro.MsgMove, ygopro.MsgDraw, ygopro.MsgTagSwap:
		return EveryoneStripped, nil
	}
	return EveryoneAsIs, nil
}

// RequiresAnswer reports whether the engine waits for a response after a
// message of this type.
func RequiresAnswer(tag uint8) bool {
	switch tag {
	case ygopro.MsgSelectCard, ygopro.MsgSelectTribute, ygopro.MsgSelectUnselect,
		ygopro.MsgSelectBattleCmd, ygopro.MsgSelectIdleCmd, ygopro.MsgSelectEffectYN,
		ygopro.MsgSelectYesNo, ygopro.MsgSelectOption, ygopro.MsgSelectChain,
		ygopro.MsgSelectPlace, ygopro.MsgSelectDisfield, ygopro.MsgSelectPosition,
		ygopro.MsgSortCard, ygopro.MsgSortChain, ygopro.MsgSelectCounter,
		ygopro.MsgSelectSum, ygopro.MsgRockPaperScissors, ygopro.MsgAnnounceRace,
		ygopro.MsgAnnounceAttrib, ygopro.MsgAnnounceCard, ygopro.MsgAnnounceNumber,
		ygopro.MsgAnnounceCardFilter:
		return true
	}
	return false
}

var known = func() map[uint8]bool {
	m := make(map[uint8]bool)
	for _, t := range []uint8{
		ygopro.MsgRetry, ygopro.MsgHint, ygopro.MsgWaiting, ygopro.MsgStart, ygopro.MsgWin,
		ygopro.MsgUpdateData, ygopro.MsgUpdateCard, ygopro.MsgSelectBattleCmd,
		ygopro.MsgSelectIdleCmd, ygopro.MsgSelectEffectYN, ygopro.MsgSelectYesNo,
		ygopro.MsgSelectOption, ygopro.MsgSelectCard, ygopro.MsgSelectChain,
		ygopro.MsgSelectPlace, ygopro.MsgSelectPosition, ygopro.MsgSelectTribute,
		ygopro.MsgSortChain, ygopro.MsgSelectCounter, ygopro.MsgSelectSum,
		ygopro.MsgSelectDisfield, ygopro.MsgSortCard, ygopro.MsgSelectUnselect,
		ygopro.MsgConfirmDecktop, ygopro.MsgConfirmCards, ygopro.MsgShuffleDeck,
		ygopro.MsgShuffleHand, ygopro.MsgSwapGraveDeck, ygopro.MsgShuffleSetCard,
		ygopro.MsgReverseDeck, ygopro.MsgDeckTop, ygopro.MsgShuffleExtra,
		ygopro.MsgNewTurn, ygopro.MsgNewPhase, ygopro.MsgConfirmExtratop,
		ygopro.MsgMove, ygopro.MsgPosChange, ygopro.MsgSet, ygopro.MsgSwap,
		ygopro.MsgFieldDisabled, ygopro.MsgSummoning, ygopro.MsgSummoned,
		ygopro.MsgSpSummoning, ygopro.MsgSpSummoned, ygopro.MsgFlipSummoning,
		ygopro.MsgFlipSummoned, ygopro.MsgChaining, ygopro.MsgChained,
		ygopro.MsgChainSolving, ygopro.MsgChainSolved, ygopro.MsgChainEnd,
		ygopro.MsgChainNegated, ygopro.MsgChainDisabled, ygopro.MsgRandomSelected,
		ygopro.MsgBecomeTarget, ygopro.MsgDraw, ygopro.MsgDamage, ygopro.MsgRecover,
		ygopro.MsgEquip, ygopro.MsgLPUpdate, ygopro.MsgCardTarget, ygopro.MsgCancelTarget,
		ygopro.MsgPayLPCost, ygopro.MsgAddCounter, ygopro.MsgRemoveCounter,
		ygopro.MsgAttack, ygopro.MsgBattle, ygopro.MsgAttackDisabled,
		ygopro.MsgDamageStepStart, ygopro.MsgDamageStepEnd, ygopro.MsgMissedEffect,
		ygopro.MsgTossCoin, ygopro.MsgTossDice, ygopro.MsgRockPaperScissors,
		ygopro.MsgHandRes, ygopro.MsgAnnounceRace, ygopro.MsgAnnounceAttrib,
		ygopro.MsgAnnounceCard, ygopro.MsgAnnounceNumber, ygopro.MsgAnnounceCardFilter,
		ygopro.MsgCardHint, ygopro.MsgTagSwap, ygopro.MsgReloadField,
		ygopro.MsgPlayerHint, ygopro.MsgMatchKill,
	} {
		m[t] = true
	}
	return m
}()

// Known reports whether tag is an engine message type the distributor
// can route.
func Known(tag uint8) bool { return known[tag] }
