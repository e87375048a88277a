// Execution handlers for each move variant (spec §4.3), dispatched by
// tag. The teacher's sysaction package dispatches through an exported
// Handler interface and a process-wide Registry; we keep that registry
// shape but host it here rather than in package move, since execution
// operates on *avatar.State and a circular move<->avatar import is not
// possible in Go (move is the data package; avatar is the consumer that
// replays moves into state, per spec §4.9 "Avatar reconstructor").
package avatar

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/tos-network/nekoyume/monster"
	"github.com/tos-network/nekoyume/move"
)

// Result is the structured outcome of executing one move (spec §4.3:
// "returning ... a structured log").
type Result struct {
	Type    string
	Result  string // "success" | "failed" | "failure" | "fail" | "win" | "lose" | "finish", variant-dependent
	Message string
	Battle  *CombatResult
	Item    string // e.g. combine's result_item
}

// BlockInfo is the minimal per-block context a handler needs to derive
// the hash-random stream (spec §4.5): the containing block's hash and
// difficulty.
type BlockInfo struct {
	Hash       string
	Difficulty int
}

// Handler executes one move variant against an avatar, returning the
// transformed avatar and a structured result. Handlers are pure given
// (move, block, avatar) — all randomness is derived from BlockInfo and
// the move id via RandomStream (spec §4.3).
type Handler func(m *move.Move, blk BlockInfo, s *State) (*State, Result, error)

// Registry maps move variant tags to their executor, mirroring
// sysaction.Registry's Handler dispatch.
var Registry = map[move.Name]Handler{
	move.CreateNovice: executeCreateNovice,
	move.HackAndSlash: executeHackAndSlash,
	move.Sleep:        executeSleep,
	move.LevelUp:      executeLevelUp,
	move.Say:          executeSay,
	move.Send:         executeSend,
	move.Combine:      executeCombine,
	move.Sell:         executeNoop("sell"),
	move.Buy:          executeNoop("buy"),
}

// ErrUnregisteredMove is returned when a move's name has no registered handler.
var ErrUnregisteredMove = errors.New("avatar: no handler registered for move name")

// Execute dispatches m to its registered Handler.
func Execute(m *move.Move, blk BlockInfo, s *State) (*State, Result, error) {
	h, ok := Registry[m.Name]
	if !ok {
		return s, Result{}, fmt.Errorf("%w: %q", ErrUnregisteredMove, m.Name)
	}
	return h(m, blk, s)
}

func executeNoop(label string) Handler {
	return func(_ *move.Move, _ BlockInfo, s *State) (*State, Result, error) {
		return s, Result{Type: label, Result: "success"}, nil
	}
}

// executeCreateNovice constructs a Novice from details, carrying over
// any prior GOLD balance (spec §4.3, §4.9 "create_*" semantics).
func executeCreateNovice(m *move.Move, _ BlockInfo, prior *State) (*State, Result, error) {
	gold := 0
	if prior != nil {
		gold = prior.Items["GOLD"]
	}
	abilities := [...]string{"strength", "dexterity", "constitution", "intelligence", "wisdom", "charisma"}
	values := make([]int, len(abilities))
	for i, key := range abilities {
		v, err := strconv.Atoi(m.Details[key])
		if err != nil {
			return prior, Result{}, fmt.Errorf("%w: invalid %s in create_novice details: %v", move.ErrInvalidMove, key, err)
		}
		values[i] = v
	}
	s := &State{
		User:         m.User,
		ClassTag:     Novice.Tag(),
		Strength:     values[0],
		Dexterity:    values[1],
		Constitution: values[2],
		Intelligence: values[3],
		Wisdom:       values[4],
		Charisma:     values[5],
		XP:           0,
		LV:           1,
		Items:        map[string]int{"GOLD": gold},
	}
	if name, ok := m.Details["name"]; ok && name != "" {
		s.Name = name
	} else if len(m.User) >= 6 {
		s.Name = m.User[:6]
	} else {
		s.Name = m.User
	}
	if gh, ok := m.Details["gravatar_hash"]; ok && gh != "" {
		s.GravatarHash = gh
	} else {
		s.GravatarHash = "HASH"
	}
	s.HP = s.MaxHP()
	return s, Result{Type: "create_novice", Result: "success"}, nil
}

func executeHackAndSlash(m *move.Move, blk BlockInfo, s *State) (*State, Result, error) {
	stream := RandomStream(blk.Hash, m.ID, blk.Difficulty)
	next, combat := HackAndSlash(s, stream, monster.Default())
	return next, Result{Type: "hack_and_slash", Result: combat.Result, Battle: &combat}, nil
}

func executeSleep(_ *move.Move, _ BlockInfo, s *State) (*State, Result, error) {
	s.HP = s.MaxHP()
	return s, Result{Type: "sleep", Result: "success"}, nil
}

// levelUpCost is xp required to level up at the avatar's current level
// (spec §4.3: "If xp >= lv + 7").
func levelUpCost(lv int) int { return lv + 7 }

func executeLevelUp(m *move.Move, _ BlockInfo, s *State) (*State, Result, error) {
	cost := levelUpCost(s.LV)
	if s.XP < cost {
		return s, Result{Type: "level_up", Result: "failed", Message: "You don't have enough xp."}, nil
	}
	s.XP -= cost
	s.LV++
	status := m.Details["new_status"]
	switch status {
	case "strength":
		s.Strength++
	case "dexterity":
		s.Dexterity++
	case "constitution":
		s.Constitution++
		s.HP++
	case "intelligence":
		s.Intelligence++
	case "wisdom":
		s.Wisdom++
	case "charisma":
		s.Charisma++
	default:
		return s, Result{}, fmt.Errorf("%w: unknown new_status %q", move.ErrInvalidMove, status)
	}
	return s, Result{Type: "level_up", Result: "success"}, nil
}

func executeSay(m *move.Move, _ BlockInfo, s *State) (*State, Result, error) {
	return s, Result{Type: "say", Message: m.Details["content"]}, nil
}

func executeSend(m *move.Move, _ BlockInfo, s *State) (*State, Result, error) {
	itemName := m.Details["item_name"]
	amount, err := strconv.Atoi(m.Details["amount"])
	if err != nil {
		return s, Result{}, fmt.Errorf("%w: invalid amount in send details: %v", move.ErrInvalidMove, err)
	}
	if s.Items[itemName]-amount < 0 {
		return s, Result{Type: "send", Result: "fail", Message: "You don't have enough items to send."}, nil
	}
	s.Items[itemName] -= amount
	return s, Result{Type: "send", Result: "success"}, nil
}

// ApplyReceive credits receiver with the amount/item_name of a send move
// addressed to them (spec §4.3 "send.receive", applied by the
// reconstructor per §4.9 step 4, not through the Registry since it
// targets a different avatar than the move's signer).
func ApplyReceive(m *move.Move, receiver *State) (*State, Result) {
	amount, err := strconv.Atoi(m.Details["amount"])
	if err != nil {
		return receiver, Result{Type: "receive", Result: "fail", Message: "invalid amount"}
	}
	for i := 0; i < amount; i++ {
		receiver.GetItem(m.Details["item_name"])
	}
	return receiver, Result{Type: "receive", Result: "success"}
}

var recipes = map[string][3]string{
	"OYKD": {"RICE", "EGGS", "CHKN"},
	"CBNR": {"WHET", "EGGS", "MEAT"},
	"STKD": {"RICE", "RKST", "MEAT"},
	"CHKR": {"RICE", "RKST", "CHKN"},
	"STEK": {"MEAT", "RKST", "OLIV"},
	"STCB": {"STEK", "WHET", "EGGS"},
	"FRCH": {"CHKN", "RKST", "OLIV"},
	"FSWD": {"LSWD", "FLNT", "OLIV"},
	"FSW1": {"FSWD", "FSWD", "FSWD"},
	"FSW2": {"FSW1", "FSW1", "FSW1"},
	"FSW3": {"FSW2", "FSW2", "FSW2"},
}

var successRoll = map[string]string{
	"OYKD": "1d1", "CBNR": "1d1", "STKD": "1d1", "CHKR": "1d1",
	"STEK": "1d1", "STCB": "1d1", "FRCH": "1d1",
	"FSWD": "1d2", "FSW1": "1d2", "FSW2": "1d4", "FSW3": "1d6",
}

func sameTriple(a [3]string, x, y, z string) bool {
	given := map[string]int{x: 0, y: 0, z: 0}
	want := map[string]int{a[0]: 0, a[1]: 0, a[2]: 0}
	if len(given) != len(want) {
		return false
	}
	for k := range want {
		if _, ok := given[k]; !ok {
			return false
		}
	}
	return true
}

func executeCombine(m *move.Move, blk BlockInfo, s *State) (*State, Result, error) {
	item1, item2, item3 := m.Details["item1"], m.Details["item2"], m.Details["item3"]
	stream := RandomStream(blk.Hash, m.ID, blk.Difficulty)

	for result, recipe := range recipes {
		if !sameTriple(recipe, item1, item2, item3) {
			continue
		}
		s.Items[item1]--
		s.Items[item2]--
		s.Items[item3]--
		rolled, _, err := Roll(&stream, successRoll[result], true)
		if err != nil {
			return s, Result{Type: "combine", Result: "failure"}, nil
		}
		if rolled == 1 {
			s.GetItem(result)
			return s, Result{Type: "combine", Result: "success", Item: result}, nil
		}
		return s, Result{Type: "combine", Result: "failure"}, nil
	}
	return s, Result{Type: "combine", Result: "failure"}, nil
}
