package avatar

import (
	"errors"

	"github.com/tos-network/nekoyume/monster"
)

// BandageItem is the bandage item code consulted by the low-hp check
// (spec §4.4 step 1).
const BandageItem = "BNDG"

// BattleEvent is one structured log entry of a hack_and_slash fight.
type BattleEvent struct {
	Type    string
	Damage  int
	Item    string
	Monster string
}

// CombatResult is the structured "battle_status" result of spec §4.3 and §4.4.
type CombatResult struct {
	Result  string // "win", "lose", or "finish"
	Events  []BattleEvent
	Monster string
}

// ErrNoMonsters names the empty-monster-table condition. HackAndSlash
// does not return it: an empty table ends the fight with "finish".
var ErrNoMonsters = errors.New("avatar: monster table is empty")

// HackAndSlash runs the combat loop of spec §4.4 against a monster drawn
// deterministically from table using stream. stream is consumed
// destructively (pop-from-tail); random exhaustion mid-fight is normal
// termination ("finish"/"run"), never an error to the caller.
func HackAndSlash(s *State, stream []int, table monster.Table) (*State, CombatResult) {
	if len(table) == 0 {
		return s, CombatResult{Result: "finish", Events: []BattleEvent{{Type: "run"}}}
	}

	idx, err := pop(&stream)
	if err != nil {
		return s, CombatResult{Result: "finish", Events: []BattleEvent{{Type: "run"}}}
	}
	m := table[((idx%len(table))+len(table))%len(table)]
	hp := m.HP

	var events []BattleEvent
	for {
		if s.HP <= int(float64(s.MaxHP())*0.2) && s.Items[BandageItem] > 0 {
			rolled, _, err := Roll(&stream, "2d6", true)
			if err != nil {
				events = append(events, BattleEvent{Type: "run", Monster: m.ID})
				return s, CombatResult{Result: "finish", Events: events, Monster: m.ID}
			}
			s.Items[BandageItem]--
			if rolled >= 7 {
				s.HP += 4
				events = append(events, BattleEvent{Type: "item_use", Item: BandageItem})
			} else {
				events = append(events, BattleEvent{Type: "item_use_fail", Item: BandageItem})
			}
		}

		rolled, _, err := Roll(&stream, "2d6", true)
		if err != nil {
			events = append(events, BattleEvent{Type: "run", Monster: m.ID})
			return s, CombatResult{Result: "finish", Events: events, Monster: m.ID}
		}
		rolled += Modifier(s.Strength)

		if rolled >= 7 {
			dmgRoll, _, err := Roll(&stream, s.Damage(), true)
			if err != nil {
				events = append(events, BattleEvent{Type: "run", Monster: m.ID})
				return s, CombatResult{Result: "finish", Events: events, Monster: m.ID}
			}
			damage := dmgRoll - m.Armor
			if damage < 0 {
				damage = 0
			}
			hp -= damage
			events = append(events, BattleEvent{Type: "attack_monster", Damage: damage, Monster: m.ID})
		} else if rolled >= 2 {
			// rolled < 2 is a miss for both sides (only reachable with a
			// low-strength negative modifier); no monster damage applies.
			monsterDamage, _, err := Roll(&stream, m.Damage, true)
			if err != nil {
				events = append(events, BattleEvent{Type: "run", Monster: m.ID})
				return s, CombatResult{Result: "finish", Events: events, Monster: m.ID}
			}
			s.HP -= monsterDamage
			events = append(events, BattleEvent{Type: "attacked_by_monster", Damage: monsterDamage, Monster: m.ID})
			if rolled <= 6 {
				s.XP++
				events = append(events, BattleEvent{Type: "get_xp"})
			}
		}

		if hp <= 0 {
			events = append(events, BattleEvent{Type: "kill_monster", Monster: m.ID})
			rewardRoll, _, err := Roll(&stream, "1d10", true)
			if err != nil {
				// A dry stream on the reward roll aborts with "finish", same as mid-combat.
				events = append(events, BattleEvent{Type: "run", Monster: m.ID})
				return s, CombatResult{Result: "finish", Events: events, Monster: m.ID}
			}
			if item := m.Reward(rewardRoll); item != "" {
				s.GetItem(item)
				events = append(events, BattleEvent{Type: "get_item", Item: item})
			}
			return s, CombatResult{Result: "win", Events: events, Monster: m.ID}
		}

		if s.HP <= 0 {
			events = append(events, BattleEvent{Type: "killed_by_monster", Monster: m.ID})
			return s, CombatResult{Result: "lose", Events: events, Monster: m.ID}
		}
	}
}
