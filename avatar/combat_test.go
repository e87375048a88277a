package avatar

import (
	"testing"

	"github.com/tos-network/nekoyume/monster"
)

func rewardTable(monsterID string, hp, armor int, damage string, rewardItem string) monster.Table {
	rewards := make([]string, 10)
	rewards[0] = rewardItem
	return monster.Table{{ID: monsterID, HP: hp, Armor: armor, Damage: damage, Rewards: rewards}}
}

func TestHackAndSlashNoMonstersRuns(t *testing.T) {
	s := &State{Strength: 12, Constitution: 14, HP: 20}
	next, result := HackAndSlash(s, []int{1, 2, 3}, nil)
	if result.Result != "finish" {
		t.Fatalf("expected finish with an empty monster table, got %+v", result)
	}
	if next != s {
		t.Fatalf("expected state to be returned unchanged")
	}
}

// TestHackAndSlashLowRollIsNoOpForBothSides asserts the reachable-but-miss
// range the original treats as a no-op round: a 2d6 roll of snake-eyes
// combined with a low-strength negative modifier drives the combined
// roll below 2, which is neither "player attacks" (>=7) nor "monster
// attacks" (the original's elif covers 2..6 only, since it's gated by
// having already failed rolled>=7). Neither side should take damage or
// gain xp on that round.
func TestHackAndSlashLowRollIsNoOpForBothSides(t *testing.T) {
	s := &State{Strength: 1, Constitution: 14, HP: 20} // Modifier(1) == -3
	table := rewardTable("slime", 50, 0, "1d6", "")

	// consumption order: monster index, then the round's 2d6 (two dice).
	// both dice roll 1 (v%6==0), sum 2, +modifier(-3) == -1 < 2.
	stream := []int{6, 6, 0}

	next, result := HackAndSlash(s, stream, table)
	if result.Result != "finish" {
		t.Fatalf("expected finish once the stream is exhausted after the no-op round, got %+v", result)
	}
	if len(result.Events) != 1 || result.Events[0].Type != "run" {
		t.Fatalf("expected the only event to be the random-exhaustion run, got %+v", result.Events)
	}
	if next.HP != 20 {
		t.Fatalf("expected hp untouched by a miss round, got %d", next.HP)
	}
	if next.XP != 0 {
		t.Fatalf("expected no xp from a miss round, got %d", next.XP)
	}
}

func TestHackAndSlashPlayerWinsAndGetsReward(t *testing.T) {
	s := &State{Strength: 12, Constitution: 14, HP: 20}
	table := rewardTable("slime", 1, 0, "1d6", "SLIM")

	// idx=0; roll 2d6 -> 6,6 (sum 12, rolled>=7); damage roll -> 1 (kills
	// the 1-hp monster); reward roll -> 1 (Rewards[0] == "SLIM").
	stream := []int{0, 0, 5, 5, 0}

	next, result := HackAndSlash(s, stream, table)
	if result.Result != "win" {
		t.Fatalf("expected win, got %+v", result)
	}
	if next.Items["SLIM"] != 1 {
		t.Fatalf("expected 1 SLIM reward item, got %+v", next.Items)
	}
	foundKill, foundAttack := false, false
	for _, e := range result.Events {
		if e.Type == "kill_monster" {
			foundKill = true
		}
		if e.Type == "attack_monster" {
			foundAttack = true
		}
	}
	if !foundAttack || !foundKill {
		t.Fatalf("expected attack_monster and kill_monster events, got %+v", result.Events)
	}
}

func TestHackAndSlashMonsterAttackGrantsXP(t *testing.T) {
	s := &State{Strength: 12, Constitution: 14, HP: 20}
	table := rewardTable("slime", 50, 0, "1d6", "")

	// idx=0; roll 2d6 -> 1,1 (sum 2, in the monster's 2..6 reachable
	// range); monster damage roll -> 3. Round ends, stream then exhausts
	// on the next round's main roll, ending in "finish".
	stream := []int{2, 0, 0, 0}

	next, result := HackAndSlash(s, stream, table)
	if result.Result != "finish" {
		t.Fatalf("expected finish once the stream runs dry, got %+v", result)
	}
	if next.HP != 17 {
		t.Fatalf("expected hp reduced by 3 monster damage, got %d", next.HP)
	}
	if next.XP != 1 {
		t.Fatalf("expected 1 xp from a rolled<=6 monster-attack round, got %d", next.XP)
	}
}

func TestHackAndSlashLoseWhenHPDepleted(t *testing.T) {
	s := &State{Strength: 12, Constitution: 14, HP: 2}
	table := rewardTable("slime", 50, 0, "1d6", "")

	// Same monster-attack round as above, but starting hp is low enough
	// that the 3 damage taken drops the avatar to 0 or below.
	stream := []int{2, 0, 0, 0}

	next, result := HackAndSlash(s, stream, table)
	if result.Result != "lose" {
		t.Fatalf("expected lose, got %+v", result)
	}
	if next.HP > 0 {
		t.Fatalf("expected non-positive hp on a loss, got %d", next.HP)
	}
	if result.Events[len(result.Events)-1].Type != "killed_by_monster" {
		t.Fatalf("expected the final event to be killed_by_monster, got %+v", result.Events)
	}
}

func TestHackAndSlashBandageHealsBeforeTheRoundRoll(t *testing.T) {
	s := &State{Strength: 1, Constitution: 14, HP: 3, Items: map[string]int{BandageItem: 1}}
	table := rewardTable("slime", 50, 0, "1d6", "")

	// idx=0; bandage roll (2d6) -> 6,6 (sum 12 >= 7, heals +4); main roll
	// (2d6) -> 1,1 (sum 2, +modifier(-3) == -1, a no-op round); stream
	// then runs dry on the next round.
	stream := []int{6, 6, 5, 5, 0}

	next, result := HackAndSlash(s, stream, table)
	if result.Result != "finish" {
		t.Fatalf("expected finish, got %+v", result)
	}
	if next.HP != 7 {
		t.Fatalf("expected hp healed to 7 (3+4), got %d", next.HP)
	}
	if next.Items[BandageItem] != 0 {
		t.Fatalf("expected the bandage to be consumed, got %d left", next.Items[BandageItem])
	}
	if result.Events[0].Type != "item_use" {
		t.Fatalf("expected the first event to be item_use, got %+v", result.Events[0])
	}
}
