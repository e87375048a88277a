// Package monster loads the fixed monster table consulted by
// hack_and_slash combat (spec §4.4). The table's file encoding is
// explicitly out of scope for this core (spec §1); this package embeds
// a CSV following the shape of the original node's
// tablib.Dataset-loaded data/monsters.csv (original_source/nekoyume),
// parsed with the standard library's encoding/csv rather than a
// third-party table library, since no table/dataset dependency appears
// anywhere in the example corpus.
package monster

import (
	"embed"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

//go:embed monsters.csv
var tableCSV embed.FS

// Monster is one row of the monster table (spec §4.4).
type Monster struct {
	ID       string
	HP       int
	Piercing int
	Armor    int
	Damage   string // dice expression, e.g. "1d6"
	Rewards  []string // Rewards[i] is reward for a roll of i+1 on 1d10, 10 entries
}

// Reward returns the item code rewarded for 1d10 roll (1-10), or "" if none.
func (m Monster) Reward(roll int) string {
	if roll < 1 || roll > len(m.Rewards) {
		return ""
	}
	return m.Rewards[roll-1]
}

// Table is the ordered, fixed monster list.
type Table []Monster

var defaultTable Table

func init() {
	t, err := loadEmbedded()
	if err != nil {
		panic(fmt.Sprintf("monster: failed to load embedded table: %v", err))
	}
	defaultTable = t
}

func loadEmbedded() (Table, error) {
	f, err := tableCSV.Open("monsters.csv")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Default returns the process-wide monster table.
func Default() Table { return defaultTable }

// Parse reads a CSV with header: id,hp,piercing,armor,damage,reward1..reward10
func Parse(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("monster: failed to parse table: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("monster: table must have a header and at least one row")
	}
	header := records[0]
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	required := []string{"id", "hp", "piercing", "armor", "damage"}
	for _, name := range required {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("monster: table missing required column %q", name)
		}
	}

	var table Table
	for _, row := range records[1:] {
		hp, err := strconv.Atoi(row[col["hp"]])
		if err != nil {
			return nil, fmt.Errorf("monster: invalid hp: %w", err)
		}
		piercing, err := strconv.Atoi(row[col["piercing"]])
		if err != nil {
			return nil, fmt.Errorf("monster: invalid piercing: %w", err)
		}
		armor, err := strconv.Atoi(row[col["armor"]])
		if err != nil {
			return nil, fmt.Errorf("monster: invalid armor: %w", err)
		}
		m := Monster{
			ID:       row[col["id"]],
			HP:       hp,
			Piercing: piercing,
			Armor:    armor,
			Damage:   row[col["damage"]],
		}
		for i := 1; i <= 10; i++ {
			key := fmt.Sprintf("reward%d", i)
			if idx, ok := col[key]; ok && idx < len(row) {
				m.Rewards = append(m.Rewards, row[idx])
			} else {
				m.Rewards = append(m.Rewards, "")
			}
		}
		table = append(table, m)
	}
	return table, nil
}
