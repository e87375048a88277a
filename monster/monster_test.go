package monster

import (
	"strings"
	"testing"
)

func TestDefaultTableLoads(t *testing.T) {
	table := Default()
	if len(table) == 0 {
		t.Fatalf("expected a non-empty default monster table")
	}
	for _, m := range table {
		if m.ID == "" {
			t.Fatalf("expected every monster to have an id")
		}
		if len(m.Rewards) != 10 {
			t.Fatalf("expected 10 reward columns for monster %s, got %d", m.ID, len(m.Rewards))
		}
	}
}

func TestParseRejectsMissingColumn(t *testing.T) {
	_, err := Parse(strings.NewReader("id,hp\nX,1\n"))
	if err == nil {
		t.Fatalf("expected error for table missing required columns")
	}
}

func TestRewardOutOfRangeReturnsEmpty(t *testing.T) {
	m := Monster{Rewards: make([]string, 10)}
	if m.Reward(0) != "" || m.Reward(11) != "" {
		t.Fatalf("expected out-of-range reward rolls to return empty string")
	}
}
