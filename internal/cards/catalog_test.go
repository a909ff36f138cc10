package cards

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalogHasSiegeCards(t *testing.T) {
	c := Default()
	for _, name := range []string{"X-Bow", "Mortar"} {
		if _, ok := c.ByName(name); !ok {
			t.Errorf("expected %q in default catalog", name)
		}
	}
	if c.Len() < 100 {
		t.Errorf("expected a full default catalog, got %d cards", c.Len())
	}
}

func TestMirrorHasNoFixedElixir(t *testing.T) {
	card, ok := Default().ByName("Mirror")
	if !ok {
		t.Fatal("Mirror missing from default catalog")
	}
	if card.Elixir != nil {
		t.Errorf("expected nil elixir for Mirror, got %v", *card.Elixir)
	}
}

func TestLoadJSONMetadata(t *testing.T) {
	// The JSON list format of the metadata export must parse too.
	data := `[{"id": 1, "name": " Hog Rider ", "elixir": 4, "is_bridge_spam_piece": false}, ` +
		`{"id": 2, "name": "Goblin Barrel", "elixir": 3, "is_bait_piece": true}]`
	path := filepath.Join(t.TempDir(), "cards.json")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	name, ok := c.NameByID(1)
	if !ok || name != "Hog Rider" {
		t.Errorf("NameByID(1) = %q, %v; want trimmed \"Hog Rider\"", name, ok)
	}
	barrel, ok := c.ByName("Goblin Barrel")
	if !ok || !barrel.IsBaitPiece {
		t.Errorf("expected Goblin Barrel flagged as bait, got %+v", barrel)
	}
	if _, ok := c.NameByID(99); ok {
		t.Error("expected unknown id to be unresolved")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing metadata file")
	}
}
