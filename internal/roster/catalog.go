package roster

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Catalog is the read-only player set loaded at startup. It is safe to share
// between rooms.
type Catalog struct {
	players []Player
	byID    map[string]int
}

func NewCatalog(players []Player) *Catalog {
	c := &Catalog{byID: make(map[string]int, len(players))}
	for _, p := range players {
		if _, dup := c.byID[p.ID]; dup {
			continue
		}
		c.byID[p.ID] = len(c.players)
		c.players = append(c.players, p)
	}
	return c
}

func (c *Catalog) Players() []Player {
	out := make([]Player, len(c.players))
	copy(out, c.players)
	return out
}

func (c *Catalog) Player(id string) (Player, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Player{}, false
	}
	return c.players[i], true
}

// ByFranchise returns the players whose original franchise is id, in file order.
func (c *Catalog) ByFranchise(id FranchiseID) []Player {
	var out []Player
	for _, p := range c.players {
		if p.OriginalFranchiseID == id {
			out = append(out, p)
		}
	}
	return out
}

func (c *Catalog) Len() int { return len(c.players) }

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// LoadFile reads a roster file. See Load for the error contract.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()
	return Load(f, FormatFromPath(path))
}

// Load decodes a list of raw records and normalizes each one. A decode
// failure returns a nil Catalog. Bad records are skipped: the Catalog holds
// every valid player and the returned error combines one error per rejected
// record (use multierr.Errors to list them).
func Load(r io.Reader, format Format) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}

	var records []Record
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("decode roster yaml: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&records); err != nil {
			return nil, fmt.Errorf("decode roster json: %w", err)
		}
	}

	var (
		players []Player
		errs    error
		seen    = make(map[string]bool, len(records))
	)
	for i, rec := range records {
		p, err := rec.Normalize()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		if seen[p.ID] {
			errs = multierr.Append(errs, fmt.Errorf("record %d: duplicate player id %q", i, p.ID))
			continue
		}
		seen[p.ID] = true
		players = append(players, p)
	}
	return NewCatalog(players), errs
}
