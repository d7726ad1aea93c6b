package roster

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type FranchiseID string

type Franchise struct {
	ID    FranchiseID `json:"id"`
	Name  string      `json:"name"`
	Color string      `json:"color"`
}

var franchises = []Franchise{
	{ID: "csk", Name: "CHENNAI SUPER KINGS", Color: "#FFCC00"},
	{ID: "mi", Name: "MUMBAI INDIANS", Color: "#0048A0"},
	{ID: "rcb", Name: "ROYAL CHALLENGERS BANGALORE", Color: "#D5152C"},
	{ID: "kkr", Name: "KOLKATA KNIGHT RIDERS", Color: "#3A225D"},
	{ID: "dc", Name: "DELHI CAPITALS", Color: "#004C93"},
	{ID: "pbks", Name: "PUNJAB KINGS", Color: "#ED1B24"},
	{ID: "rr", Name: "RAJASTHAN ROYALS", Color: "#FF4C93"},
	{ID: "srh", Name: "SUNRISERS HYDERABAD", Color: "#FF6F3D"},
	{ID: "gt", Name: "GUJARAT TITANS", Color: "#1E2D4A"},
	{ID: "lsg", Name: "LUCKNOW SUPER GIANTS", Color: "#A5E1F4"},
}

// Franchises returns a copy of the franchise catalog in display order.
func Franchises() []Franchise {
	out := make([]Franchise, len(franchises))
	copy(out, franchises)
	return out
}

// Checked in order: RAJASTHAN must win over the ROYAL keyword.
var franchiseAliases = []struct {
	id       FranchiseID
	codes    []string
	keywords []string
}{
	{id: "srh", codes: []string{"SRH"}, keywords: []string{"SUNRISERS", "HYDERABAD"}},
	{id: "mi", codes: []string{"MI"}, keywords: []string{"MUMBAI"}},
	{id: "csk", codes: []string{"CSK"}, keywords: []string{"CHENNAI"}},
	{id: "rr", codes: []string{"RR"}, keywords: []string{"RAJASTHAN"}},
	{id: "rcb", codes: []string{"RCB"}, keywords: []string{"ROYAL CHALLENGERS", "BANGALORE", "BENGALURU"}},
	{id: "kkr", codes: []string{"KKR"}, keywords: []string{"KOLKATA"}},
	{id: "dc", codes: []string{"DC", "DD"}, keywords: []string{"DELHI"}},
	{id: "pbks", codes: []string{"PBKS", "KXIP"}, keywords: []string{"PUNJAB"}},
	{id: "gt", codes: []string{"GT"}, keywords: []string{"GUJARAT"}},
	{id: "lsg", codes: []string{"LSG"}, keywords: []string{"LUCKNOW"}},
}

// NormalizeFranchiseName maps any of the common spellings of a franchise to
// its canonical id. Unknown names come back upper-cased so they never collide
// with a catalog id.
func NormalizeFranchiseName(name string) FranchiseID {
	u := strings.Join(strings.Fields(cases.Upper(language.Und).String(name)), " ")
	if u == "" {
		return ""
	}
	for _, alias := range franchiseAliases {
		for _, code := range alias.codes {
			if u == code {
				return alias.id
			}
		}
	}
	for _, alias := range franchiseAliases {
		for _, kw := range alias.keywords {
			if strings.Contains(u, kw) {
				return alias.id
			}
		}
	}
	return FranchiseID(u)
}
