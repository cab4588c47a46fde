package models

import "strings"

// Region is a hosting location offered during region selection.
type Region struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Regions is the fixed list offered to captains, using provider location ids.
var Regions = []Region{
	{ID: "amsterdam", Label: "Amsterdam"},
	{ID: "barcelona", Label: "Barcelona"},
	{ID: "bristol", Label: "Bristol"},
	{ID: "dusseldorf", Label: "Düsseldorf"},
	{ID: "helsinki", Label: "Helsinki"},
	{ID: "istanbul", Label: "Istanbul"},
	{ID: "stockholm", Label: "Stockholm"},
	{ID: "strasbourg", Label: "Strasbourg"},
	{ID: "warsaw", Label: "Warsaw"},
	{ID: "chicago", Label: "Chicago"},
	{ID: "dallas", Label: "Dallas"},
	{ID: "los_angeles", Label: "Los Angeles"},
	{ID: "new_york_city", Label: "New York"},
	{ID: "toronto", Label: "Toronto"},
	{ID: "sao_paulo", Label: "São Paulo"},
	{ID: "singapore", Label: "Singapore"},
	{ID: "sydney", Label: "Sydney"},
	{ID: "tokyo", Label: "Tokyo"},
}

// RegionLabel returns the display label of a region id, or the id itself.
func RegionLabel(id string) string {
	for _, r := range Regions {
		if r.ID == id {
			return r.Label
		}
	}
	return id
}

var mapNames = map[string]string{
	"de_dust2":     "Dust II",
	"de_mirage":    "Mirage",
	"de_inferno":   "Inferno",
	"de_nuke":      "Nuke",
	"de_overpass":  "Overpass",
	"de_vertigo":   "Vertigo",
	"de_ancient":   "Ancient",
	"de_anubis":    "Anubis",
	"de_train":     "Train",
	"de_shortdust": "Shortdust",
	"de_shortnuke": "Shortnuke",
}

// MapLabel turns a map id such as de_dust2 into a display name.
func MapLabel(id string) string {
	if name, ok := mapNames[id]; ok {
		return name
	}
	name := strings.TrimPrefix(id, "de_")
	if name == "" {
		return id
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
