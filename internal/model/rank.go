package model

// MinRankEndEinsatz is the lowest rank level (UBM) allowed to end an Einsatz
// from the kiosk.
const MinRankEndEinsatz = 4

type rank struct {
	name  string
	level int
}

var ranks = map[string]rank{
	"FM":  {"Feuerwehrmann", 1},
	"OFM": {"Oberfeuerwehrmann", 2},
	"HFM": {"Hauptfeuerwehrmann", 3},
	"UBM": {"Unterbrandmeister", 4},
	"BM":  {"Brandmeister", 5},
	"OBM": {"Oberbrandmeister", 6},
	"HBM": {"Hauptbrandmeister", 7},
	"BI":  {"Brandinspektor", 8},
}

// RankInfo returns the display name and seniority level for a rank code.
// Unknown codes yield the code itself and level 0 so they never pass a
// level check.
func RankInfo(code string) (string, int) {
	if r, ok := ranks[code]; ok {
		return r.name, r.level
	}
	return code, 0
}

// RankName is RankInfo without the level.
func RankName(code string) string {
	name, _ := RankInfo(code)
	return name
}
