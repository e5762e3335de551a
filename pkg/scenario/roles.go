package scenario

import "strings"

// Role is the meaning of a level-2 section in a test document.
type Role string

const (
	RoleNone         Role = ""
	RoleNarrative    Role = "narrative"
	RoleSteps        Role = "steps"
	RoleExpectations Role = "expectations"
)

// sectionAliases lists, per role, the accepted section headings. Labels are
// compared after lower-casing and collapsing whitespace.
var sectionAliases = map[Role][]string{
	RoleNarrative: {
		"test scenario",
		"scenario",
		"description",
		"overview",
		"テストシナリオ",
		"シナリオ",
		"概要",
		"escenario",
		"description du scénario",
	},
	RoleSteps: {
		"steps",
		"test steps",
		"ステップ",
		"テストステップ",
		"手順",
		"pasos",
		"étapes",
	},
	RoleExpectations: {
		"expectations",
		"expected results",
		"expected result",
		"期待される結果",
		"期待結果",
		"resultados esperados",
		"résultats attendus",
	},
}

var aliasIndex = func() map[string]Role {
	index := map[string]Role{}
	for role, labels := range sectionAliases {
		for _, label := range labels {
			index[normalizeLabel(label)] = role
		}
	}
	return index
}()

// RoleOf maps a section heading to its role, or RoleNone when the heading is
// not one the extractor understands.
func RoleOf(label string) Role {
	return aliasIndex[normalizeLabel(label)]
}

// Aliases returns the accepted headings for role.
func Aliases(role Role) []string {
	return append([]string(nil), sectionAliases[role]...)
}

func normalizeLabel(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(label)), " ")
}
