package reports

// macroOf maps raw item categories to the macro groups the dashboard
// reports on. Anything unmapped lands in the catch-all.
var macroOf = map[string]string{
	"Mercearia":  "Alimentos",
	"Padaria":    "Alimentos",
	"Hortifruti": "Alimentos",
	"Açougue":    "Alimentos",
	"Bebidas":    "Bebidas",
	"Limpeza":    "Casa",
	"Higiene":    "Casa",
}

const macroFallback = "Outros"

// MacroCategory resolves the macro group for a raw category string.
func MacroCategory(category string) string {
	if macro, ok := macroOf[category]; ok {
		return macro
	}
	return macroFallback
}
