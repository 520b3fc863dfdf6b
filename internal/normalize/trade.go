package normalize

import (
	"strings"

	"github.com/sells-group/permit-cli/internal/model"
)

// tradeKeywords maps substring groups to trades. Order is significant:
// groups are evaluated top to bottom and the first match wins, so a
// "replace electrical panel and water heater" permit classifies as
// Electrical, never Plumbing.
var tradeKeywords = []struct {
	trade    model.Trade
	keywords []string
}{
	{model.TradeElectrical, []string{"electric", "panel", "rewire", "wiring", "service upgrade"}},
	{model.TradePlumbing, []string{"plumb", "water heater", "sewer", "gas line", "repipe"}},
	{model.TradeHVAC, []string{"hvac", "mechanical", "a/c", "air condition", "furnace", "heat pump"}},
	{model.TradeRoofing, []string{"roof", "reroof", "shingle"}},
	{model.TradePool, []string{"pool", "spa"}},
}

// ClassifyTrade matches a free-text work description against the keyword
// groups, case-folded. Unmatched descriptions fall back to General.
func ClassifyTrade(desc string) model.Trade {
	folded := strings.ToLower(desc)
	for _, group := range tradeKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(folded, kw) {
				return group.trade
			}
		}
	}
	return model.TradeGeneral
}
