package game

// PublicView is the client-safe projection of a GameState. It never carries
// the dealer hole card before reveal and never carries the shoe.
type PublicView struct {
	Phase        string          `json:"phase"`
	Chips        int             `json:"chips"`
	Hands        []HandView      `json:"hands"`
	DealerUpcard string          `json:"dealerUpcard,omitempty"`
	DealerHand   *DealerHandView `json:"dealerHand,omitempty"`
	Message      string          `json:"message"`
}

// HandView is the visible slice of one player hand.
type HandView struct {
	Cards  []string `json:"cards"`
	Total  int      `json:"total"`
	Status string   `json:"status"`
}

// DealerHandView is the dealer's hand once the hole card is revealed.
type DealerHandView struct {
	Cards []string `json:"cards"`
	Total int      `json:"total"`
}

// Project derives the public view from canonical state. Pure: the same state
// always projects to the same view, so repeated SYNCs are byte-identical.
func Project(gs *GameState, rules Rules) *PublicView {
	view := &PublicView{
		Phase:   gs.Phase.String(),
		Chips:   gs.Account.Chips,
		Message: gs.Account.Message,
		Hands:   make([]HandView, 0, len(gs.Hands)),
	}

	for _, h := range gs.Hands {
		cards := make([]string, len(h.Cards))
		for i, c := range h.Cards {
			cards[i] = c.String()
		}
		view.Hands = append(view.Hands, HandView{
			Cards:  cards,
			Total:  h.Score(rules).Total,
			Status: h.Status.String(),
		})
	}

	if upcard, ok := gs.Dealer.Upcard(); ok {
		view.DealerUpcard = upcard.String()
	}

	if gs.Dealer.Revealed {
		cards := make([]string, len(gs.Dealer.Cards))
		for i, c := range gs.Dealer.Cards {
			cards[i] = c.String()
		}
		view.DealerHand = &DealerHandView{
			Cards: cards,
			Total: gs.Dealer.Score(rules).Total,
		}
	}

	return view
}
