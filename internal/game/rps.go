package game

import "encoding/json"

type Hand string

const (
	Rock     Hand = "rock"
	Paper    Hand = "paper"
	Scissors Hand = "scissors"
)

func init() {
	register(KindRockPaperScissors, registration{
		fixedPlayers: 2,
		maxPlayers:   2,
		rounds:       true,
		build:        func(h Host, o Options) Session { return NewRockPaperScissors(h, o) },
	})
}

// Beats reports whether a defeats b.
func (a Hand) Beats(b Hand) bool {
	switch a {
	case Rock:
		return b == Scissors
	case Paper:
		return b == Rock
	case Scissors:
		return b == Paper
	}
	return false
}

type RockPaperScissors struct {
	*roundGame[Hand]
}

func NewRockPaperScissors(host Host, opts Options) *RockPaperScissors {
	return &RockPaperScissors{newRoundGame[Hand](KindRockPaperScissors, host, opts, handRules{})}
}

type handRules struct{}

func (handRules) parse(raw json.RawMessage) (Hand, bool) {
	var action handAction
	if err := decodeAction(raw, &action); err != nil {
		return "", false
	}
	return Hand(action.Move), true
}

// score gives a point for every opponent beaten, or for every opponent that
// did not show a hand at all.
func (handRules) score(ledger map[string]Hand, order []string) map[string]int {
	gained := make(map[string]int, len(order))
	for _, id := range order {
		mine, moved := ledger[id]
		if !moved {
			continue
		}
		for _, other := range order {
			if other == id {
				continue
			}
			theirs, ok := ledger[other]
			if !ok || mine.Beats(theirs) {
				gained[id]++
			}
		}
	}
	return gained
}
