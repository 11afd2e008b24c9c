package game

import "encoding/json"

const (
	EvenOddMaxPlayers = 10
	// ParityWinPoints is what a correct parity call earns in one round.
	ParityWinPoints = 1
)

type NumberType string

const (
	Evens NumberType = "evens"
	Odds  NumberType = "odds"
)

func init() {
	register(KindEvenOdd, registration{
		maxPlayers: EvenOddMaxPlayers,
		rounds:     true,
		build:      func(h Host, o Options) Session { return NewEvenOdd(h, o) },
	})
}

// Call is one participant's move: a parity guess and a number thrown in.
type Call struct {
	NumberType NumberType `json:"numberType"`
	Number     int        `json:"number"`
}

type EvenOdd struct {
	*roundGame[Call]
}

func NewEvenOdd(host Host, opts Options) *EvenOdd {
	return &EvenOdd{newRoundGame[Call](KindEvenOdd, host, opts, parityRules{})}
}

type parityRules struct{}

func (parityRules) parse(raw json.RawMessage) (Call, bool) {
	var action parityAction
	if err := decodeAction(raw, &action); err != nil {
		return Call{}, false
	}
	return Call{NumberType: NumberType(action.NumberType), Number: *action.Number}, true
}

// score sums every submitted number; whoever called the sum's parity scores.
func (parityRules) score(ledger map[string]Call, order []string) map[string]int {
	sum := 0
	for _, call := range ledger {
		sum += call.Number
	}
	winning := Odds
	if sum%2 == 0 {
		winning = Evens
	}

	gained := make(map[string]int, len(order))
	for _, id := range order {
		if call, ok := ledger[id]; ok && call.NumberType == winning {
			gained[id] = ParityWinPoints
		}
	}
	return gained
}
