package game

type OutcomeKind string

const (
	OutcomeWinner      OutcomeKind = "winner"
	OutcomeDraw        OutcomeKind = "draw"
	OutcomeTimeout     OutcomeKind = "timeout"
	OutcomeResignation OutcomeKind = "resignation"
)

// Outcome is the terminal classification of a match. Winner is set for
// winner, timeout and resignation; Drawn only for draw.
type Outcome struct {
	Kind    OutcomeKind    `json:"type"`
	Winner  string         `json:"winner,omitempty"`
	Drawn   []string       `json:"participants,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func Win(id string) Outcome {
	return Outcome{Kind: OutcomeWinner, Winner: id}
}

func Draw(ids []string) Outcome {
	return Outcome{Kind: OutcomeDraw, Drawn: append([]string(nil), ids...)}
}

func Timeout(winner string) Outcome {
	return Outcome{Kind: OutcomeTimeout, Winner: winner}
}

func Resignation(winner string) Outcome {
	return Outcome{Kind: OutcomeResignation, Winner: winner}
}

// Valid reports whether exactly one variant is populated.
func (o Outcome) Valid() bool {
	switch o.Kind {
	case OutcomeWinner, OutcomeTimeout, OutcomeResignation:
		return o.Winner != "" && len(o.Drawn) == 0
	case OutcomeDraw:
		return o.Winner == ""
	default:
		return false
	}
}

// Result returns how the match ended for one participant: win, lose or draw.
func (o Outcome) Result(id string) string {
	if o.Kind == OutcomeDraw {
		for _, d := range o.Drawn {
			if d == id {
				return "draw"
			}
		}
		return "lose"
	}
	if o.Winner == id {
		return "win"
	}
	return "lose"
}

func (o Outcome) withDetail(key string, v any) Outcome {
	if o.Details == nil {
		o.Details = make(map[string]any)
	}
	o.Details[key] = v
	return o
}
