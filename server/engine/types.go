package engine

type Team string

const (
	One Team = "ONE"
	Two Team = "TWO"
)

type FieldKind string

const (
	Start     FieldKind = "start"
	Position1 FieldKind = "position_1"
	Position2 FieldKind = "position_2"
	Hedgehog  FieldKind = "hedgehog"
	Salad     FieldKind = "salad"
	Carrots   FieldKind = "carrots"
	Hare      FieldKind = "hare"
	Market    FieldKind = "market"
	Goal      FieldKind = "goal"
)

type Phase string

const (
	PhaseMove Phase = "move"
	PhaseOver Phase = "over"
)

type ActionKind string

const (
	KindExchangeCarrots ActionKind = "exchange_carrots"
	KindEatSalad        ActionKind = "eat_salad"
)

type Player struct {
	Team     Team `json:"team"`
	Position int  `json:"position"`
	Carrots  int  `json:"carrots"`
	Salads   int  `json:"salads"`
}
