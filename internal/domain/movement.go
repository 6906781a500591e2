package domain

import "github.com/shopspring/decimal"

// Direction of a price movement relative to the reference price.
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
)

// Severity buckets for a detected movement, smallest to largest.
type Severity string

const (
	SeveritySmall  Severity = "SMALL"
	SeverityMedium Severity = "MEDIUM"
	SeverityLarge  Severity = "LARGE"
)

// Emotion tags attached to spoken messages.
const (
	TagSurprised = "[surprised]"
	TagHappy     = "[happy]"
	TagNeutral   = "[neutral]"
)

// Thresholds holds the pip counts that trigger each severity.
// Must satisfy 0 < Small < Medium < Large.
type Thresholds struct {
	Small  decimal.Decimal
	Medium decimal.Decimal
	Large  decimal.Decimal
}

// MovementEvent is emitted when a pair moves past a threshold. It is
// ephemeral: produced and consumed within one detection cycle.
type MovementEvent struct {
	Symbol     string
	JPName     string
	Pips       decimal.Decimal
	Direction  Direction
	Severity   Severity
	EmotionTag string
}

// TickUpdate is the raw telemetry snapshot produced for every processed
// tick, independent of whether a movement event fired. BasePrice is the
// reference that was in effect when the tick was evaluated.
type TickUpdate struct {
	Symbol    string
	JPName    string
	Price     decimal.Decimal
	BasePrice decimal.Decimal
	Pips      decimal.Decimal
}

// Detector owns the per-symbol reference state and turns price samples
// into movement events. All updates for a symbol happen on the caller's
// single timeline; the detector performs no locking and no I/O.
type Detector struct {
	thresholds Thresholds
	states     map[string]*SymbolState
	order      []string
}

// NewDetector creates a detector tracking the given pairs.
func NewDetector(specs []SymbolSpec, thresholds Thresholds) *Detector {
	d := &Detector{
		thresholds: thresholds,
		states:     make(map[string]*SymbolState, len(specs)),
	}
	for _, spec := range specs {
		d.states[spec.Symbol] = &SymbolState{Spec: spec}
		d.order = append(d.order, spec.Symbol)
	}
	return d
}

// Detect feeds one price sample for a symbol. The first sample for a
// pair seeds the reference and produces nothing. Later samples always
// produce a TickUpdate against the pre-sample reference, plus a
// MovementEvent when the pip change crosses a threshold; emitting an
// event resets the reference to the triggering price.
func (d *Detector) Detect(symbol string, price decimal.Decimal) (*MovementEvent, *TickUpdate) {
	state, ok := d.states[symbol]
	if !ok {
		return nil, nil
	}

	if state.BasePrice == nil {
		base := price
		last := price
		state.BasePrice = &base
		state.LastPrice = &last
		return nil, nil
	}

	base := *state.BasePrice
	delta := price.Sub(base)
	pips := delta.Abs().Div(state.Spec.PipScale())

	event := d.classify(state.Spec, delta, pips)
	if event != nil {
		newBase := price
		state.BasePrice = &newBase
	}

	last := price
	state.LastPrice = &last

	update := &TickUpdate{
		Symbol:    symbol,
		JPName:    state.Spec.JPName,
		Price:     price,
		BasePrice: base,
		Pips:      pips,
	}
	return event, update
}

// classify applies the threshold policy highest-first; the first match
// wins so a Large movement never also reports Medium or Small.
func (d *Detector) classify(spec SymbolSpec, delta, pips decimal.Decimal) *MovementEvent {
	var severity Severity
	var tag string

	up := delta.IsPositive()

	switch {
	case pips.GreaterThanOrEqual(d.thresholds.Large):
		severity = SeverityLarge
		tag = TagSurprised
	case pips.GreaterThanOrEqual(d.thresholds.Medium):
		severity = SeverityMedium
		tag = directionTag(up)
	case pips.GreaterThanOrEqual(d.thresholds.Small):
		severity = SeveritySmall
		tag = directionTag(up)
	default:
		return nil
	}

	direction := DirectionDown
	if up {
		direction = DirectionUp
	}

	return &MovementEvent{
		Symbol:     spec.Symbol,
		JPName:     spec.JPName,
		Pips:       pips,
		Direction:  direction,
		Severity:   severity,
		EmotionTag: tag,
	}
}

func directionTag(up bool) string {
	if up {
		return TagHappy
	}
	return TagNeutral
}

// Status returns the per-pair snapshot for all tracked symbols in
// configuration order. Pairs without a tick yet report nil prices.
func (d *Detector) Status() []SymbolStatus {
	status := make([]SymbolStatus, 0, len(d.order))
	for _, symbol := range d.order {
		state := d.states[symbol]
		status = append(status, SymbolStatus{
			Symbol:    symbol,
			JPName:    state.Spec.JPName,
			Price:     state.LastPrice,
			BasePrice: state.BasePrice,
		})
	}
	return status
}

// Symbols returns the tracked symbols in configuration order.
func (d *Detector) Symbols() []string {
	return d.order
}
