package filter

import "strings"

// Operator is the closed set of narrow operators.
type Operator string

const (
	OperatorChannel Operator = "channel"
	OperatorTopic   Operator = "topic"
	OperatorDM      Operator = "dm"
	OperatorSender  Operator = "sender"
	OperatorIs      Operator = "is"
	OperatorHas     Operator = "has"
	OperatorSearch  Operator = "search"
	OperatorNear    Operator = "near"
	OperatorID      Operator = "id"
)

// Valid reports whether o is one of the known operators.
func (o Operator) Valid() bool {
	switch o {
	case OperatorChannel, OperatorTopic, OperatorDM, OperatorSender, OperatorIs,
		OperatorHas, OperatorSearch, OperatorNear, OperatorID:
		return true
	}
	return false
}

// operatorAliases maps legacy operator spellings to their canonical form.
var operatorAliases = map[string]Operator{
	"stream":  OperatorChannel,
	"subject": OperatorTopic,
	"pm-with": OperatorDM,
}

// Operand values of the is: and has: operators.
const (
	IsStarred   = "starred"
	IsUnread    = "unread"
	IsMentioned = "mentioned"
	IsAlerted   = "alerted"
	IsDM        = "dm"
	IsResolved  = "resolved"
	IsFollowed  = "followed"

	HasImage      = "image"
	HasLink       = "link"
	HasAttachment = "attachment"
	HasReaction   = "reaction"
)

// TermType identifies what a term depends on, e.g. "is-starred" or
// "not-has-link". Operators without a closed operand set use the operator
// name alone.
type TermType string

// Term types the property-change updater maintains incrementally.
const (
	TermHasImage      TermType = "has-image"
	TermHasLink       TermType = "has-link"
	TermHasReaction   TermType = "has-reaction"
	TermHasAttachment TermType = "has-attachment"
	TermIsStarred     TermType = "is-starred"
	TermIsUnread      TermType = "is-unread"
	TermIsMentioned   TermType = "is-mentioned"
	TermIsAlerted     TermType = "is-alerted"
)

// PropertyTermTypes lists every term type whose membership can change when a
// message property changes in place.
var PropertyTermTypes = []TermType{
	TermHasImage,
	TermHasLink,
	TermHasReaction,
	TermHasAttachment,
	TermIsStarred,
	TermIsUnread,
	TermIsMentioned,
	TermIsAlerted,
}

const negatedPrefix = "not-"

// Negated returns the negated form of tt.
func (tt TermType) Negated() TermType { return TermType(negatedPrefix + string(tt)) }

// IsNegated reports whether tt is a negated term type.
func (tt TermType) IsNegated() bool { return strings.HasPrefix(string(tt), negatedPrefix) }

// IsPropertyTermType reports whether tt is one of PropertyTermTypes.
func IsPropertyTermType(tt TermType) bool {
	for _, p := range PropertyTermTypes {
		if p == tt {
			return true
		}
	}
	return false
}

// Term is one {operator, operand, negated} element of a narrow.
type Term struct {
	Operator Operator `json:"operator" yaml:"operator"`
	Operand  string   `json:"operand" yaml:"operand"`
	Negated  bool     `json:"negated,omitempty" yaml:"negated,omitempty"`
}

// Canonical returns the term with aliases resolved and the operand of
// closed-set operators lower-cased.
func (t Term) Canonical() Term {
	op := Operator(strings.ToLower(strings.TrimSpace(string(t.Operator))))
	if alias, ok := operatorAliases[string(op)]; ok {
		op = alias
	}
	operand := strings.TrimSpace(t.Operand)
	switch op {
	case OperatorIs, OperatorHas:
		operand = strings.ToLower(operand)
		if op == OperatorIs && operand == "private" {
			operand = IsDM
		}
		// has:images and friends are accepted for compatibility.
		if op == OperatorHas {
			operand = strings.TrimSuffix(operand, "s")
		}
	}
	return Term{Operator: op, Operand: operand, Negated: t.Negated}
}

// Type returns the term type of t.
func (t Term) Type() TermType {
	var tt TermType
	switch t.Operator {
	case OperatorIs, OperatorHas:
		tt = TermType(string(t.Operator) + "-" + t.Operand)
	default:
		tt = TermType(t.Operator)
	}
	if t.Negated {
		return tt.Negated()
	}
	return tt
}

// local reports whether the term can be evaluated from a message record.
func (t Term) local() bool {
	switch t.Operator {
	case OperatorSearch:
		return false
	case OperatorIs:
		switch t.Operand {
		case IsStarred, IsUnread, IsMentioned, IsAlerted, IsDM, IsResolved:
			return true
		}
		return false
	case OperatorHas:
		switch t.Operand {
		case HasImage, HasLink, HasAttachment, HasReaction:
			return true
		}
		return false
	case OperatorChannel, OperatorTopic, OperatorDM, OperatorSender,
		OperatorNear, OperatorID:
		return true
	}
	return false
}

// typeRank orders term types the way narrows are conventionally written:
// location first, then sender and properties, then free text.
var typeRank = map[Operator]int{
	OperatorChannel: 0,
	OperatorTopic:   1,
	OperatorDM:      2,
	OperatorSender:  3,
	OperatorIs:      4,
	OperatorHas:     5,
	OperatorID:      6,
	OperatorNear:    7,
	OperatorSearch:  8,
}

func rank(t Term) int {
	if r, ok := typeRank[t.Operator]; ok {
		return r
	}
	return len(typeRank)
}
