// Package filter implements narrows: immutable predicates over message
// records, together with the locality capability that tells the engine
// whether membership can be computed without asking the server.
package filter

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/bhandras/msgsync/internal/message"
	"github.com/bhandras/msgsync/internal/wire"
)

// ResolvedTopicPrefix marks a topic as resolved.
const ResolvedTopicPrefix = "✔ "

// Filter is an immutable, ordered list of terms.
//
// Term order is preserved for navigation (WithNewParams keeps positions),
// while SortedTermTypes and CanApplyLocally are insensitive to order.
type Filter struct {
	terms     []Term
	termTypes []TermType
	local     bool
}

// New builds a filter from terms. Terms are canonicalized; empty operators
// are dropped.
func New(terms ...Term) *Filter {
	f := &Filter{local: true}
	for _, t := range terms {
		t = t.Canonical()
		if t.Operator == "" {
			continue
		}
		f.terms = append(f.terms, t)
		if !t.local() {
			f.local = false
		}
	}
	f.termTypes = sortedTermTypes(f.terms)
	return f
}

func sortedTermTypes(terms []Term) []TermType {
	sorted := make([]Term, len(terms))
	copy(sorted, terms)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := rank(sorted[i]), rank(sorted[j])
		if ri != rj {
			return ri < rj
		}
		return sorted[i].Type() < sorted[j].Type()
	})

	seen := make(map[TermType]struct{}, len(sorted))
	out := make([]TermType, 0, len(sorted))
	for _, t := range sorted {
		tt := t.Type()
		if _, ok := seen[tt]; ok {
			continue
		}
		seen[tt] = struct{}{}
		out = append(out, tt)
	}
	return out
}

// Terms returns a copy of the filter's terms in their original order.
func (f *Filter) Terms() []Term {
	out := make([]Term, len(f.terms))
	copy(out, f.terms)
	return out
}

// SortedTermTypes returns the normalized, deduplicated term types the
// filter depends on.
func (f *Filter) SortedTermTypes() []TermType {
	out := make([]TermType, len(f.termTypes))
	copy(out, f.termTypes)
	return out
}

// DependsOn reports whether the filter contains tt, positively or negated.
func (f *Filter) DependsOn(tt TermType) bool {
	return f.Contains(tt) || f.Contains(tt.Negated())
}

// Contains reports whether tt is among the filter's term types.
func (f *Filter) Contains(tt TermType) bool {
	for _, have := range f.termTypes {
		if have == tt {
			return true
		}
	}
	return false
}

// IsExactly reports whether the filter's term types are exactly tts.
func (f *Filter) IsExactly(tts ...TermType) bool {
	if len(tts) != len(f.termTypes) {
		return false
	}
	want := make(map[TermType]struct{}, len(tts))
	for _, tt := range tts {
		want[tt] = struct{}{}
	}
	for _, tt := range f.termTypes {
		if _, ok := want[tt]; !ok {
			return false
		}
	}
	return true
}

// CanApplyLocally reports whether Predicate alone decides membership. It is
// false when any term needs server-side computation, such as full-text
// search.
func (f *Filter) CanApplyLocally() bool { return f.local }

// Equal reports whether both filters have the same terms in the same order.
func (f *Filter) Equal(other *Filter) bool {
	if f == nil || other == nil {
		return f == other
	}
	if len(f.terms) != len(other.terms) {
		return false
	}
	for i := range f.terms {
		if f.terms[i] != other.terms[i] {
			return false
		}
	}
	return true
}

// Key returns a stable string identifying the filter's terms, usable as a
// map key.
func (f *Filter) Key() string {
	data, _ := json.Marshal(f.terms)
	return string(data)
}

// String implements fmt.Stringer.
func (f *Filter) String() string {
	parts := make([]string, 0, len(f.terms))
	for _, t := range f.terms {
		p := string(t.Operator) + ":" + t.Operand
		if t.Negated {
			p = "-" + p
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}

// MarshalJSON encodes the filter as its term list, the wire form of a
// narrow.
func (f *Filter) MarshalJSON() ([]byte, error) {
	if f.terms == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(f.terms)
}

// operand returns the operand of the first non-negated term with op.
func (f *Filter) operand(op Operator) (string, bool) {
	for _, t := range f.terms {
		if t.Operator == op && !t.Negated {
			return t.Operand, true
		}
	}
	return "", false
}

// HasOperator reports whether any non-negated term uses op.
func (f *Filter) HasOperator(op Operator) bool {
	_, ok := f.operand(op)
	return ok
}

// HasTopic reports whether the filter narrows to exactly the given stream
// topic.
func (f *Filter) HasTopic(streamID int64, topic string) bool {
	ch, ok := f.operand(OperatorChannel)
	if !ok || ch != strconv.FormatInt(streamID, 10) {
		return false
	}
	tp, ok := f.operand(OperatorTopic)
	return ok && strings.EqualFold(tp, topic)
}

// WithNewParams returns a copy of f with the first non-negated term using
// t's operator replaced by t. If no such term exists, t is appended.
func (f *Filter) WithNewParams(t Term) *Filter {
	t = t.Canonical()
	terms := f.Terms()
	replaced := false
	for i := range terms {
		if terms[i].Operator == t.Operator && !terms[i].Negated {
			terms[i] = t
			replaced = true
			break
		}
	}
	if !replaced {
		terms = append(terms, t)
	}
	return New(terms...)
}

// CanNewlyMatchMovedMessages reports whether messages moved into the given
// stream topic could start matching the filter.
func (f *Filter) CanNewlyMatchMovedMessages(streamID int64, topic string) bool {
	if ch, ok := f.operand(OperatorChannel); ok && ch != strconv.FormatInt(streamID, 10) {
		return false
	}
	if tp, ok := f.operand(OperatorTopic); ok && !strings.EqualFold(tp, topic) {
		return false
	}
	if f.HasOperator(OperatorDM) {
		return false
	}
	for _, t := range f.terms {
		if t.Operator == OperatorIs && t.Operand == IsDM && !t.Negated {
			return false
		}
	}
	return true
}

// Predicate reports whether r matches every term of the filter. Terms that
// cannot be evaluated locally are treated as matching.
func (f *Filter) Predicate(r *message.Record) bool {
	for _, t := range f.terms {
		if matchTerm(t, r) == t.Negated {
			return false
		}
	}
	return true
}

func matchTerm(t Term, r *message.Record) bool {
	switch t.Operator {
	case OperatorChannel:
		if !r.IsStream() {
			return false
		}
		if id, err := strconv.ParseInt(t.Operand, 10, 64); err == nil {
			return r.StreamID == id
		}
		return strings.EqualFold(r.DisplayRecipient, t.Operand)

	case OperatorTopic:
		return r.IsStream() && strings.EqualFold(r.Topic, t.Operand)

	case OperatorDM:
		if r.Type != message.TypePrivate {
			return false
		}
		return wire.DirectGroupKey(parseIDs(t.Operand)) ==
			wire.DirectGroupKey(r.DirectRecipients)

	case OperatorSender:
		id, err := strconv.ParseInt(t.Operand, 10, 64)
		return err == nil && r.SenderID == id

	case OperatorID:
		id, err := strconv.ParseInt(t.Operand, 10, 64)
		return err == nil && r.ID == id

	case OperatorIs:
		switch t.Operand {
		case IsStarred:
			return r.Flags.Has(message.FlagStarred)
		case IsUnread:
			return r.Flags.Unread()
		case IsMentioned:
			return r.Flags.Mentioned()
		case IsAlerted:
			return r.Flags.Has(message.FlagHasAlertWord)
		case IsDM:
			return r.Type == message.TypePrivate
		case IsResolved:
			return r.IsStream() && strings.HasPrefix(r.Topic, ResolvedTopicPrefix)
		}

	case OperatorHas:
		switch t.Operand {
		case HasImage:
			return r.Flags.Has(message.FlagHasImage)
		case HasLink:
			return r.Flags.Has(message.FlagHasLink)
		case HasAttachment:
			return r.Flags.Has(message.FlagHasAttachment)
		case HasReaction:
			return r.HasReactions()
		}
	}

	// near:, search: and unknown is:/has: operands do not constrain locally.
	return !t.Negated
}

func parseIDs(s string) []int64 {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
