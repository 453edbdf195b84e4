package node

// Predicate constrains one property in a Filter.
type Predicate interface {
	predicate()
}

// BoolEquals matches an exact boolean.
type BoolEquals struct {
	Value bool
}

// DateRange matches dates inside [From, To]. A nil end leaves that side open;
// both nil leaves the property unconstrained.
type DateRange struct {
	From *Date
	To   *Date
}

// Contains matches a case-insensitive substring of the property's string form.
type Contains struct {
	Text string
}

func (BoolEquals) predicate() {}
func (DateRange) predicate()  {}
func (Contains) predicate()   {}

// Applies reports whether p can constrain a property of type t. Contains works
// on the string form of any value.
func Applies(p Predicate, t PrimitiveType) bool {
	switch p.(type) {
	case BoolEquals:
		return t == TypeBoolean
	case DateRange:
		return t == TypeDate
	case Contains:
		return true
	}
	return false
}

// Open reports whether the range constrains nothing.
func (r DateRange) Open() bool {
	return r.From == nil && r.To == nil
}

// Filter maps property names to predicates. Entries are AND-combined and a
// property without an entry is unconstrained.
type Filter map[string]Predicate

// Since builds a range open at the top.
func Since(d Date) DateRange {
	return DateRange{From: &d}
}

// Until builds a range open at the bottom.
func Until(d Date) DateRange {
	return DateRange{To: &d}
}

// Between builds a closed range.
func Between(from, to Date) DateRange {
	return DateRange{From: &from, To: &to}
}

// ExpiredFilter selects still-active nodes whose date lies before today.
func ExpiredFilter(dateProperty, activeProperty string, today Date) Filter {
	return Filter{
		dateProperty:   Until(today.AddDays(-1)),
		activeProperty: BoolEquals{Value: true},
	}
}

// Matches evaluates the filter against an already loaded record. It mirrors
// the store-side semantics so views can be re-checked without a round trip.
func (f Filter) Matches(r Record) bool {
	for name, pred := range f {
		v, ok := r.Properties[name]
		switch p := pred.(type) {
		case BoolEquals:
			b, isBool := v.Bool()
			if !ok || !isBool || b != p.Value {
				return false
			}
		case DateRange:
			if p.Open() {
				continue
			}
			d, isDate := v.Date()
			if !ok || !isDate {
				return false
			}
			if p.From != nil && d.Before(*p.From) {
				return false
			}
			if p.To != nil && p.To.Before(d) {
				return false
			}
		case Contains:
			if !ok || !containsFold(v.String(), p.Text) {
				return false
			}
		}
	}
	return true
}
