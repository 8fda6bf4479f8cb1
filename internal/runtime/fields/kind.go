package fields

// Kind identifies which member of the Value union is populated.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindInt
	KindDecimal
	KindTimestamp
	KindChar
	KindBool
	KindBytes
)

var kindNames = [...]string{
	KindInvalid:   "invalid",
	KindString:    "string",
	KindInt:       "int",
	KindDecimal:   "decimal",
	KindTimestamp: "timestamp",
	KindChar:      "char",
	KindBool:      "bool",
	KindBytes:     "bytes",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// KindOf maps a name produced by Kind.String back to its Kind.
func KindOf(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name && Kind(k) != KindInvalid {
			return Kind(k), true
		}
	}
	return KindInvalid, false
}
