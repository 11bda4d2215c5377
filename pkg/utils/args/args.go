// Package args provides flag.Value adapters for typed command line flags.
package args

// Adapter is a flag.Value which parses its argument with a parser.
type Adapter[T interface{ String() string }] struct {
	value  T
	parser func(string) (T, error)
	isSet  bool
}

func (i *Adapter[T]) String() string {
	if i.isSet {
		return i.value.String()
	}
	return ""
}

func (i *Adapter[T]) Set(s string) error {
	v, err := i.parser(s)
	if err != nil {
		return err
	}
	i.isSet = true
	i.value = v
	return nil
}

// Value returns parsed value, or default value if it is not set.
func (i Adapter[T]) Value() T {
	return i.value
}

func (i Adapter[T]) IsSet() bool {
	return i.isSet
}

func Parser[T interface{ String() string }](parser func(string) (T, error)) *Adapter[T] {
	return &Adapter[T]{parser: parser}
}

// ParserWithDefault is Parser whose Value() is `def` until it is Set.
//
// IsSet() keeps false until Set is called.
func ParserWithDefault[T interface{ String() string }](parser func(string) (T, error), def T) *Adapter[T] {
	return &Adapter[T]{parser: parser, value: def}
}
