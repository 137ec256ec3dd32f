package members

// Optional is a tri-state field used to distinguish:
// - unspecified (omitted)
// - specified as null
// - specified with a value
type Optional[T any] struct {
	specified bool
	isNull    bool
	value     T
}

func Unspecified[T any]() Optional[T] { return Optional[T]{} }
func Null[T any]() Optional[T]        { return Optional[T]{specified: true, isNull: true} }
func Some[T any](v T) Optional[T]     { return Optional[T]{specified: true, value: v} }

func (o Optional[T]) IsSpecified() bool { return o.specified }
func (o Optional[T]) IsNull() bool      { return o.specified && o.isNull }
func (o Optional[T]) Value() T          { return o.value }

// UpdateMemberInput is the admin edit of a member record.
// Name and Email are required; IsAdmin keeps its stored value when unspecified.
type UpdateMemberInput struct {
	Name    string
	Email   string
	IsAdmin Optional[bool] // cannot be null
}

// SignInInput carries the verified identity provider claims.
type SignInInput struct {
	Email string
	Name  string
}
