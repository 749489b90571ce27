package application

import "context"

// UseCase is the single-command shape shared by write paths; presentation code
// depends on it rather than on concrete use case types.
type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}
