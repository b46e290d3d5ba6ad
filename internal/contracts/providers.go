package contracts

import "context"

// Result is a provider answer that is either available or not.
// Callers branch on Available; Err only explains why.
type Result[T any] struct {
	Value     T
	Available bool
	Err       error
}

// Ok wraps an available value
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v, Available: true}
}

// Unavailable wraps a failure; the zero value of T is carried
func Unavailable[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// MacroProvider supplies the macro indicator table
// ⭐ SSOT: 매크로 데이터 공급자 인터페이스
type MacroProvider interface {
	MacroTable(ctx context.Context) Result[*MacroSeriesTable]
}

// PriceProvider supplies daily price history for one ticker
type PriceProvider interface {
	PriceTable(ctx context.Context, ticker string) Result[*PriceTable]
}

// FundamentalsProvider supplies company fundamentals for one ticker
type FundamentalsProvider interface {
	Fundamentals(ctx context.Context, ticker string) Result[FundamentalsRecord]
}

// UniverseProvider supplies the candidate ticker list
type UniverseProvider interface {
	Tickers(ctx context.Context) ([]string, error)
}
