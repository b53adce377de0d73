package dashboard

// Facet - результат одного независимого измерения дашборда: либо значение,
// либо явная пометка «недоступно» с причиной. В ноль сворачивается только при сборке ответа.
type Facet[T any] struct {
	value T
	err   error
	set   bool
}

// Ready оборачивает успешно посчитанное значение.
func Ready[T any](v T) Facet[T] {
	return Facet[T]{value: v, set: true}
}

// Failed помечает фасет как недоступный.
func Failed[T any](err error) Facet[T] {
	return Facet[T]{err: err}
}

// OK сообщает, что фасет посчитан (в том числе легитимным нулём).
func (f Facet[T]) OK() bool {
	return f.set && f.err == nil
}

// Err возвращает причину недоступности.
func (f Facet[T]) Err() error {
	return f.err
}

// Or возвращает значение или fallback, если фасет недоступен.
func (f Facet[T]) Or(fallback T) T {
	if !f.OK() {
		return fallback
	}
	return f.value
}
