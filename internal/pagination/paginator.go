package pagination

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ButyrinIA/yatube/internal/models"
)

// Sequence - ленивая конечная упорядоченная последовательность. Каждый вызов
// заново читает текущее состояние, курсор между вызовами не хранится.
type Sequence[T any] interface {
	Count(ctx context.Context) (int, error)
	Slice(ctx context.Context, offset, limit int) ([]T, error)
}

// SliceSequence - последовательность над готовым срезом
type SliceSequence[T any] []T

func (s SliceSequence[T]) Count(ctx context.Context) (int, error) {
	return len(s), nil
}

func (s SliceSequence[T]) Slice(ctx context.Context, offset, limit int) ([]T, error) {
	if offset >= len(s) {
		return []T{}, nil
	}
	end := min(offset+limit, len(s))
	return s[offset:end], nil
}

type Paginator struct {
	PageSize int
}

func New(pageSize int) (Paginator, error) {
	if pageSize < 1 {
		return Paginator{}, fmt.Errorf("page size must be positive, got %d", pageSize)
	}
	return Paginator{PageSize: pageSize}, nil
}

// Paginate возвращает страницу k. k < 1 превращается в первую страницу,
// k больше последней - в последнюю. Пустая последовательность - это страница 1 из 1.
func Paginate[T any](ctx context.Context, p Paginator, seq Sequence[T], k int) (models.Page[T], error) {
	count, err := seq.Count(ctx)
	if err != nil {
		return models.Page[T]{}, err
	}

	numPages := NumPages(count, p.PageSize)
	number := min(max(k, 1), numPages)

	page := models.Page[T]{
		Items:    []T{},
		Number:   number,
		NumPages: numPages,
		Count:    count,
		PageSize: p.PageSize,
	}
	if count == 0 {
		return page, nil
	}

	items, err := seq.Slice(ctx, (number-1)*p.PageSize, p.PageSize)
	if err != nil {
		return models.Page[T]{}, err
	}
	page.Items = items
	return page, nil
}

func NumPages(count, pageSize int) int {
	if count == 0 {
		return 1
	}
	return (count + pageSize - 1) / pageSize
}

// ParsePageNumber разбирает параметр ?page=. Пусто или не число - первая страница.
// Число вне диапазона int прижимается к границе и дальше клампится как обычно.
func ParsePageNumber(raw string) int {
	k, err := strconv.Atoi(strings.TrimSpace(raw))
	switch {
	case errors.Is(err, strconv.ErrRange) && strings.HasPrefix(strings.TrimSpace(raw), "-"):
		return math.MinInt
	case errors.Is(err, strconv.ErrRange):
		return math.MaxInt
	case err != nil:
		return 1
	}
	return k
}
