package models

import "time"

type Group struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Slug        string  `json:"slug"`
	Description *string `json:"description,omitempty"`
}

// Post во всех лентах упорядочен по CreatedAt по убыванию, затем по ID по убыванию.
// CreatedAt назначается хранилищем при создании и больше не меняется.
type Post struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	AuthorID  string    `json:"authorId"`
	GroupID   *int64    `json:"groupId,omitempty"`
	Image     string    `json:"image,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Comment struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"postId"`
	AuthorID  string    `json:"authorId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

type Follow struct {
	FollowerID string `json:"followerId"`
	AuthorID   string `json:"authorId"`
}

// Page - окно над упорядоченной последовательностью. Number начинается с 1 и
// всегда лежит в 1..NumPages; для пустой последовательности NumPages равен 1.
type Page[T any] struct {
	Items    []T `json:"items"`
	Number   int `json:"number"`
	NumPages int `json:"numPages"`
	Count    int `json:"count"`
	PageSize int `json:"pageSize"`
}

func (p Page[T]) HasNext() bool {
	return p.Number < p.NumPages
}

func (p Page[T]) HasPrevious() bool {
	return p.Number > 1
}

// StartIndex возвращает номер (с 1) первого элемента страницы или 0 для пустой
func (p Page[T]) StartIndex() int {
	if p.Count == 0 {
		return 0
	}
	return (p.Number-1)*p.PageSize + 1
}
