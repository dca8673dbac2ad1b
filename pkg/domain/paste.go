package domain

import (
	"time"
)

const MaxTitleLength = 120

type Paste struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	PinHash   string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *Paste) Protected() bool {
	return p.PinHash != ""
}

// Public returns a copy safe to hand to callers: the pin hash is dropped.
func (p *Paste) Public() *Paste {
	return &Paste{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		CreatedAt: p.CreatedAt,
	}
}

type SaveParams struct {
	Title   string
	Content string
	Pin     string
}
