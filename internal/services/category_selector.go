// This file implements the presentation strategies of the category picker.
// Short lists are offered as an inline menu, long ones as a modal list.

package services

import (
	"fmt"

	"pocket/internal/core"

	"github.com/google/uuid"
)

// DefaultMenuLimit is the largest candidate count still shown as a menu.
const DefaultMenuLimit = 6

// NoCategoryLabel is shown when the form has no category bound.
const NoCategoryLabel = "no category"

type SelectorStyle string

const (
	StyleMenu SelectorStyle = "menu"
	StyleList SelectorStyle = "list"
)

// Presentation describes how the picker should be shown.
type Presentation struct {
	Style   SelectorStyle   `json:"style"`
	Options []core.Category `json:"options"`
	Current *core.Category  `json:"current,omitempty"`
	Label   string          `json:"label"`
}

// CategorySelector is the strategy interface for picking a category.
type CategorySelector interface {
	// Present lays out the candidates, highlighting current when it is among them.
	Present(candidates []core.Category, current uuid.UUID) Presentation
	// Choose resolves a picked id against the candidates.
	Choose(candidates []core.Category, id uuid.UUID) (core.Category, error)
}

// MenuSelector shows the candidates as an inline menu.
type MenuSelector struct{}

func (MenuSelector) Present(candidates []core.Category, current uuid.UUID) Presentation {
	return present(StyleMenu, candidates, current)
}

func (MenuSelector) Choose(candidates []core.Category, id uuid.UUID) (core.Category, error) {
	return choose(candidates, id)
}

// ListSelector shows the candidates in a modal list.
type ListSelector struct{}

func (ListSelector) Present(candidates []core.Category, current uuid.UUID) Presentation {
	return present(StyleList, candidates, current)
}

func (ListSelector) Choose(candidates []core.Category, id uuid.UUID) (core.Category, error) {
	return choose(candidates, id)
}

var selectorStrategies = map[SelectorStyle]CategorySelector{
	StyleMenu: MenuSelector{},
	StyleList: ListSelector{},
}

// SelectorFor picks the menu for up to limit candidates and the list beyond.
// A non-positive limit falls back to DefaultMenuLimit.
func SelectorFor(n, limit int) CategorySelector {
	if limit <= 0 {
		limit = DefaultMenuLimit
	}
	if n <= limit {
		return selectorStrategies[StyleMenu]
	}
	return selectorStrategies[StyleList]
}

// GetSelector returns the selector registered for style.
func GetSelector(style SelectorStyle) (CategorySelector, error) {
	s, ok := selectorStrategies[style]
	if !ok {
		return nil, fmt.Errorf("unknown selector style: %s", style)
	}
	return s, nil
}

func present(style SelectorStyle, candidates []core.Category, current uuid.UUID) Presentation {
	p := Presentation{
		Style:   style,
		Options: append([]core.Category(nil), candidates...),
		Label:   NoCategoryLabel,
	}
	if current == uuid.Nil {
		return p
	}
	for i := range p.Options {
		if p.Options[i].ID == current {
			c := p.Options[i]
			p.Current = &c
			p.Label = c.Name
			break
		}
	}
	return p
}

func choose(candidates []core.Category, id uuid.UUID) (core.Category, error) {
	for _, c := range candidates {
		if c.ID == id {
			return c, nil
		}
	}
	return core.Category{}, fmt.Errorf("category %s: %w", id, core.ErrUnknownCategory)
}
