package controls

import (
	"slices"
	"strings"

	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/PuerkitoBio/goquery"
)

const DisabledMarker = "DostavistaButton_disabled"

// Variant задаёт, какими CSS-классами состояние отображается на контроле.
type Variant struct {
	Base           string
	Disabled       string
	DisabledStates []string
}

var (
	Button = Variant{
		Base:           "DostavistaButton",
		Disabled:       DisabledMarker,
		DisabledStates: []string{models.StateSending, models.StateSent, models.StateError},
	}
	// У кнопки комбо свой базовый класс, но маркер блокировки общий с обычной кнопкой.
	ComboSubmit = Variant{
		Base:           "DostavistaComboSubmit",
		Disabled:       DisabledMarker,
		DisabledStates: []string{models.StateSending, models.StateSent, models.StateError},
	}
)

func ForKind(k models.ControlKind) Variant {
	if k == models.ControlCombo {
		return ComboSubmit
	}
	return Button
}

// View: то, что рендерер должен показать на контроле.
type View struct {
	State    string   `json:"state"`
	Classes  []string `json:"classes"`
	Disabled bool     `json:"disabled"`
	Title    string   `json:"title,omitempty"`
}

// Render строит представление состояния. Пустое состояние: это idle.
func (v Variant) Render(state, title string) View {
	if state == "" {
		state = models.StateIdle
	}
	view := View{State: state, Classes: []string{v.Base}, Title: title}
	if state != models.StateIdle {
		view.Classes = append(view.Classes, v.Base+"_"+state)
		if slices.Contains(v.DisabledStates, state) {
			view.Classes = append(view.Classes, v.Disabled)
			view.Disabled = true
		}
	}
	return view
}

func (v Variant) RenderState(s models.ControlState) View {
	return v.Render(s.State, s.Title)
}

func (v View) Class() string {
	return strings.Join(v.Classes, " ")
}

// Apply переносит представление на DOM-элемент: классы заменяются целиком,
// title ставится или снимается.
func Apply(sel *goquery.Selection, view View) {
	sel.SetAttr("class", view.Class())
	sel.RemoveAttr("title")
	if view.Title != "" {
		sel.SetAttr("title", view.Title)
	}
}

// ConsumeCheckboxes блокирует отправленные позиции комбо и снимает с них отметку.
func ConsumeCheckboxes(items []*goquery.Selection) {
	for _, s := range items {
		s.SetAttr("disabled", "disabled")
		s.RemoveAttr("checked")
	}
}
