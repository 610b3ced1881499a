package markup

import (
	"io"
	"strings"

	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
)

// CSS-классы разметки, по которым виджет находит свои контролы.
const (
	ButtonClass        = "DostavistaButton"
	ComboClass         = "DostavistaCombo"
	ComboSubmitClass   = "DostavistaComboSubmit"
	ComboCheckboxClass = "DostavistaComboCheckbox"
)

var ErrControlNotFound = errors.New("control not found in markup")

type Page struct {
	doc *goquery.Document
}

func ParsePage(r io.Reader) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "parse html")
	}
	return &Page{doc: doc}, nil
}

func ParseString(src string) (*Page, error) {
	return ParsePage(strings.NewReader(src))
}

// Target: контрол, по которому кликнули, и элементы с данными заказа.
type Target struct {
	ID   string
	Kind models.ControlKind
	// Sel: сама кнопка (для комбо: кнопка отправки).
	Sel *goquery.Selection
	// Block: блок комбо; для одиночной кнопки совпадает с Sel.
	Block *goquery.Selection
	Items []Element
}

// Target ищет контрол по id. Для комбо id может стоять как на блоке
// .DostavistaCombo, так и на его кнопке отправки.
// Пустой id допустим, если во фрагменте ровно один контрол.
func (p *Page) Target(id string) (Target, error) {
	if btn := p.byID("."+ButtonClass, id); btn != nil {
		if v, ok := btn.Attr("id"); ok && v != "" {
			id = v
		}
		return Target{ID: id, Kind: models.ControlButton, Sel: btn, Block: btn, Items: []Element{btn}}, nil
	}

	if block := p.byID("."+ComboClass, id); block != nil {
		return comboTarget(block), nil
	}
	if submit := p.byID("."+ComboClass+" ."+ComboSubmitClass, id); submit != nil {
		return comboTarget(submit.Closest("." + ComboClass)), nil
	}

	return Target{}, errors.Wrapf(ErrControlNotFound, "id=%q", id)
}

func comboTarget(block *goquery.Selection) Target {
	return Target{
		ID:    ComboID(block),
		Kind:  models.ControlCombo,
		Sel:   block.Find("." + ComboSubmitClass).First(),
		Block: block,
		Items: CheckedItems(block),
	}
}

func (p *Page) byID(selector, id string) *goquery.Selection {
	all := p.doc.Find(selector)
	if id == "" {
		if all.Length() == 1 {
			return all
		}
		return nil
	}
	found := all.FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr("id")
		return v == id
	}).First()
	if found.Length() == 0 {
		return nil
	}
	return found
}

// CheckedItems возвращает отмеченные и не заблокированные позиции комбо.
func CheckedItems(block *goquery.Selection) []Element {
	var out []Element
	block.Find("." + ComboCheckboxClass + "[checked]").Each(func(_ int, s *goquery.Selection) {
		if _, disabled := s.Attr("disabled"); disabled {
			return
		}
		out = append(out, s)
	})
	return out
}

// Buttons перечисляет одиночные кнопки заказа на странице.
func (p *Page) Buttons() []*goquery.Selection {
	var out []*goquery.Selection
	p.doc.Find("." + ButtonClass).Each(func(_ int, s *goquery.Selection) {
		out = append(out, s)
	})
	return out
}

// ComboID: у комбо один id состояния, id блока, а если его нет, id кнопки отправки.
// Клик по блоку и по его кнопке попадает в одно и то же состояние.
func ComboID(block *goquery.Selection) string {
	if id, _ := block.Attr("id"); id != "" {
		return id
	}
	id, _ := block.Find("." + ComboSubmitClass).First().Attr("id")
	return id
}

// Combos перечисляет блоки комбо как цели: у каждой кнопка отправки и отмеченные позиции.
func (p *Page) Combos() []Target {
	var out []Target
	p.doc.Find("." + ComboClass).Each(func(_ int, block *goquery.Selection) {
		out = append(out, comboTarget(block))
	})
	return out
}

// HTML отдаёт содержимое body: для фрагментов это исходная разметка после правок.
func (p *Page) HTML() (string, error) {
	body := p.doc.Find("body")
	if body.Length() == 0 {
		return p.doc.Html()
	}
	h, err := body.Html()
	if err != nil {
		return "", errors.Wrap(err, "render html")
	}
	return strings.TrimSpace(h), nil
}
