package markup

import (
	"fmt"

	"github.com/BearBump/DispatchBox/internal/models"
)

var orderFields = []Field[models.Order]{
	{Name: "matter", Kind: KindText, Set: func(o *models.Order, v Value) { o.Matter = v.Text }},
	{Name: "insurance", Kind: KindNumber, Set: func(o *models.Order, v Value) { o.Insurance = v.Number }},
}

// address должен идти первым: по нему определяется конец списка точек.
var pointFields = []Field[models.OrderPoint]{
	{Name: "address", Kind: KindText, Required: true, Set: func(p *models.OrderPoint, v Value) { p.Address = v.Text }},
	{Name: "client_order_id", Kind: KindText, Set: func(p *models.OrderPoint, v Value) { p.ClientOrderID = v.Text }},
	{Name: "taking", Kind: KindNumber, Set: func(p *models.OrderPoint, v Value) { n := v.Number; p.Taking = &n }},
	{Name: "weight", Kind: KindNumber, Set: func(p *models.OrderPoint, v Value) { p.Weight = v.Number }},
	{Name: "phone", Kind: KindPhone, Set: func(p *models.OrderPoint, v Value) { p.Phone = v.Text }},
	{Name: "contact_person", Kind: KindText, Set: func(p *models.OrderPoint, v Value) { p.ContactPerson = v.Text }},
	{Name: "required_time", Kind: KindText, Set: func(p *models.OrderPoint, v Value) { p.RequiredTime = v.Text }},
	{Name: "required_time_start", Kind: KindText, Set: func(p *models.OrderPoint, v Value) { p.RequiredTimeStart = v.Text }},
}

func pointPrefix(i int) string {
	return fmt.Sprintf("point%d_", i)
}

// ReadOrder собирает заказ из атрибутов одного элемента.
// Точка 0 присутствует всегда, даже пустая: её ошибки покажет валидатор.
// Ошибки приведения типов возвращаются как *DecodeError вместе с заказом.
func ReadOrder(el Element) (models.Order, error) {
	var order models.Order
	_, problems := decode(el, "", orderFields, &order)

	order.Points = []models.OrderPoint{{}}
	for i := 0; i < models.MaxPoints; i++ {
		var p models.OrderPoint
		found, pp := decode(el, pointPrefix(i), pointFields, &p)
		if !found {
			break
		}
		problems = append(problems, pp...)
		if i == 0 {
			order.Points[0] = p
			continue
		}
		order.Points = append(order.Points, p)
	}

	if len(problems) > 0 {
		return order, &DecodeError{Fields: problems}
	}
	return order, nil
}

// MergeCombo объединяет отмеченные позиции комбо в один заказ.
// Первый непустой matter побеждает, страховки суммируются.
// Если первая точка позиции совпадает по адресу с первой точкой заказа,
// её вес добавляется к уже имеющейся точке, а сама она отбрасывается.
func MergeCombo(els []Element) (models.Order, error) {
	merged := models.Order{Points: []models.OrderPoint{}}
	var problems []FieldError

	for _, el := range els {
		o, err := ReadOrder(el)
		if err != nil {
			if de, ok := err.(*DecodeError); ok {
				problems = append(problems, de.Fields...)
			} else {
				return merged, err
			}
		}

		if merged.Matter == "" {
			merged.Matter = o.Matter
		}
		merged.Insurance += o.Insurance

		points := o.Points
		if len(points) == 0 {
			continue
		}
		if len(merged.Points) > 0 && points[0].Address == merged.Points[0].Address {
			merged.Points[0].Weight += points[0].Weight
			points = points[1:]
		}
		merged.Points = append(merged.Points, points...)
	}

	if len(problems) > 0 {
		return merged, &DecodeError{Fields: problems}
	}
	return merged, nil
}
